package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"parking-anpr-service/internal/domain/anpr"
	"parking-anpr-service/internal/repository"
	"parking-anpr-service/internal/video"
)

// scriptedRecognizer answers by payload. Unknown payloads return no text.
type scriptedRecognizer struct {
	mu      sync.Mutex
	outputs map[string]string
	fail    map[string]bool
	calls   []string
	onCall  func(n int)
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, image []byte, filename string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, string(image))
	n := len(r.calls)
	hook := r.onCall
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if r.fail[string(image)] {
		return "", errors.New("connection refused")
	}
	return r.outputs[string(image)], nil
}

type grayDecoder struct {
	n, pos int
}

func (d *grayDecoder) Next() (image.Image, error) {
	if d.pos >= d.n {
		return nil, io.EOF
	}
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: uint8(d.pos)})
	d.pos++
	return img, nil
}

func (d *grayDecoder) Skip() error {
	if d.pos >= d.n {
		return io.EOF
	}
	d.pos++
	return nil
}

func (d *grayDecoder) Close() error { return nil }

type fakeOpener struct {
	frames int
	err    error
}

func (o fakeOpener) Open(ctx context.Context, src io.Reader) (video.Decoder, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &grayDecoder{n: o.frames}, nil
}

type labelEncoder struct{}

func (labelEncoder) Encode(img image.Image) ([]byte, error) {
	r, _, _, _ := img.At(0, 0).RGBA()
	return []byte(fmt.Sprintf("frame-%d", r>>8)), nil
}

type brokenRepository struct {
	repository.SpotRepository
}

func (brokenRepository) Create(ctx context.Context, plate string) (anpr.Spot, error) {
	return anpr.Spot{}, errors.New("registry offline")
}

func newTestService(rec *scriptedRecognizer, spots repository.SpotRepository, opener video.Opener) *ANPRService {
	return NewANPRService(rec, spots, opener, labelEncoder{}, zerolog.Nop())
}

const exampleOutput = "- ABC123 confidence: 89.9\n- XYZ999 confidence: 95.0\nnoise line\n"

func TestProcessImageConflictDoesNotChangeResult(t *testing.T) {
	ctx := context.Background()
	rec := &scriptedRecognizer{outputs: map[string]string{"img": exampleOutput}}
	spots := repository.NewMemorySpotRepository()
	svc := newTestService(rec, spots, fakeOpener{})

	first := svc.ProcessImage(ctx, []byte("img"), "car.jpg")
	second := svc.ProcessImage(ctx, []byte("img"), "car.jpg")

	for i, res := range []anpr.RecognitionResult{first, second} {
		if res.Plate() != "XYZ999" || res.Confidence != 95.0 || res.Frame != nil {
			t.Fatalf("call %d: unexpected result %+v", i+1, res)
		}
	}

	stats := svc.Stats()
	if stats.Created != 1 || stats.AlreadyPresent != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	list, _ := spots.List(ctx)
	if len(list) != 1 || list[0].Plate != "XYZ999" {
		t.Fatalf("unexpected registry contents %+v", list)
	}
}

func TestProcessImageRecognizerDown(t *testing.T) {
	rec := &scriptedRecognizer{fail: map[string]bool{"img": true}}
	svc := newTestService(rec, repository.NewMemorySpotRepository(), fakeOpener{})

	res := svc.ProcessImage(context.Background(), []byte("img"), "car.jpg")
	if res.HasPlate() || res.Confidence != 0 {
		t.Fatalf("expected no plate, got %+v", res)
	}
	if svc.Stats().Skipped != 1 {
		t.Fatalf("unexpected stats %+v", svc.Stats())
	}
}

func TestProcessImageRegistryFailure(t *testing.T) {
	rec := &scriptedRecognizer{outputs: map[string]string{"img": exampleOutput}}
	svc := newTestService(rec, brokenRepository{}, fakeOpener{})

	res := svc.ProcessImage(context.Background(), []byte("img"), "car.jpg")
	if res.Plate() != "XYZ999" {
		t.Fatalf("registry failure must not hide the plate, got %+v", res)
	}
	if svc.Stats().Failed != 1 {
		t.Fatalf("unexpected stats %+v", svc.Stats())
	}
}

func TestProcessVideo(t *testing.T) {
	rec := &scriptedRecognizer{
		outputs: map[string]string{
			"frame-0":  "- AAA111 confidence: 80.0\n",
			"frame-20": "- AAA111 confidence: 91.0\n- BBB222 confidence: 91.0\n",
		},
		fail: map[string]bool{"frame-10": true},
	}
	spots := repository.NewMemorySpotRepository()
	svc := newTestService(rec, spots, fakeOpener{frames: 25})

	results, err := svc.ProcessVideo(context.Background(), strings.NewReader("video"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	wantPlates := []string{"AAA111", "", "AAA111"}
	for i, res := range results {
		if res.Frame == nil || *res.Frame != i*10 {
			t.Fatalf("result %d carries frame %v", i, res.Frame)
		}
		if res.Plate() != wantPlates[i] {
			t.Fatalf("result %d: plate %q, want %q", i, res.Plate(), wantPlates[i])
		}
	}
	if results[1].Confidence != 0 {
		t.Fatalf("failed frame must read as no plate")
	}

	if fmt.Sprint(rec.calls) != "[frame-0 frame-10 frame-20]" {
		t.Fatalf("frames recognized out of order: %v", rec.calls)
	}
	stats := svc.Stats()
	if stats.Created != 1 || stats.AlreadyPresent != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestProcessVideoOpenError(t *testing.T) {
	svc := newTestService(&scriptedRecognizer{}, repository.NewMemorySpotRepository(),
		fakeOpener{err: &video.OpenError{Reason: "invalid data found when processing input"}})

	results, err := svc.ProcessVideo(context.Background(), strings.NewReader("junk"), 10)
	if !errors.Is(err, ErrVideoOpen) {
		t.Fatalf("expected ErrVideoOpen, got %v", err)
	}
	if results != nil {
		t.Fatalf("no results expected, got %v", results)
	}
}

func TestProcessVideoInvalidStride(t *testing.T) {
	svc := newTestService(&scriptedRecognizer{}, repository.NewMemorySpotRepository(), fakeOpener{frames: 3})
	if _, err := svc.ProcessVideo(context.Background(), strings.NewReader("v"), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessVideoCancelledKeepsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &scriptedRecognizer{
		outputs: map[string]string{"frame-0": "- AAA111 confidence: 80.0\n"},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	svc := newTestService(rec, repository.NewMemorySpotRepository(), fakeOpener{frames: 100})

	results, err := svc.ProcessVideo(ctx, strings.NewReader("video"), 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the 2 finished frames, got %d", len(results))
	}
	if results[0].Plate() != "AAA111" || *results[1].Frame != 10 {
		t.Fatalf("unexpected partial results %+v", results)
	}
}

// stoppingDecoder emits n frames, then runs stop and reports end of stream, as a
// decoder process killed by cancellation does.
type stoppingDecoder struct {
	grayDecoder
	stop func()
}

func (d *stoppingDecoder) Next() (image.Image, error) {
	if d.pos >= d.n {
		d.stop()
		return nil, io.EOF
	}
	return d.grayDecoder.Next()
}

type stoppingOpener struct {
	frames int
	stop   func()
}

func (o stoppingOpener) Open(ctx context.Context, src io.Reader) (video.Decoder, error) {
	return &stoppingDecoder{grayDecoder: grayDecoder{n: o.frames}, stop: o.stop}, nil
}

func TestProcessVideoCancelledWhileDecoding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &scriptedRecognizer{outputs: map[string]string{"frame-0": "- AAA111 confidence: 80.0\n"}}
	svc := newTestService(rec, repository.NewMemorySpotRepository(), stoppingOpener{frames: 1, stop: cancel})

	results, err := svc.ProcessVideo(ctx, strings.NewReader("video"), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("a cancelled run must not read as finished, got %v", err)
	}
	if len(results) != 1 || results[0].Plate() != "AAA111" {
		t.Fatalf("unexpected partial results %+v", results)
	}
}

func TestRegisterOutcomes(t *testing.T) {
	ctx := context.Background()
	plate := "AAA111"
	withPlate := anpr.RecognitionResult{BestPlate: &plate, Confidence: 80}

	svc := newTestService(&scriptedRecognizer{}, repository.NewMemorySpotRepository(), fakeOpener{})
	log := zerolog.Nop()
	for _, tc := range []struct {
		name   string
		result anpr.RecognitionResult
		want   anpr.RegistrationOutcome
	}{
		{"first sighting", withPlate, anpr.RegistrationCreated},
		{"still parked", withPlate, anpr.RegistrationAlreadyPresent},
		{"no plate", anpr.RecognitionResult{}, anpr.RegistrationSkipped},
	} {
		if got := svc.register(ctx, tc.result, log); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}

	broken := newTestService(&scriptedRecognizer{}, brokenRepository{}, fakeOpener{})
	if got := broken.register(ctx, withPlate, log); got != anpr.RegistrationFailed {
		t.Fatalf("got %q, want %q", got, anpr.RegistrationFailed)
	}
}
