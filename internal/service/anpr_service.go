package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-anpr-service/internal/alpr"
	"parking-anpr-service/internal/domain/anpr"
	"parking-anpr-service/internal/recognizer"
	"parking-anpr-service/internal/repository"
	"parking-anpr-service/internal/video"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrVideoOpen    = errors.New("failed to open video")
)

type RegistrationStats struct {
	Created        int64 `json:"created"`
	AlreadyPresent int64 `json:"already_present"`
	Failed         int64 `json:"failed"`
	Skipped        int64 `json:"skipped"`
}

type ANPRService struct {
	recognizer recognizer.Recognizer
	spots      repository.SpotRepository
	opener     video.Opener
	encoder    video.Encoder
	log        zerolog.Logger

	created        atomic.Int64
	alreadyPresent atomic.Int64
	failed         atomic.Int64
	skipped        atomic.Int64
}

func NewANPRService(
	rec recognizer.Recognizer,
	spots repository.SpotRepository,
	opener video.Opener,
	encoder video.Encoder,
	log zerolog.Logger,
) *ANPRService {
	return &ANPRService{
		recognizer: rec,
		spots:      spots,
		opener:     opener,
		encoder:    encoder,
		log:        log,
	}
}

// ProcessImage recognizes a single still image and registers the best plate. The
// registration outcome never changes the returned result.
func (s *ANPRService) ProcessImage(ctx context.Context, image []byte, filename string) anpr.RecognitionResult {
	result, _ := s.recognize(ctx, image, filename, s.log)
	outcome := s.register(ctx, result, s.log)
	s.log.Debug().Str("filename", filename).Str("registration", string(outcome)).Msg("image processed")
	return result
}

// ProcessVideo samples every stride-th frame and runs the single image flow on
// each one. When ctx is cancelled the results gathered so far are returned
// together with ctx.Err().
func (s *ANPRService) ProcessVideo(ctx context.Context, src io.Reader, stride int) ([]anpr.RecognitionResult, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("%w: stride must be positive", ErrInvalidInput)
	}

	runLog := s.log.With().Str("run_id", uuid.NewString()).Int("stride", stride).Logger()
	started := time.Now()

	dec, err := s.opener.Open(ctx, src)
	if err != nil {
		if errors.Is(err, video.ErrOpen) {
			runLog.Error().Err(err).Msg("failed to open video")
			return nil, fmt.Errorf("%w: %v", ErrVideoOpen, err)
		}
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer func() {
		if err := dec.Close(); err != nil {
			runLog.Warn().Err(err).Msg("failed to release video decoder")
		}
	}()

	sampler, err := video.NewSampler(dec, s.encoder, stride, runLog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	results := make([]anpr.RecognitionResult, 0)
	registered := 0
	for {
		sample, err := sampler.Next(ctx)
		if ctx.Err() != nil {
			runLog.Warn().Int("processed", len(results)).Msg("video processing cancelled")
			return results, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runLog.Error().Err(err).Int("frame", sampler.Frames()).Msg("video decoding stopped early")
			break
		}

		frameLog := runLog.With().Int("frame", sample.Index).Logger()
		result, recErr := s.recognize(ctx, sample.Image, "frame.jpg", frameLog)
		if recErr != nil && ctx.Err() != nil {
			runLog.Warn().Int("processed", len(results)).Msg("video processing cancelled")
			return results, ctx.Err()
		}
		idx := sample.Index
		result.Frame = &idx
		if s.register(ctx, result, frameLog) == anpr.RegistrationCreated {
			registered++
		}
		results = append(results, result)
	}

	runLog.Info().
		Int("frames_read", sampler.Frames()).
		Int("frames_processed", len(results)).
		Int("spots_created", registered).
		Dur("elapsed", time.Since(started)).
		Msg("video processed")
	return results, nil
}

func (s *ANPRService) Stats() RegistrationStats {
	return RegistrationStats{
		Created:        s.created.Load(),
		AlreadyPresent: s.alreadyPresent.Load(),
		Failed:         s.failed.Load(),
		Skipped:        s.skipped.Load(),
	}
}

// recognize never fails the caller: an unavailable recognizer counts as no plate.
// The error is returned only so video runs can tell cancellation apart.
func (s *ANPRService) recognize(ctx context.Context, image []byte, filename string, log zerolog.Logger) (anpr.RecognitionResult, error) {
	output, err := s.recognizer.Recognize(ctx, image, filename)
	if err != nil {
		log.Error().Err(err).Msg("failed to call recognizer")
		return anpr.RecognitionResult{}, err
	}

	candidates := alpr.ParseCandidates(output)
	for _, c := range candidates {
		log.Debug().Str("plate", c.Plate).Float64("confidence", c.Confidence).Msg("plate candidate")
	}

	result := alpr.SelectBest(candidates)
	if result.HasPlate() {
		log.Info().
			Str("plate", result.Plate()).
			Float64("confidence", result.Confidence).
			Int("candidates", len(candidates)).
			Msg("best plate selected")
	} else {
		log.Warn().Msg("no plate detected")
	}
	return result, nil
}

func (s *ANPRService) register(ctx context.Context, result anpr.RecognitionResult, log zerolog.Logger) anpr.RegistrationOutcome {
	if !result.HasPlate() {
		s.skipped.Add(1)
		return anpr.RegistrationSkipped
	}

	plate := result.Plate()
	spot, err := s.spots.Create(ctx, plate)
	switch {
	case err == nil:
		s.created.Add(1)
		log.Info().Int64("spot_id", spot.ID).Str("plate", plate).Msg("spot created")
		return anpr.RegistrationCreated
	case errors.Is(err, repository.ErrConflict):
		s.alreadyPresent.Add(1)
		log.Info().Str("plate", plate).Msg("plate already in parking")
		return anpr.RegistrationAlreadyPresent
	default:
		s.failed.Add(1)
		log.Error().Err(err).Str("plate", plate).Msg("failed to register spot")
		return anpr.RegistrationFailed
	}
}
