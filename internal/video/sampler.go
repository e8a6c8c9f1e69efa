package video

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"parking-anpr-service/internal/domain/anpr"
)

// Sampler yields every stride-th frame of a decoder, JPEG-encoded, in index order.
// It is single use: once Next has returned io.EOF it keeps returning io.EOF.
type Sampler struct {
	dec    Decoder
	enc    Encoder
	stride int
	log    zerolog.Logger

	index int
	done  bool
}

func NewSampler(dec Decoder, enc Encoder, stride int, log zerolog.Logger) (*Sampler, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStride, stride)
	}
	return &Sampler{
		dec:    dec,
		enc:    enc,
		stride: stride,
		log:    log,
	}, nil
}

// Next returns the next selected frame. Frames that fail to encode are skipped.
// ctx is checked before each frame is decoded. A decoder that stops while ctx is
// done reports ctx.Err() rather than io.EOF.
func (s *Sampler) Next(ctx context.Context) (anpr.FrameSample, error) {
	for !s.done {
		if err := ctx.Err(); err != nil {
			return anpr.FrameSample{}, err
		}

		idx := s.index
		if idx%s.stride != 0 {
			if err := s.dec.Skip(); err != nil {
				return anpr.FrameSample{}, s.finish(ctx, err)
			}
			s.index++
			continue
		}

		img, err := s.dec.Next()
		if err != nil {
			return anpr.FrameSample{}, s.finish(ctx, err)
		}
		s.index++

		data, err := s.enc.Encode(img)
		if err != nil {
			s.log.Warn().Err(err).Int("frame", idx).Msg("failed to encode frame, skipping")
			continue
		}
		return anpr.FrameSample{Index: idx, Image: data}, nil
	}
	return anpr.FrameSample{}, io.EOF
}

// Frames reports how many frames have been read from the decoder so far.
func (s *Sampler) Frames() int {
	return s.index
}

func (s *Sampler) finish(ctx context.Context, err error) error {
	s.done = true
	// A cancelled ffmpeg process closes its pipe, which reads as end of stream.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return err
}
