// Package video samples still frames out of uploaded video containers.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
)

var (
	ErrOpen          = errors.New("failed to open video")
	ErrInvalidStride = errors.New("stride must be positive")
)

// DefaultStride is the frame interval used when the caller does not pick one.
const DefaultStride = 10

// Decoder walks the frames of an opened container. Next and Skip return io.EOF once
// the stream is exhausted.
type Decoder interface {
	Next() (image.Image, error)
	Skip() error
	Close() error
}

// Opener opens a container. Unreadable input fails with an *OpenError before any
// frame is produced.
type Opener interface {
	Open(ctx context.Context, src io.Reader) (Decoder, error)
}

type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

type OpenError struct {
	Reason string
	Err    error
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrOpen, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrOpen, e.Reason)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}
