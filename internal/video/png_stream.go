package video

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"io"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// maxChunkLen bounds a single PNG chunk; anything larger is treated as garbage.
const maxChunkLen = 1 << 28

// PNGStream decodes a stream of back-to-back PNG images, the format ffmpeg writes
// with `-f image2pipe -vcodec png`. Truncated or malformed data ends the stream.
type PNGStream struct {
	r      *bufio.Reader
	closer io.Closer
}

func NewPNGStream(r io.Reader) *PNGStream {
	s := &PNGStream{r: bufio.NewReaderSize(r, 64*1024)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *PNGStream) Next() (image.Image, error) {
	if _, err := s.r.Peek(1); err != nil {
		return nil, io.EOF
	}
	img, err := png.Decode(s.r)
	if err != nil {
		return nil, io.EOF
	}
	return img, nil
}

// Skip walks the chunk layout of one image without inflating pixel data.
func (s *PNGStream) Skip() error {
	var sig [8]byte
	if _, err := io.ReadFull(s.r, sig[:]); err != nil {
		return io.EOF
	}
	if !bytes.Equal(sig[:], pngSignature) {
		return io.EOF
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
			return io.EOF
		}
		n := binary.BigEndian.Uint32(hdr[:4])
		if n > maxChunkLen {
			return io.EOF
		}
		// chunk data plus CRC
		if _, err := s.r.Discard(int(n) + 4); err != nil {
			return io.EOF
		}
		if string(hdr[4:8]) == "IEND" {
			return nil
		}
	}
}

func (s *PNGStream) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
