package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode jpeg: nil frame")
	}
	q := e.Quality
	if q <= 0 || q > 100 {
		q = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
