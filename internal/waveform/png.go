package waveform

import (
	"bytes"
	"image"
	"image/png"
)

// StdPNGEncoder implements domain.PNGEncoder over the standard library's
// image/png encoder.
type StdPNGEncoder struct{}

// EncodeRGBA wraps pixels (row-major RGBA, four bytes per pixel) in an
// image.RGBA and PNG-encodes it.
func (StdPNGEncoder) EncodeRGBA(pixels []byte, width, height int) ([]byte, error) {
	img := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
