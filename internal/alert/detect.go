package alert

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"regexp"
)

// MaxFrameDimension bounds the width and height of a decoded frame.
const MaxFrameDimension = 4096

var ErrFrameTooLarge = fmt.Errorf("frame exceeds %dx%d pixels", MaxFrameDimension, MaxFrameDimension)

var digitRuns = regexp.MustCompile(`\d+`)

// ExtractCandidates returns every maximal run of ASCII digits in text, in
// order of appearance. The runs are not checked against any patient record.
func ExtractCandidates(text string) []string {
	matches := digitRuns.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

// IsRedPixel is the red-light predicate applied to 8-bit channel values.
func IsRedPixel(r, g, b uint8) bool {
	return r > 200 && g < 100 && b < 100
}

// HasRedLight reports whether any pixel of img satisfies IsRedPixel.
func HasRedLight(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if IsRedPixel(uint8(r>>8), uint8(g>>8), uint8(b>>8)) {
				return true
			}
		}
	}
	return false
}

// DecodeFrame decodes a PNG or JPEG camera frame. The header is checked
// first so an oversized frame is rejected before any pixels are allocated.
func DecodeFrame(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if cfg.Width > MaxFrameDimension || cfg.Height > MaxFrameDimension {
		return nil, ErrFrameTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

