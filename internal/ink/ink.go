// Package ink decodes captured signature images and detects blank canvases.
package ink

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

const (
	// MaxBytes is the largest decoded image accepted.
	MaxBytes = 2 << 20
	// MaxDimension bounds the width and height of a signature canvas.
	MaxDimension = 4096
)

var (
	ErrMalformed = errors.New("signature image is not a valid PNG or JPEG data URL")
	ErrTooLarge  = errors.New("signature image is too large")
	ErrBlank     = errors.New("signature image is blank")
)

// Decode parses a data URL (data:image/png;base64,...) or bare base64
// payload and returns the decoded image and its format name.
func Decode(data string) (image.Image, string, error) {
	payload := strings.TrimSpace(data)
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", ErrMalformed
		}
		mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if mime != "image/png" && mime != "image/jpeg" {
			return nil, "", ErrMalformed
		}
		payload = body
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxBytes+3 {
		return nil, "", ErrTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, "", ErrMalformed
		}
	}
	if len(raw) > MaxBytes {
		return nil, "", ErrTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return img, format, nil
}

// IsBlank reports whether no pixel in img differs from the top-left
// background pixel. A fully transparent image is blank.
func IsBlank(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	br, bg, bb, ba := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r != br || g != bg || bl != bb || a != ba {
				return false
			}
		}
	}
	return true
}

// Check decodes data and rejects blank canvases.
func Check(data string) error {
	img, _, err := Decode(data)
	if err != nil {
		return err
	}
	if IsBlank(img) {
		return ErrBlank
	}
	return nil
}
