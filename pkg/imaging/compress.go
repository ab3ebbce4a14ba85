// Package imaging shrinks uploaded pictures before they go to object storage.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	AvatarMaxDimension = 1024
	AvatarQuality      = 80
	// MaxUploadBytes bounds the raw upload before decoding.
	MaxUploadBytes = 5 << 20
	// MaxPixels bounds the decoded canvas; a small file can declare a huge one.
	MaxPixels = 40_000_000
)

var (
	ErrNotImage = errors.New("imaging: file is not an image")
	ErrTooLarge = errors.New("imaging: file exceeds upload limit")
)

// IsImage sniffs data the same way net/http does.
func IsImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

// Fit returns the largest size no bigger than maxDimension on either side that keeps
// the aspect ratio of w x h. Images already within bounds keep their size.
func Fit(w, h, maxDimension int) (int, int) {
	if w <= maxDimension && h <= maxDimension {
		return w, h
	}
	if w > h {
		return maxDimension, max(1, h*maxDimension/w)
	}
	return max(1, w*maxDimension/h), maxDimension
}

// Compress decodes any registered format, scales it down to maxDimension and
// re-encodes it as JPEG.
func Compress(data []byte, maxDimension, quality int) ([]byte, error) {
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	if !IsImage(data) {
		return nil, ErrNotImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, ErrTooLarge
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), maxDimension)

	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
