package imaging_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"go-events-backend/pkg/imaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFit(t *testing.T) {
	w, h := imaging.Fit(2048, 1024, 1024)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 512, h)

	w, h = imaging.Fit(500, 3000, 1024)
	assert.Equal(t, 170, w)
	assert.Equal(t, 1024, h)

	w, h = imaging.Fit(300, 200, 1024)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestCompressScalesAndEncodesJPEG(t *testing.T) {
	out, err := imaging.Compress(pngBytes(t, 2000, 1000), imaging.AvatarMaxDimension, imaging.AvatarQuality)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestCompressRejectsNonImage(t *testing.T) {
	_, err := imaging.Compress([]byte("%PDF-1.4 not a picture"), 1024, 80)
	assert.ErrorIs(t, err, imaging.ErrNotImage)
}

func TestCompressRejectsOversized(t *testing.T) {
	_, err := imaging.Compress(make([]byte, imaging.MaxUploadBytes+1), 1024, 80)
	assert.ErrorIs(t, err, imaging.ErrTooLarge)
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h grayscale canvas.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type 0 is grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestCompressRejectsHugeCanvas(t *testing.T) {
	data := pngHeader(12000, 12000)
	require.Less(t, len(data), 100)

	_, err := imaging.Compress(data, imaging.AvatarMaxDimension, imaging.AvatarQuality)
	assert.ErrorIs(t, err, imaging.ErrTooLarge)
}
