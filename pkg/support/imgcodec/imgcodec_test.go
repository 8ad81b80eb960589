// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imgcodec

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 100), B: 7, A: 255})
		}
	}
	return img
}

func TestWriteAndOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	img := testImage()
	require.NoError(t, Write(path, img, DefaultEncodeOptions()))

	// No temporary files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	decoded, err := Open(path, DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), decoded.Bounds())
	for y := range 3 {
		for x := range 4 {
			r0, g0, b0, a0 := img.At(x, y).RGBA()
			r1, g1, b1, a1 := decoded.At(x, y).RGBA()
			require.Equal(t, []uint32{r0, g0, b0, a0}, []uint32{r1, g1, b1, a1}, "pixel (%d, %d)", x, y)
		}
	}

	// JPEG is lossy: only check it decodes to the same size.
	jpegPath := filepath.Join(dir, "img.jpg")
	require.NoError(t, Write(jpegPath, img, EncodeOptions{Quality: 50, CompressLevel: -1}))
	decoded, err = Open(jpegPath, DecodeOptions{AutoOrientation: true})
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), decoded.Bounds())

	// Format restriction.
	_, err = Open(jpegPath, DecodeOptions{Formats: []string{"png"}})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Open(jpegPath, DecodeOptions{Formats: []string{"jpeg"}})
	require.NoError(t, err)

	_, err = Open(filepath.Join(dir, "missing.png"), DecodeOptions{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	err := Write(filepath.Join(dir, "img.xyz"), testImage(), DefaultEncodeOptions())
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	// Format option overrides the extension.
	path := filepath.Join(dir, "img.xyz")
	require.NoError(t, Write(path, testImage(), EncodeOptions{Format: "PNG", CompressLevel: 9}))
	_, err = Open(path, DecodeOptions{Formats: []string{"png"}})
	require.NoError(t, err)
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testImage(), EncodeOptions{Format: "gif", NumColors: 16, CompressLevel: -1}))
	// Non-seekable reader with format restriction.
	img, err := Decode(strings.NewReader(buf.String()), DecodeOptions{Formats: []string{"GIF"}})
	require.Error(t, err, "formats must be normalized by DecodeOptionsFrom")
	decodeOpts, err := DecodeOptionsFrom(options.Options{"formats": []any{"GIF", ".png"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"gif", "png"}, decodeOpts.Formats)
	img, err = Decode(bytes.NewBuffer(buf.Bytes()), decodeOpts)
	require.NoError(t, err)
	assert.Equal(t, testImage().Bounds(), img.Bounds())

	require.ErrorIs(t, Encode(&buf, testImage(), DefaultEncodeOptions()), ErrUnsupportedFormat)
}

func TestOptionsFrom(t *testing.T) {
	opts := options.Options{"quality": 80, "compress_level": 1.0, "optimize": true}
	encodeOpts, err := EncodeOptionsFrom(opts)
	require.NoError(t, err)
	assert.Equal(t, EncodeOptions{Quality: 80, CompressLevel: 1}, encodeOpts)
	assert.Len(t, opts, 3, "input options must not be changed")

	_, err = EncodeOptionsFrom(options.Options{"quality": "high"})
	require.ErrorIs(t, err, options.ErrInvalidOption)

	decodeOpts, err := DecodeOptionsFrom(options.Options{"auto_orientation": true, "formats": "jpg"})
	require.NoError(t, err)
	assert.Equal(t, DecodeOptions{AutoOrientation: true, Formats: []string{"jpeg"}}, decodeOpts)

	_, err = DecodeOptionsFrom(options.Options{"formats": 3})
	require.ErrorIs(t, err, options.ErrInvalidOption)

	// Format lists given by the caller are normalized on a copy.
	formats := []string{"JPG", "png"}
	decodeOpts, err = DecodeOptionsFrom(options.Options{"formats": formats})
	require.NoError(t, err)
	assert.Equal(t, []string{"jpeg", "png"}, decodeOpts.Formats)
	assert.Equal(t, []string{"JPG", "png"}, formats)
}
