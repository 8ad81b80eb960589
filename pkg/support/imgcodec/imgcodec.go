// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imgcodec reads and writes image files, delegating the actual encoding and decoding to
// github.com/disintegration/imaging and the decoders registered with the standard `image` package
// (including WebP, BMP and TIFF from golang.org/x/image).
//
// Options are given as free-form options.Options (e.g. from a configuration file) and converted
// with DecodeOptionsFrom and EncodeOptionsFrom.
package imgcodec

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	// Register extra decoders with the image package.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when an image format is not supported or not allowed.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DecodeOptions configure how images are decoded.
type DecodeOptions struct {
	// AutoOrientation rotates/flips the image according to its EXIF orientation tag (JPEG only).
	AutoOrientation bool

	// Formats restricts the accepted formats (e.g. "jpeg", "png"). If empty, all registered formats are accepted.
	Formats []string
}

// DecodeOptionsFrom pops the decoding options from opts: "auto_orientation" (bool) and "formats"
// (a format name or a list of them). Unknown options are ignored and logged.
func DecodeOptionsFrom(opts options.Options) (decodeOpts DecodeOptions, err error) {
	opts = opts.Clone()
	decodeOpts.AutoOrientation, err = options.PopOr(opts, "auto_orientation", false)
	if err != nil {
		return
	}
	if formats, found := opts.Pop("formats"); found && formats != nil {
		switch typed := formats.(type) {
		case string:
			decodeOpts.Formats = []string{typed}
		case []string:
			decodeOpts.Formats = slices.Clone(typed)
		case []any:
			for _, f := range typed {
				name, ok := f.(string)
				if !ok {
					return decodeOpts, errors.Wrapf(options.ErrInvalidOption, "option \"formats\" has non-string entry %#v", f)
				}
				decodeOpts.Formats = append(decodeOpts.Formats, name)
			}
		default:
			return decodeOpts, errors.Wrapf(options.ErrInvalidOption, "option \"formats\" must be a string or list of strings, got %T", formats)
		}
		for ii, name := range decodeOpts.Formats {
			decodeOpts.Formats[ii] = normalizeFormatName(name)
		}
	}
	for _, key := range opts.Keys() {
		klog.V(1).Infof("imgcodec: ignoring unknown decode option %q=%v", key, opts[key])
	}
	return
}

// normalizeFormatName converts names like "JPG" or "Jpeg" to the names used by the image package ("jpeg").
func normalizeFormatName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	switch name {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return name
}

// Open reads and decodes the image file at path.
func Open(path string, opts DecodeOptions) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image file %q", path)
	}
	defer func() { _ = f.Close() }()
	img, err := Decode(f, opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode image file %q", path)
	}
	return img, nil
}

// Decode an image from r.
//
// If opts.Formats is set, the format is checked before the image is decoded. In that case r is
// rewound if it implements io.Seeker, or read fully into memory otherwise.
func Decode(r io.Reader, opts DecodeOptions) (image.Image, error) {
	if len(opts.Formats) > 0 {
		seeker, ok := r.(io.ReadSeeker)
		if !ok {
			data, err := io.ReadAll(r)
			if err != nil {
				return nil, errors.Wrap(err, "failed to read image")
			}
			seeker = bytes.NewReader(data)
		}
		start, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, errors.Wrap(err, "failed to seek image")
		}
		_, format, err := image.DecodeConfig(seeker)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode image header")
		}
		if !slices.Contains(opts.Formats, format) {
			return nil, errors.Wrapf(ErrUnsupportedFormat, "image format %q not in the accepted formats %v", format, opts.Formats)
		}
		if _, err = seeker.Seek(start, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "failed to rewind image")
		}
		r = seeker
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(opts.AutoOrientation))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}

// EncodeOptions configure how images are encoded. The format itself is taken from the file extension,
// unless Format is set.
type EncodeOptions struct {
	// Format overrides the format inferred from the file name, e.g. "png".
	Format string

	// Quality of JPEG images, from 1 to 100. If 0, imaging's default (95) is used.
	Quality int

	// CompressLevel of PNG images, from 0 (no compression) to 9 (best compression). If -1, the default is used.
	CompressLevel int

	// NumColors of GIF images, from 1 to 256. If 0, imaging's default (256) is used.
	NumColors int
}

// DefaultEncodeOptions returns the encoding options used when none are given.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{CompressLevel: -1}
}

// EncodeOptionsFrom pops the encoding options from opts: "format" (string), "quality" (int),
// "compress_level" (int) and "num_colors" (int). Unknown options are ignored and logged.
func EncodeOptionsFrom(opts options.Options) (encodeOpts EncodeOptions, err error) {
	opts = opts.Clone()
	encodeOpts = DefaultEncodeOptions()
	if encodeOpts.Format, err = options.PopOr(opts, "format", ""); err != nil {
		return
	}
	if encodeOpts.Quality, err = options.PopOr(opts, "quality", 0); err != nil {
		return
	}
	if encodeOpts.CompressLevel, err = options.PopOr(opts, "compress_level", -1); err != nil {
		return
	}
	if encodeOpts.NumColors, err = options.PopOr(opts, "num_colors", 0); err != nil {
		return
	}
	for _, key := range opts.Keys() {
		klog.V(1).Infof("imgcodec: ignoring unknown encode option %q=%v", key, opts[key])
	}
	return
}

func (opts EncodeOptions) imagingOptions() []imaging.EncodeOption {
	var imagingOpts []imaging.EncodeOption
	if opts.Quality > 0 {
		imagingOpts = append(imagingOpts, imaging.JPEGQuality(opts.Quality))
	}
	if opts.NumColors > 0 {
		imagingOpts = append(imagingOpts, imaging.GIFNumColors(opts.NumColors))
	}
	if opts.CompressLevel >= 0 {
		level := png.DefaultCompression
		switch {
		case opts.CompressLevel == 0:
			level = png.NoCompression
		case opts.CompressLevel <= 3:
			level = png.BestSpeed
		case opts.CompressLevel >= 7:
			level = png.BestCompression
		}
		imagingOpts = append(imagingOpts, imaging.PNGCompressionLevel(level))
	}
	return imagingOpts
}

// imagingFormat returns the imaging format for the given file path, honoring EncodeOptions.Format.
func (opts EncodeOptions) imagingFormat(path string) (imaging.Format, error) {
	var format imaging.Format
	var err error
	if opts.Format != "" {
		format, err = imaging.FormatFromExtension(normalizeFormatName(opts.Format))
	} else {
		format, err = imaging.FormatFromFilename(path)
	}
	if err != nil {
		return format, errors.Wrapf(ErrUnsupportedFormat, "cannot encode %q (format option %q): %v", path, opts.Format, err)
	}
	return format, nil
}

// Encode img to w, in the format given by opts.Format.
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	if opts.Format == "" {
		return errors.Wrap(ErrUnsupportedFormat, "imgcodec.Encode requires EncodeOptions.Format")
	}
	format, err := opts.imagingFormat("")
	if err != nil {
		return err
	}
	return errors.Wrap(imaging.Encode(w, img, format, opts.imagingOptions()...), "failed to encode image")
}

// Write encodes img to the file at path, in the format given by its extension (or opts.Format).
// The parent directory must exist. Existing files are overwritten.
//
// The image is first written to a temporary file in the same directory, which is then renamed to path,
// so readers never see a partially written file.
func Write(path string, img image.Image, opts EncodeOptions) error {
	format, err := opts.imagingFormat(path)
	if err != nil {
		return err
	}
	dir, base := filepath.Split(path)
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create image file %q", tmpPath)
	}
	err = imaging.Encode(f, img, format, opts.imagingOptions()...)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to encode image to %q", path)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to close image file %q", tmpPath)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to rename %q to %q", tmpPath, path)
	}
	klog.V(1).Infof("imgcodec: wrote %q (%s)", path, format)
	return nil
}
