// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package images provides several functions to transform images back and
// forth from tensors, and to normalize the layout of image tensors: channels
// axis position, color order and value range.
package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/shapes"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrUnsupportedDType is returned when converting a tensor whose dtype has no image representation.
	ErrUnsupportedDType = errors.New("unsupported dtype for image conversion")

	// ErrUnsupportedShape is returned when converting a tensor whose shape is not an image.
	ErrUnsupportedShape = errors.New("unsupported shape for image conversion")

	// ErrInvalidMode is returned for an unknown image mode, or one incompatible with the tensor.
	ErrInvalidMode = errors.New("invalid image mode")
)

// ChannelsAxisConfig indicates if a tensor with an image has the channel axis
// coming last (last axis) or first (first axis after an optional batch axis).
type ChannelsAxisConfig uint8

const (
	ChannelsFirst ChannelsAxisConfig = iota
	ChannelsLast
)

// String implements fmt.Stringer.
func (c ChannelsAxisConfig) String() string {
	switch c {
	case ChannelsFirst:
		return "ChannelsFirst"
	case ChannelsLast:
		return "ChannelsLast"
	default:
		return "InvalidChannelsAxisConfig"
	}
}

// GetChannelsAxis from a given image tensor and configuration.
//
// Rank-3 tensors are single images (`[height, width, channels]` or `[channels, height, width]`),
// rank-4 tensors are batches of images, with the leading axis for the batch dimension.
// It returns -1 for any other rank, since there is no channels axis.
func GetChannelsAxis(image shapes.HasShape, config ChannelsAxisConfig) int {
	rank := image.Shape().Rank()
	if rank != 3 && rank != 4 {
		return -1
	}
	switch config {
	case ChannelsFirst:
		return rank - 3
	case ChannelsLast:
		return rank - 1
	default:
		klog.Errorf("GetChannelsAxis(image, %s): invalid ChannelsAxisConfig!?", config)
		return -1
	}
}

// ReverseChannels returns a new tensor with the order of the channels reversed (RGB <-> BGR).
//
// Tensors of rank other than 3 or 4 are returned unchanged.
func ReverseChannels(t *tensors.Tensor, config ChannelsAxisConfig) *tensors.Tensor {
	axis := GetChannelsAxis(t, config)
	if axis < 0 {
		return t
	}
	return t.ReverseAxis(axis)
}

// ToChannelsFirst moves the channels axis from last to first (after the batch axis, for rank-4 tensors).
//
// Tensors of rank other than 3 or 4 are returned unchanged.
func ToChannelsFirst(t *tensors.Tensor) *tensors.Tensor {
	switch t.Rank() {
	case 3:
		return t.Transpose(2, 0, 1)
	case 4:
		return t.Transpose(0, 3, 1, 2)
	}
	return t
}

// ToChannelsLast moves the channels axis from first (after the batch axis, for rank-4 tensors) to last.
//
// Tensors of rank other than 3 or 4 are returned unchanged.
func ToChannelsLast(t *tensors.Tensor) *tensors.Tensor {
	switch t.Rank() {
	case 3:
		return t.Transpose(1, 2, 0)
	case 4:
		return t.Transpose(0, 2, 3, 1)
	}
	return t
}

// ToTensor converts an image to a channels-last tensor, preserving the native pixel values:
//
//   - Grayscale images (*image.Gray, *image.Gray16) become rank-2 tensors shaped `[height, width]`.
//   - Opaque images become `[height, width, 3]` (RGB) tensors.
//   - Images with transparency become `[height, width, 4]` (RGBA, non-premultiplied) tensors.
//
// The dtype is Uint16 for 16 bits images (*image.Gray16, *image.RGBA64, *image.NRGBA64) and Uint8 otherwise.
// Paletted images are expanded to RGB or RGBA.
func ToTensor(img image.Image) (*tensors.Tensor, error) {
	if img == nil {
		return nil, errors.New("images.ToTensor: nil image")
	}
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("images.ToTensor: empty image with bounds %s", img.Bounds())
	}
	switch typedImg := img.(type) {
	case *image.Gray:
		t := tensors.FromShape(shapes.Make(dtypes.Uint8, size.Y, size.X))
		tensors.MustMutableFlatData(t, func(flat []uint8) {
			for y := range size.Y {
				start := typedImg.PixOffset(typedImg.Rect.Min.X, typedImg.Rect.Min.Y+y)
				copy(flat[y*size.X:(y+1)*size.X], typedImg.Pix[start:start+size.X])
			}
		})
		return t, nil
	case *image.Gray16:
		t := tensors.FromShape(shapes.Make(dtypes.Uint16, size.Y, size.X))
		tensors.MustMutableFlatData(t, func(flat []uint16) {
			pos := 0
			for y := range size.Y {
				for x := range size.X {
					flat[pos] = typedImg.Gray16At(typedImg.Rect.Min.X+x, typedImg.Rect.Min.Y+y).Y
					pos++
				}
			}
		})
		return t, nil
	}

	channels := 4
	if isOpaque(img) {
		channels = 3
	}
	if is16Bits(img) {
		t := tensors.FromShape(shapes.Make(dtypes.Uint16, size.Y, size.X, channels))
		tensors.MustMutableFlatData(t, func(flat []uint16) {
			pos := 0
			forEachPixel(img, func(c color.Color) {
				nc := color.NRGBA64Model.Convert(c).(color.NRGBA64)
				values := [4]uint16{nc.R, nc.G, nc.B, nc.A}
				for _, v := range values[:channels] {
					flat[pos] = v
					pos++
				}
			})
		})
		return t, nil
	}
	t := tensors.FromShape(shapes.Make(dtypes.Uint8, size.Y, size.X, channels))
	tensors.MustMutableFlatData(t, func(flat []uint8) {
		pos := 0
		forEachPixel(img, func(c color.Color) {
			nc := color.NRGBAModel.Convert(c).(color.NRGBA)
			values := [4]uint8{nc.R, nc.G, nc.B, nc.A}
			for _, v := range values[:channels] {
				flat[pos] = v
				pos++
			}
		})
	})
	return t, nil
}

// forEachPixel calls fn for every pixel of img, in row-major order.
func forEachPixel(img image.Image, fn func(c color.Color)) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			fn(img.At(x, y))
		}
	}
}

func is16Bits(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return true
	}
	return false
}

// isOpaque uses the image's own Opaque() method if available, otherwise it scans the alpha of the pixels.
func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	opaque := true
	forEachPixel(img, func(c color.Color) {
		if _, _, _, a := c.RGBA(); a != 0xFFFF {
			opaque = false
		}
	})
	return opaque
}

// Image modes accepted by ToImageConfig.Mode.
const (
	ModeInferred = ""
	ModeGray     = "L"
	ModeGray16   = "I;16"
	ModeRGB      = "RGB"
	ModeRGBA     = "RGBA"
)

// ToImageConfig holds the configuration returned by the ToImage function. Once
// configured, use Single to actually convert a tensor to an image.
type ToImageConfig struct {
	mode string
}

// ToImage returns a configuration that can be used to convert tensors to Images.
func ToImage() *ToImageConfig {
	return &ToImageConfig{}
}

// Mode sets the image mode of the conversion: "L" (8 bits grayscale), "I;16" (16 bits grayscale),
// "RGB" or "RGBA". The default (empty) mode is inferred from the number of channels and the dtype.
//
// It returns the ToImageConfig object, so configuration calls can be cascaded.
func (ti *ToImageConfig) Mode(mode string) *ToImageConfig {
	ti.mode = mode
	return ti
}

// Single converts a channels-last tensor to an image. The tensor must be rank-2 (`[height, width]`,
// grayscale) or rank-3 (`[height, width, channels]`) with 1, 3 or 4 channels, and dtype Uint8 or Uint16.
// Values are taken as they are, no rescaling happens.
//
// Grayscale tensors become *image.Gray (or *image.Gray16), and color tensors become *image.NRGBA
// (or *image.NRGBA64), with alpha set to opaque for 3 channels.
func (ti *ToImageConfig) Single(t *tensors.Tensor) (image.Image, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	dtype := t.DType()
	if dtype != dtypes.Uint8 && dtype != dtypes.Uint16 {
		return nil, errors.Wrapf(ErrUnsupportedDType, "tensor %s (only Uint8 and Uint16 are supported)", t.Shape())
	}
	var height, width, channels int
	switch t.Rank() {
	case 2:
		height, width, channels = t.Shape().Dimensions[0], t.Shape().Dimensions[1], 1
	case 3:
		height, width, channels = t.Shape().Dimensions[0], t.Shape().Dimensions[1], t.Shape().Dimensions[2]
	default:
		return nil, errors.Wrapf(ErrUnsupportedShape, "tensor %s must be rank-2 or rank-3", t.Shape())
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, errors.Wrapf(ErrUnsupportedShape, "tensor %s has %d channels, only 1, 3 or 4 are supported",
			t.Shape(), channels)
	}

	mode := ti.mode
	inferred := inferMode(channels, dtype)
	switch mode {
	case ModeInferred:
		mode = inferred
	case ModeGray, ModeGray16, ModeRGB, ModeRGBA:
		if mode != inferred {
			return nil, errors.Wrapf(ErrInvalidMode, "mode %q incompatible with tensor %s (expected %q)",
				mode, t.Shape(), inferred)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidMode, "unknown mode %q", mode)
	}

	rect := image.Rect(0, 0, width, height)
	var img draw.Image
	if dtype == dtypes.Uint8 {
		var flat []uint8
		tensors.MustConstFlatData(t, func(f []uint8) { flat = f })
		switch mode {
		case ModeGray:
			grayImg := image.NewGray(rect)
			copy(grayImg.Pix, flat)
			return grayImg, nil
		case ModeRGB, ModeRGBA:
			nrgba := image.NewNRGBA(rect)
			for pixel := range height * width {
				copy(nrgba.Pix[pixel*4:pixel*4+channels], flat[pixel*channels:(pixel+1)*channels])
				if channels == 3 {
					nrgba.Pix[pixel*4+3] = 255
				}
			}
			return nrgba, nil
		}
	}

	var flat []uint16
	tensors.MustConstFlatData(t, func(f []uint16) { flat = f })
	switch mode {
	case ModeGray16:
		gray16 := image.NewGray16(rect)
		img = gray16
		for pixel, v := range flat {
			gray16.SetGray16(pixel%width, pixel/width, color.Gray16{Y: v})
		}
	default:
		nrgba64 := image.NewNRGBA64(rect)
		img = nrgba64
		for pixel := range height * width {
			c := color.NRGBA64{A: 0xFFFF}
			values := flat[pixel*channels : (pixel+1)*channels]
			c.R, c.G, c.B = values[0], values[1], values[2]
			if channels == 4 {
				c.A = values[3]
			}
			nrgba64.SetNRGBA64(pixel%width, pixel/width, c)
		}
	}
	return img, nil
}

// inferMode returns the image mode for the given number of channels and dtype.
// Single channel tensors are grayscale, and 16 bits color tensors keep the RGB/RGBA names.
func inferMode(channels int, dtype dtypes.DType) string {
	switch channels {
	case 1:
		if dtype == dtypes.Uint16 {
			return ModeGray16
		}
		return ModeGray
	case 3:
		return ModeRGB
	default:
		return ModeRGBA
	}
}
