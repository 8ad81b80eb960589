// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/gomlx/imageset/pkg/core/tensors/images"
	"github.com/gomlx/imageset/pkg/support/imgcodec"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoadImage reads and decodes the image file at path.
//
// If asTensor is false, the decoded image.Image is returned untouched. Otherwise, it is converted to
// a channels-last tensor (see images.ToTensor), then moved to channels-first if channelsFirst is set,
// and finally the order of the channels is reversed (RGB -> BGR) if reverseColor is set.
func LoadImage(path string, decodeOpts imgcodec.DecodeOptions, asTensor, channelsFirst, reverseColor bool) (Item, error) {
	img, err := imgcodec.Open(path, decodeOpts)
	if err != nil {
		return Item{}, err
	}
	klog.V(1).Infof("imageset: loaded %q (%T, %s)", path, img, img.Bounds().Size())
	if !asTensor {
		return Item{Image: img}, nil
	}
	t, err := images.ToTensor(img)
	if err != nil {
		return Item{}, errors.WithMessagef(err, "failed to convert image %q to tensor", path)
	}
	t = fromChannelsLast(t, channelsFirst, reverseColor)
	return Item{Tensor: t}, nil
}

// fromChannelsLast converts a channels-last tensor to the dataset's layout.
func fromChannelsLast(t *tensors.Tensor, channelsFirst, reverseColor bool) *tensors.Tensor {
	config := images.ChannelsLast
	if channelsFirst {
		t = images.ToChannelsFirst(t)
		config = images.ChannelsFirst
	}
	if reverseColor {
		t = images.ReverseChannels(t, config)
	}
	return t
}

// toChannelsLast converts a tensor in the dataset's layout to channels-last, with RGB order.
//
// The color is reversed after the layout conversion, so it is done on the channels-last axis.
func toChannelsLast(t *tensors.Tensor, channelsFirst, reverseColor bool) *tensors.Tensor {
	if channelsFirst {
		t = images.ToChannelsLast(t)
	}
	if reverseColor {
		t = images.ReverseChannels(t, images.ChannelsLast)
	}
	return t
}

// tryCatch converts panics (e.g. from invalid tensor shapes) raised by fn into errors.
func tryCatch(fn func() error) (err error) {
	if panicErr := exceptions.TryCatch[error](func() { err = fn() }); panicErr != nil {
		return panicErr
	}
	return err
}
