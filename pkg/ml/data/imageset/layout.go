// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/gomlx/imageset/pkg/core/tensors/images"
	"github.com/pkg/errors"
)

// ToCanonical converts a tensor in the dataset layout (see WithChannelsFirst and WithReverseColor)
// to channels-last with RGB order.
func (ds *Dataset) ToCanonical(t *tensors.Tensor) *tensors.Tensor {
	return toChannelsLast(t, ds.channelsFirst, ds.reverseColor)
}

// FromCanonical converts a channels-last RGB tensor to the dataset layout.
func (ds *Dataset) FromCanonical(t *tensors.Tensor) *tensors.Tensor {
	return fromChannelsLast(t, ds.channelsFirst, ds.reverseColor)
}

// Relayout converts the tensors of a collection loaded from one dataset to the layout of another
// dataset, so it can be saved there. Images and labels are kept as they are.
func Relayout(c Collection, from, to *Dataset) Collection {
	if from.channelsFirst == to.channelsFirst && from.reverseColor == to.reverseColor {
		return c
	}
	convert := func(t *tensors.Tensor) *tensors.Tensor {
		return to.FromCanonical(from.ToCanonical(t))
	}
	converted := c
	if c.Stack != nil {
		converted.Stack = convert(c.Stack)
	}
	if c.Items != nil {
		converted.Items = make([]Item, len(c.Items))
		for ii, item := range c.Items {
			if item.Tensor != nil {
				item.Tensor = convert(item.Tensor)
			}
			converted.Items[ii] = item
		}
	}
	return converted
}

// Tensors returns the collection items as tensors in the dataset layout, keyed by their names
// (see Collection.Mapping). Native images are converted.
func (ds *Dataset) Tensors(c Collection) (map[string]*tensors.Tensor, error) {
	named := make(map[string]*tensors.Tensor, c.Len())
	for name, item := range c.Mapping() {
		if item.IsTensor() {
			named[name] = item.Tensor
			continue
		}
		if item.Image == nil {
			return nil, errors.Errorf("item %q is empty", name)
		}
		t, err := images.ToTensor(item.Image)
		if err != nil {
			return nil, errors.WithMessagef(err, "item %q", name)
		}
		named[name] = ds.FromCanonical(t)
	}
	return named, nil
}
