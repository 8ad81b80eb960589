// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"image"

	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/gomlx/imageset/pkg/core/tensors/images"
	"github.com/pkg/errors"
)

// StackedView indexes a stacked tensor (e.g. `[N, height, width, channels]`) along its first axis.
type StackedView struct {
	stack *tensors.Tensor
}

var _ ItemView = (*StackedView)(nil)

// NewStackedView returns a view over the sub-tensors of stack along axis 0.
func NewStackedView(stack *tensors.Tensor) (*StackedView, error) {
	if err := stack.CheckValid(); err != nil {
		return nil, errors.WithMessage(err, "datasets.NewStackedView")
	}
	if stack.Rank() == 0 {
		return nil, errors.Errorf("datasets.NewStackedView: cannot index scalar tensor %s", stack.Shape())
	}
	return &StackedView{stack: stack}, nil
}

// Len implements ItemView.
func (v *StackedView) Len() int { return v.stack.Shape().Dimensions[0] }

// At implements ItemView. The returned tensor shares the storage with the stacked tensor.
func (v *StackedView) At(i int) (*tensors.Tensor, error) {
	if i < 0 || i >= v.Len() {
		return nil, errors.Errorf("StackedView.At(%d): index out-of-bounds, view has %d items", i, v.Len())
	}
	return v.stack.Slice(i), nil
}

// ListView indexes a list of items, each either a *tensors.Tensor or an image.Image.
// Images are converted with images.ToTensor on access.
type ListView struct {
	items     []any
	transform TransformFn
}

var _ ItemView = (*ListView)(nil)

// NewListView returns a view over items. If transform is not nil, it is applied to each item
// when it is accessed. Items are validated on access.
func NewListView(items []any, transform TransformFn) *ListView {
	return &ListView{items: items, transform: transform}
}

// Len implements ItemView.
func (v *ListView) Len() int { return len(v.items) }

// At implements ItemView.
func (v *ListView) At(i int) (*tensors.Tensor, error) {
	if i < 0 || i >= len(v.items) {
		return nil, errors.Errorf("ListView.At(%d): index out-of-bounds, view has %d items", i, len(v.items))
	}
	var t *tensors.Tensor
	switch item := v.items[i].(type) {
	case *tensors.Tensor:
		t = item
	case image.Image:
		var err error
		t, err = images.ToTensor(item)
		if err != nil {
			return nil, errors.WithMessagef(err, "ListView.At(%d)", i)
		}
	default:
		return nil, errors.Errorf("ListView.At(%d): item of type %T is neither a tensor nor an image", i, item)
	}
	if v.transform == nil {
		return t, nil
	}
	transformed, err := v.transform(t)
	if err != nil {
		return nil, errors.WithMessagef(err, "ListView.At(%d): transform failed", i)
	}
	return transformed, nil
}
