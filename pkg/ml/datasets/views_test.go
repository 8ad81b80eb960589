// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"image"
	"testing"

	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/gomlx/imageset/pkg/core/tensors/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackedView(t *testing.T) {
	stack := tensors.FromFlatDataAndDimensions([]uint8{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2, 1)
	view, err := NewStackedView(stack)
	require.NoError(t, err)
	require.Equal(t, 2, view.Len())

	item, err := view.At(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, item.Shape().Dimensions)
	assert.Equal(t, []float64{5, 6, 7, 8}, item.Float64s())

	// Items share storage with the stack.
	tensors.MustMutableFlatData(item, func(flat []uint8) { flat[0] = 50 })
	assert.Equal(t, 50.0, stack.Float64s()[4])

	_, err = view.At(2)
	require.Error(t, err)
	_, err = NewStackedView(tensors.FromScalarAndDimensions(uint8(1)))
	require.Error(t, err)
}

func TestListView(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	copy(gray.Pix, []uint8{10, 30})
	tensor := tensors.FromFlatDataAndDimensions([]float32{0, 0.5, 1}, 1, 3)

	view := NewListView([]any{gray, tensor}, nil)
	require.Equal(t, 2, view.Len())
	item, err := view.At(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 30}, item.Float64s())
	item, err = view.At(1)
	require.NoError(t, err)
	assert.Same(t, tensor, item)

	// Transform is applied lazily, on access.
	var calls int
	view = NewListView([]any{gray, tensor}, func(t *tensors.Tensor) (*tensors.Tensor, error) {
		calls++
		return images.Scale().Lower(0).Upper(200).Apply(t)
	})
	assert.Equal(t, 0, calls)
	item, err = view.At(1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, dtypes.Uint8, item.DType())
	assert.Equal(t, []float64{0, 100, 200}, item.Float64s())

	view = NewListView([]any{"not an image"}, images.Scale().Upper(1).Transform())
	_, err = view.At(0)
	require.Error(t, err)
}
