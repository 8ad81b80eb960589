// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"image"
	"testing"

	"github.com/gomlx/imageset/pkg/core/tensors/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayout(t *testing.T) {
	from := New("a", WithChannelsFirst(true))
	to := New("b", WithReverseColor(true))
	rgb := testTensor(0, 2, 3, 3)
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	c := NewMapping(map[string]Item{
		"t":   {Tensor: from.FromCanonical(rgb), Label: 7},
		"img": {Image: img},
	})
	converted := Relayout(c, from, to)
	item, found := converted.Get("t")
	require.True(t, found)
	assert.True(t, images.ReverseChannels(rgb, images.ChannelsLast).Equal(item.Tensor))
	assert.Equal(t, 7, item.Label)
	item, _ = converted.Get("img")
	assert.Same(t, img, item.Image)

	// Original collection is not changed.
	item, _ = c.Get("t")
	assert.Equal(t, []int{3, 2, 3}, item.Tensor.Shape().Dimensions)

	stacked := NewStacked(testTensor(0, 2, 2, 3, 3))
	assert.True(t, stacked.Stack.Equal(Relayout(Relayout(stacked, to, from), from, to).Stack))
	assert.Equal(t, []int{2, 3, 2, 3}, Relayout(stacked, to, from).Stack.Shape().Dimensions)
}

func TestTensors(t *testing.T) {
	ds := New("a", WithChannelsFirst(true))
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for ii := range img.Pix {
		img.Pix[ii] = 255
	}
	named, err := ds.Tensors(NewSequence([]Item{{Image: img}, {Tensor: testTensor(1, 3, 2, 2)}}))
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, []int{3, 2, 4}, named["00000"].Shape().Dimensions)
	assert.Equal(t, []int{3, 2, 2}, named["00001"].Shape().Dimensions)

	_, err = ds.Tensors(NewSequence([]Item{{}}))
	assert.Error(t, err)
}
