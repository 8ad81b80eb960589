// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"image"
	"testing"

	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/shapes"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	rgb := tensors.FromShape(shapes.Make(dtypes.Uint8, 2, 2, 3))
	gray := tensors.FromShape(shapes.Make(dtypes.Uint8, 2, 2))
	stack := tensors.FromShape(shapes.Make(dtypes.Uint8, 3, 2, 2, 3))
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	testCases := []struct {
		name string
		data any
		kind Kind
		len  int
	}{
		{"rank-3 tensor", rgb, KindSingle, 1},
		{"rank-2 tensor", gray, KindSingle, 1},
		{"rank-4 tensor", stack, KindStacked, 3},
		{"image", img, KindSingle, 1},
		{"item", Item{Tensor: rgb, Label: 1}, KindSingle, 1},
		{"map of tensors", map[string]*tensors.Tensor{"a": rgb, "b": gray}, KindMapping, 2},
		{"map of any", map[string]any{"a": rgb, "b": img, "c": Item{Image: img}}, KindMapping, 3},
		{"parallel", map[string]any{"images": []any{rgb, img}, "names": []string{"x", "y"}}, KindParallel, 2},
		{"parallel stack", map[string]any{"images": stack, "names": []any{"x", "y", "z"}}, KindParallel, 3},
		{"slice of images", []image.Image{img, img}, KindSequence, 2},
		{"slice of any", []any{img, rgb, Item{Tensor: gray, Label: "cat"}}, KindSequence, 3},
		{"collection", NewSequence([]Item{{Tensor: rgb}}), KindSequence, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Classify(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, c.Kind)
			assert.Equal(t, tc.len, c.Len())
		})
	}

	// A mapping with more keys than "images" and "names" is a plain mapping.
	c, err := Classify(map[string]any{"images": rgb, "names": gray, "other": rgb})
	require.NoError(t, err)
	assert.Equal(t, KindMapping, c.Kind)
	assert.Equal(t, []string{"images", "names", "other"}, c.Names)
}

func TestClassifyErrors(t *testing.T) {
	_, err := Classify(tensors.FromShape(shapes.Make(dtypes.Uint8, 5)))
	require.ErrorIs(t, err, ErrUnsupportedRank)
	_, err = Classify(tensors.FromShape(shapes.Make(dtypes.Uint8, 1, 2, 2, 2, 3)))
	require.ErrorIs(t, err, ErrUnsupportedRank)

	for _, data := range []any{"image.png", 42, []string{"a"}, map[string]any{"a": 1}, []any{nil}, Item{}, nil,
		map[string]any{"images": []any{}, "names": "x"}} {
		_, err = Classify(data)
		require.ErrorIs(t, err, ErrUnsupportedType, "data=%#v", data)
	}
}

func TestCollection(t *testing.T) {
	a := tensors.FromScalarAndDimensions(uint8(1), 2, 2)
	b := tensors.FromScalarAndDimensions(uint8(2), 2, 2)
	c := NewMapping(map[string]Item{"dog": {Tensor: b}, "cat": {Tensor: a}})
	assert.Equal(t, []string{"cat", "dog"}, c.Names)
	item, found := c.Get("dog")
	require.True(t, found)
	assert.Same(t, b, item.Tensor)
	_, found = c.Get("bird")
	assert.False(t, found)

	seq := NewSequence([]Item{{Tensor: a}, {Tensor: b}})
	m := seq.Mapping()
	assert.Len(t, m, 2)
	assert.Same(t, b, m["00001"].Tensor)

	stacked := NewStacked(tensors.FromShape(shapes.Make(dtypes.Uint8, 2, 2, 2, 1)))
	assert.Len(t, stacked.Mapping(), 2)
	assert.Equal(t, "Collection(Stacked, stack=(Uint8)[2 2 2 1])", stacked.String())
	assert.Equal(t, "00042", IndexName(42))
}
