// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package datasets provides indexable views over collections of images, used to iterate over
// the elements of a stacked tensor (a batch of images) or a list of images/tensors uniformly,
// optionally applying a transformation lazily on access.
package datasets

import (
	"github.com/gomlx/imageset/pkg/core/tensors"
)

// ItemView is a read-only, indexable collection of image tensors.
type ItemView interface {
	// Len returns the number of items.
	Len() int

	// At returns the i-th item, as a tensor.
	At(i int) (*tensors.Tensor, error)
}

// TransformFn transforms one item of a view. It is applied lazily, when the item is accessed.
//
// See images.Scaler.Transform for an example.
type TransformFn func(t *tensors.Tensor) (*tensors.Tensor, error)
