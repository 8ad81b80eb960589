// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/shapes"
	"github.com/x448/float16"
)

// Slice returns the sub-tensor at the given index of the first axis. The result has rank one less
// than t and shares the storage with t (no copy).
//
// It panics if t is a scalar or if the index is out-of-bounds.
func (t *Tensor) Slice(index int) *Tensor {
	t.AssertValid()
	if t.Rank() == 0 {
		exceptions.Panicf("Tensor.Slice(%d) not possible for scalar tensor %s", index, t.shape)
	}
	if index < 0 || index >= t.shape.Dimensions[0] {
		exceptions.Panicf("Tensor.Slice(%d) out-of-bounds for tensor %s", index, t.shape)
	}
	subShape := shapes.Make(t.shape.DType, t.shape.Dimensions[1:]...)
	subSize := subShape.Size()
	flat := reflect.ValueOf(t.flat).Slice(index*subSize, (index+1)*subSize).Interface()
	return fromFlat(subShape, flat)
}

// Reshape returns a view of the tensor with the given dimensions, sharing the storage with t.
//
// It panics if the new dimensions don't have the same size.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	t.AssertValid()
	newShape := shapes.Make(t.shape.DType, dimensions...)
	if newShape.Size() != t.shape.Size() {
		exceptions.Panicf("Tensor.Reshape(%v): tensor %s has %d elements, new shape %s has %d elements",
			dimensions, t.shape, t.shape.Size(), newShape, newShape.Size())
	}
	return fromFlat(newShape, t.flat)
}

// Squeeze returns a view of the tensor with all axes of dimension 1 removed, sharing the storage with t.
func (t *Tensor) Squeeze() *Tensor {
	t.AssertValid()
	return fromFlat(t.shape.Squeeze(), t.flat)
}

// Transpose returns a new tensor with the axes permuted: axis `ii` of the result is axis
// `permutation[ii]` of t.
//
// It panics if permutation is not a permutation of the axes of t.
func (t *Tensor) Transpose(permutation ...int) *Tensor {
	t.AssertValid()
	rank := t.Rank()
	if len(permutation) != rank {
		exceptions.Panicf("Tensor.Transpose(%v): permutation must have one entry per axis of %s", permutation, t.shape)
	}
	seen := make([]bool, rank)
	for _, axis := range permutation {
		if axis < 0 || axis >= rank || seen[axis] {
			exceptions.Panicf("Tensor.Transpose(%v): invalid permutation for tensor %s", permutation, t.shape)
		}
		seen[axis] = true
	}
	newDims := make([]int, rank)
	for ii, axis := range permutation {
		newDims[ii] = t.shape.Dimensions[axis]
	}
	newShape := shapes.Make(t.shape.DType, newDims...)
	srcStrides := t.shape.Strides()
	indices := make([]int, newShape.Size())
	for flatIdx, newIndices := range newShape.Iter() {
		srcIdx := 0
		for ii, axis := range permutation {
			srcIdx += newIndices[ii] * srcStrides[axis]
		}
		indices[flatIdx] = srcIdx
	}
	return fromFlat(newShape, gatherFlat(t.flat, indices))
}

// ReverseAxis returns a new tensor with the order of the elements along the given axis reversed.
// Negative axes count from the end (-1 is the last axis).
func (t *Tensor) ReverseAxis(axis int) *Tensor {
	t.AssertValid()
	rank := t.Rank()
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += rank
	}
	if adjustedAxis < 0 || adjustedAxis >= rank {
		exceptions.Panicf("Tensor.ReverseAxis(%d) out-of-bounds for tensor %s", axis, t.shape)
	}
	strides := t.shape.Strides()
	dim := t.shape.Dimensions[adjustedAxis]
	indices := make([]int, t.Size())
	for flatIdx, idx := range t.shape.Iter() {
		indices[flatIdx] = flatIdx + (dim-1-2*idx[adjustedAxis])*strides[adjustedAxis]
	}
	return fromFlat(t.shape.Clone(), gatherFlat(t.flat, indices))
}

func gather[T dtypes.Supported](src []T, indices []int) []T {
	dst := make([]T, len(indices))
	for ii, srcIdx := range indices {
		dst[ii] = src[srcIdx]
	}
	return dst
}

// gatherFlat returns a new flat slice (of the same type as flat) with the elements at the given indices.
func gatherFlat(flat any, indices []int) any {
	switch src := flat.(type) {
	case []uint8:
		return gather(src, indices)
	case []uint16:
		return gather(src, indices)
	case []int16:
		return gather(src, indices)
	case []int32:
		return gather(src, indices)
	case []int64:
		return gather(src, indices)
	case []float16.Float16:
		return gather(src, indices)
	case []float32:
		return gather(src, indices)
	case []float64:
		return gather(src, indices)
	}
	exceptions.Panicf("tensors: unsupported flat data type %T", flat)
	return nil
}

func toFloat64s[T dtypes.Number](src []T) []float64 {
	dst := make([]float64, len(src))
	for ii, v := range src {
		dst[ii] = float64(v)
	}
	return dst
}

// Float64s returns a copy of the values of the tensor converted to float64.
func (t *Tensor) Float64s() []float64 {
	t.AssertValid()
	switch src := t.flat.(type) {
	case []uint8:
		return toFloat64s(src)
	case []uint16:
		return toFloat64s(src)
	case []int16:
		return toFloat64s(src)
	case []int32:
		return toFloat64s(src)
	case []int64:
		return toFloat64s(src)
	case []float32:
		return toFloat64s(src)
	case []float64:
		return slices.Clone(src)
	case []float16.Float16:
		dst := make([]float64, len(src))
		for ii, v := range src {
			dst[ii] = float64(v.Float32())
		}
		return dst
	}
	exceptions.Panicf("tensors: unsupported flat data type %T", t.flat)
	return nil
}

// saturate converts v to an integer type: values are truncated toward zero and clamped to the
// range of the dtype. NaN is converted to 0.
func saturate(v float64, dtype dtypes.DType) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Trunc(v)
	return max(dtype.LowestValue(), min(dtype.HighestValue(), v))
}

func fromFloat64sInt[T dtypes.Number](values []float64, dtype dtypes.DType) []T {
	dst := make([]T, len(values))
	for ii, v := range values {
		dst[ii] = T(saturate(v, dtype))
	}
	return dst
}

// FromFloat64s creates a tensor of the given dtype and dimensions from float64 values.
//
// For integer dtypes, the values are truncated toward zero and saturated to the range of the dtype.
func FromFloat64s(values []float64, dtype dtypes.DType, dimensions ...int) *Tensor {
	shape := shapes.Make(dtype, dimensions...)
	if len(values) != shape.Size() {
		exceptions.Panicf("FromFloat64s(%s): %d values given, but shape has size %d", shape, len(values), shape.Size())
	}
	var flat any
	switch dtype {
	case dtypes.Uint8:
		flat = fromFloat64sInt[uint8](values, dtype)
	case dtypes.Uint16:
		flat = fromFloat64sInt[uint16](values, dtype)
	case dtypes.Int16:
		flat = fromFloat64sInt[int16](values, dtype)
	case dtypes.Int32:
		flat = fromFloat64sInt[int32](values, dtype)
	case dtypes.Int64:
		flat = fromFloat64sInt[int64](values, dtype)
	case dtypes.Float16:
		dst := make([]float16.Float16, len(values))
		for ii, v := range values {
			dst[ii] = float16.Fromfloat32(float32(v))
		}
		flat = dst
	case dtypes.Float32:
		dst := make([]float32, len(values))
		for ii, v := range values {
			dst[ii] = float32(v)
		}
		flat = dst
	case dtypes.Float64:
		flat = slices.Clone(values)
	default:
		exceptions.Panicf("FromFloat64s: unsupported dtype %s", dtype)
	}
	return fromFlat(shape, flat)
}

// ConvertDType returns a new tensor with the values converted to the given dtype.
// If the dtype is already the same, it returns a clone.
//
// Conversions to integer dtypes truncate toward zero and saturate.
func (t *Tensor) ConvertDType(dtype dtypes.DType) *Tensor {
	t.AssertValid()
	if dtype == t.DType() {
		return t.Clone()
	}
	return FromFloat64s(t.Float64s(), dtype, t.shape.Dimensions...)
}

// MinMax returns the minimum and maximum values of the tensor, as float64.
// NaN values are ignored. For an empty tensor both are NaN.
func (t *Tensor) MinMax() (minValue, maxValue float64) {
	minValue, maxValue = math.NaN(), math.NaN()
	for _, v := range t.Float64s() {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(minValue) || v < minValue {
			minValue = v
		}
		if math.IsNaN(maxValue) || v > maxValue {
			maxValue = v
		}
	}
	return
}

// String implements fmt.Stringer. It prints the shape and, for small tensors, its values.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	const maxValues = 16
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%s", t.shape)
	if t.flat == nil || t.Size() > maxValues {
		return sb.String()
	}
	fmt.Fprintf(&sb, "%v", t.flat)
	return sb.String()
}
