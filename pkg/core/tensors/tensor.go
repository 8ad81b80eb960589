// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, a host (CPU) representation of a multidimensional array.
//
// Tensors are defined by their shape (a data type and its axes' dimensions) and their actual content,
// stored as a flat (1D) Go slice of the underlying dtype, in row-major order.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]uint8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given.
//
// Views: Tensor.Slice, Tensor.Reshape and Tensor.Squeeze return tensors that share the storage with
// the original one. All other operations return new tensors.
package tensors

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Tensor represents a multidimensional array, defined by its shape -- a data type (dtypes.DType) and its
// axes' dimensions -- and its actual content stored as a flat (1D) slice of values.
//
// A Tensor is not safe for concurrent mutation, but can be read concurrently.
type Tensor struct {
	shape shapes.Shape

	// flat is a []T slice, where T is the Go type of shape.DType.
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	size := shape.Size()
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size).Interface()
	return &Tensor{shape: shape, flat: flat}
}

// fromFlat creates a tensor that takes ownership (or shares) the given flat slice.
func fromFlat(shape shapes.Shape, flat any) *Tensor {
	return &Tensor{shape: shape, flat: flat}
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The `DType` is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	t := FromShape(shapes.Make(dtype, dimensions...))
	MustMutableFlatData(t, func(flat []T) {
		for ii := range flat {
			flat[ii] = value
		}
	})
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf(
			"FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape,
			len(data),
			shape.Size(),
		)
	}
	flat := make([]T, len(data))
	copy(flat, data)
	return fromFlat(shape, flat)
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank returns the rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor's values.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// CheckValid returns an error if the tensor is nil or has no storage.
func (t *Tensor) CheckValid() error {
	if t == nil {
		return errors.New("Tensor is nil")
	}
	if !t.shape.Ok() || t.flat == nil {
		return errors.Errorf("Tensor(shape=%s) has no storage", t.shape)
	}
	return nil
}

// AssertValid panics if the tensor is nil or has no storage.
func (t *Tensor) AssertValid() {
	if err := t.CheckValid(); err != nil {
		panic(err)
	}
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// Even scalar values have a flattened data representation of one element.
//
// The slice is owned by the Tensor (it is not a copy) and should not be changed.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
//
// Changes are visible by any view (see Slice, Reshape, Squeeze) sharing the same storage.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the flattened data as a slice of T.
//
// It is the "generics" version of Tensor.ConstFlatData. It returns an error if T doesn't match the
// tensor's dtype.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	flat, ok := t.flat.([]T)
	if !ok {
		var v T
		return errors.Errorf("ConstFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	accessFn(flat)
	return nil
}

// MustConstFlatData is like ConstFlatData, but panics on error.
func MustConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if err := ConstFlatData(t, accessFn); err != nil {
		panic(err)
	}
}

// MutableFlatData calls accessFn with the flattened data as a mutable slice of T.
//
// It is the "generics" version of Tensor.MutableFlatData. It returns an error if T doesn't match the
// tensor's dtype.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) error {
	return ConstFlatData(t, accessFn)
}

// MustMutableFlatData is like MutableFlatData, but panics on error.
func MustMutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if err := MutableFlatData(t, accessFn); err != nil {
		panic(err)
	}
}

// CopyFlatData returns a copy of the flat data of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) (flatCopy []T, err error) {
	err = ConstFlatData(t, func(flat []T) {
		flatCopy = make([]T, len(flat))
		copy(flatCopy, flat)
	})
	return
}

// Clone returns a deep copy of the tensor, with its own storage.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	cloneV := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(cloneV, flatV)
	return fromFlat(t.shape.Clone(), cloneV.Interface())
}

// Equal checks weather t == otherTensor.
// If they are the same pointer, they are considered equal.
// If the shapes are different, it returns false.
// If either side is invalid (nil), it panics.
//
// Slow implementation: fine for small tensors, but write something specialized for the DType if speed is desired.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	t0V := reflect.ValueOf(t.flat)
	t1V := reflect.ValueOf(otherTensor.flat)
	for ii := range t0V.Len() {
		if !t0V.Index(ii).Equal(t1V.Index(ii)) {
			return false
		}
	}
	return true
}

// InDelta checks weather Abs(t - otherTensor) <= delta for every element.
// The dtypes may differ, but the dimensions must be the same, otherwise it returns false.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if !t.shape.EqualDimensions(otherTensor.shape) {
		return false
	}
	values0, values1 := t.Float64s(), otherTensor.Float64s()
	for ii, v0 := range values0 {
		diff := v0 - values1[ii]
		if diff > delta || diff < -delta {
			return false
		}
	}
	return true
}
