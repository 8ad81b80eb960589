// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types an image tensor can hold.
//
// It includes converters to/from Go native types (and reflect.Type), the value ranges of each type,
// and constraint interfaces to be used with generics (Supported, Number).
package dtypes

import (
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// panicf panics with the formatted description.
//
// It is only used for "bugs in the code" -- when parameters don't follow the specifications.
func panicf(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}

// DType is an enum that represents the data type of the elements of a tensor.
type DType int32

const (
	// InvalidDType is the zero value, used to flag a DType that was not set.
	InvalidDType DType = iota
	Uint8
	Uint16
	Int16
	Int32
	Int64
	Float16
	Float32
	Float64
)

var dtypeNames = [...]string{
	InvalidDType: "InvalidDType",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
}

// MapOfNames maps the DType names (and their lower-case and numpy-like aliases) to the DType.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"Uint8":        Uint8,
	"Uint16":       Uint16,
	"Int16":        Int16,
	"Int32":        Int32,
	"Int64":        Int64,
	"Float16":      Float16,
	"Float32":      Float32,
	"Float64":      Float64,
	"U8":           Uint8,
	"U16":          Uint16,
	"F16":          Float16,
	"F32":          Float32,
	"F64":          Float64,
}

func init() {
	if strconv.IntSize != 32 && strconv.IntSize != 64 {
		panicf("cannot use int of %d bits -- only platforms with int32 or int64 are supported", strconv.IntSize)
	}

	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if lowerKey == key {
			continue
		}
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(dtypeNames) {
		return "DType(" + strconv.Itoa(int(dtype)) + ")"
	}
	return dtypeNames[dtype]
}

// Parse returns the DType for the given name, accepting the aliases in MapOfNames.
func Parse(name string) (DType, error) {
	dtype, found := MapOfNames[name]
	if !found {
		dtype, found = MapOfNames[strings.ToLower(name)]
	}
	if !found || dtype == InvalidDType {
		return InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

// Supported lists the Go types a tensor can hold: the flat storage of a tensor is always a slice
// of one of these types. Used as traits for generics.
//
// Go's `int` is not included since it is not portable: it may translate to Int32 or Int64 depending
// on the platform.
type Supported interface {
	float16.Float16 | float32 | float64 | int16 | int32 | int64 | uint8 | uint16
}

// Number represents the native Go numeric types, so arithmetic can be written generically.
// It doesn't include float16.Float16 because it is not a native number type.
type Number interface {
	constraints.Integer | constraints.Float
}

// FromGenericsType returns the DType enum for the given type that this package knows about.
func FromGenericsType[T Supported]() DType {
	var t T
	switch (any(t)).(type) {
	case float64:
		return Float64
	case float32:
		return Float32
	case float16.Float16:
		return Float16
	case int64:
		return Int64
	case int32:
		return Int32
	case int16:
		return Int16
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	}
	return InvalidDType
}

var float16Type = reflect.TypeOf(float16.Float16(0))

// FromGoType returns the DType for the given "reflect.Type".
// It returns InvalidDType for unsupported types.
func FromGoType(t reflect.Type) DType {
	if t == float16Type {
		return Float16
	}
	switch t.Kind() {
	case reflect.Int:
		if strconv.IntSize == 32 {
			return Int32
		}
		return Int64
	case reflect.Int64:
		return Int64
	case reflect.Int32:
		return Int32
	case reflect.Int16:
		return Int16
	case reflect.Uint16:
		return Uint16
	case reflect.Uint8:
		return Uint8
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	default:
		return InvalidDType
	}
}

// FromAny introspects the underlying type of any and returns the corresponding DType.
// Non-scalar types, or unsupported types return an InvalidType.
func FromAny(value any) DType {
	return FromGoType(reflect.TypeOf(value))
}

// GoType returns the Go `reflect.Type` corresponding to the tensor DType.
func (dtype DType) GoType() reflect.Type {
	switch dtype {
	case Int64:
		return reflect.TypeOf(int64(0))
	case Int32:
		return reflect.TypeOf(int32(0))
	case Int16:
		return reflect.TypeOf(int16(0))
	case Uint16:
		return reflect.TypeOf(uint16(0))
	case Uint8:
		return reflect.TypeOf(uint8(0))
	case Float16:
		return float16Type
	case Float32:
		return reflect.TypeOf(float32(0))
	case Float64:
		return reflect.TypeOf(float64(0))
	default:
		panicf("unknown dtype %q (%d) in DType.GoType", dtype, dtype)
		panic(nil)
	}
}

// Size returns the number of bytes for the given DType.
func (dtype DType) Size() int {
	return int(dtype.GoType().Size())
}

// Memory returns the number of bytes for the given DType.
// It's an alias to Size, converted to uintptr.
func (dtype DType) Memory() uintptr {
	return uintptr(dtype.Size())
}

// IsFloat returns whether dtype is a float type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is an integer type (signed or not).
func (dtype DType) IsInt() bool {
	return dtype == Uint8 || dtype == Uint16 || dtype == Int16 || dtype == Int32 || dtype == Int64
}

// IsUnsigned returns whether dtype is one of the unsigned types.
func (dtype DType) IsUnsigned() bool {
	return dtype == Uint8 || dtype == Uint16
}

// IsValid returns whether dtype is one of the enumerated types, other than InvalidDType.
func (dtype DType) IsValid() bool {
	return dtype > InvalidDType && dtype <= Float64
}

// LowestValue for dtype as a float64. For float values it returns negative infinity.
func (dtype DType) LowestValue() float64 {
	switch dtype {
	case Uint8, Uint16:
		return 0
	case Int16:
		return math.MinInt16
	case Int32:
		return math.MinInt32
	case Int64:
		return math.MinInt64
	default:
		return math.Inf(-1)
	}
}

// HighestValue for dtype as a float64. For float values it returns infinity.
func (dtype DType) HighestValue() float64 {
	switch dtype {
	case Uint8:
		return math.MaxUint8
	case Uint16:
		return math.MaxUint16
	case Int16:
		return math.MaxInt16
	case Int32:
		return math.MaxInt32
	case Int64:
		return math.MaxInt64
	default:
		return math.Inf(1)
	}
}
