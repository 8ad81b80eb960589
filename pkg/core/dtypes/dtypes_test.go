// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromGenericsType(t *testing.T) {
	assert.Equal(t, Uint8, FromGenericsType[uint8]())
	assert.Equal(t, Uint16, FromGenericsType[uint16]())
	assert.Equal(t, Float16, FromGenericsType[float16.Float16]())
	assert.Equal(t, Float32, FromGenericsType[float32]())
	assert.Equal(t, Float64, FromGenericsType[float64]())
	assert.Equal(t, Int64, FromGoType(reflect.TypeOf(int64(0))))
	assert.Equal(t, InvalidDType, FromAny("not a number"))
}

func TestMapOfNames(t *testing.T) {
	for _, name := range []string{"Float16", "float16", "F16", "f16"} {
		dtype, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, Float16, dtype, name)
	}
	_, err := Parse("bfloat16")
	require.Error(t, err)
	_, err = Parse("InvalidDType")
	require.Error(t, err)
}

func TestRanges(t *testing.T) {
	assert.Equal(t, 255.0, Uint8.HighestValue())
	assert.Equal(t, 0.0, Uint16.LowestValue())
	assert.True(t, math.IsInf(Float32.HighestValue(), 1))
	assert.True(t, math.IsInf(Float16.LowestValue(), -1))
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 1, Uint8.Size())
	assert.Equal(t, "Uint8", Uint8.String())
	assert.Equal(t, "DType(99)", DType(99).String())
}
