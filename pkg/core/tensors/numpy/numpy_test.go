// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package numpy

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNpy(t *testing.T) {
	for _, tensor := range []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions([]uint8{1, 2, 3, 4, 5, 6}, 2, 3),
		tensors.FromFlatDataAndDimensions([]float32{1.5, -2}, 2),
		tensors.FromFlatDataAndDimensions([]int64{-7}),
		tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5)}, 1, 1, 1),
	} {
		var buf bytes.Buffer
		require.NoError(t, ToNpyWriter(tensor, &buf))
		assert.Zero(t, (buf.Len()-tensor.Shape().Size()*tensor.DType().Size())%64, "header must be 64-byte aligned")
		got, err := FromNpyReader(&buf)
		require.NoError(t, err)
		assert.True(t, tensor.Equal(got), "got %s, want %s", got, tensor)
	}
}

func npyBytes(header string, data any) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	_ = binary.Write(&buf, binary.LittleEndian, data)
	return buf.Bytes()
}

func TestNpyFortranOrder(t *testing.T) {
	// Column-major [[1, 2, 3], [4, 5, 6]].
	data := npyBytes("{'descr': '<i4', 'fortran_order': True, 'shape': (2, 3), }\n",
		[]int32{1, 4, 2, 5, 3, 6})
	got, err := FromNpyReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3).Equal(got))
}

func TestNpyErrors(t *testing.T) {
	_, err := FromNpyReader(bytes.NewReader([]byte("not a numpy file")))
	assert.Error(t, err)

	_, err = FromNpyReader(bytes.NewReader(
		npyBytes("{'descr': '>f4', 'fortran_order': False, 'shape': (1,), }\n", []float32{1})))
	assert.ErrorContains(t, err, "big-endian")

	_, err = FromNpyReader(bytes.NewReader(
		npyBytes("{'descr': '<c8', 'fortran_order': False, 'shape': (1,), }\n", []float32{1, 2})))
	assert.ErrorContains(t, err, "unsupported NumPy dtype")

	// Truncated data.
	_, err = FromNpyReader(bytes.NewReader(
		npyBytes("{'descr': '|u1', 'fortran_order': False, 'shape': (4,), }\n", []uint8{1, 2})))
	assert.Error(t, err)
}

func TestNpz(t *testing.T) {
	named := map[string]*tensors.Tensor{
		"cat":   tensors.FromFlatDataAndDimensions([]uint8{1, 2, 3}, 1, 1, 3),
		"dog":   tensors.FromFlatDataAndDimensions([]uint16{1000, 2000}, 2, 1),
		"empty": tensors.FromFlatDataAndDimensions([]float64{}, 0, 3),
	}
	filePath := filepath.Join(t.TempDir(), "images.npz")
	require.NoError(t, ToNpzFile(named, filePath))
	got, err := FromNpzFile(filePath)
	require.NoError(t, err)
	require.Len(t, got, len(named))
	for name, want := range named {
		assert.True(t, want.Equal(got[name]), "tensor %q", name)
		assert.Equal(t, want.DType(), got[name].DType())
	}
	assert.Equal(t, dtypes.Uint16, got["dog"].DType())
}
