// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in NumPy's .npy and .npz file formats, so image datasets
// loaded as tensors can be exchanged with Python tools.
//
// Only little-endian data of the dtypes supported by the tensors package is handled.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/shapes"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/pkg/errors"
)

const magic = "\x93NUMPY"

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// dtypeToDescr maps the dtypes to their little-endian NumPy descr.
var dtypeToDescr = map[dtypes.DType]string{
	dtypes.Uint8:   "|u1",
	dtypes.Uint16:  "<u2",
	dtypes.Int16:   "<i2",
	dtypes.Int32:   "<i4",
	dtypes.Int64:   "<i8",
	dtypes.Float16: "<f2",
	dtypes.Float32: "<f4",
	dtypes.Float64: "<f8",
}

// FromNpyFile reads a .npy file.
func FromNpyFile(filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	return FromNpyReader(file)
}

// FromNpyReader reads a tensor in .npy format from r.
func FromNpyReader(r io.Reader) (*tensors.Tensor, error) {
	preamble := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy magic string and version")
	}
	if string(preamble[:len(magic)]) != magic {
		return nil, errors.Errorf("invalid .npy file format: magic string mismatch")
	}
	major := preamble[len(magic)]

	var headerLen int
	switch {
	case major == 1:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(v)
	case major >= 2:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v2.0+)")
		}
		if v > 1<<20 {
			return nil, errors.Errorf("header length %d too large", v)
		}
		headerLen = int(v)
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", major, preamble[len(magic)+1])
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrapf(err, "failed to read header")
	}
	descr, dims, fortranOrder, err := parseHeader(string(header))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse .npy header")
	}
	dtype, err := descrToDType(descr)
	if err != nil {
		return nil, err
	}

	tensor := tensors.FromShape(shapes.Make(dtype, dims...))
	tensor.MutableFlatData(func(flat any) {
		err = binary.Read(r, binary.LittleEndian, flat)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor data for shape %s", tensor.Shape())
	}
	if fortranOrder && len(dims) > 1 {
		reversed := slices.Clone(dims)
		slices.Reverse(reversed)
		permutation := make([]int, len(dims))
		for axis := range permutation {
			permutation[axis] = len(dims) - 1 - axis
		}
		tensor = tensor.Reshape(reversed...).Transpose(permutation...)
	}
	return tensor, nil
}

// parseHeader extracts the descr, shape and fortran_order from the .npy header dictionary.
// Example: "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2, 3), }".
func parseHeader(header string) (descr string, dims []int, fortranOrder bool, err error) {
	m := reDescr.FindStringSubmatch(header)
	if m == nil {
		err = errors.Errorf("could not find 'descr' in header: %q", header)
		return
	}
	descr = m[1]
	m = reFortran.FindStringSubmatch(header)
	if m == nil {
		err = errors.Errorf("could not find 'fortran_order' in header: %q", header)
		return
	}
	fortranOrder = m[1] == "True"
	m = reShape.FindStringSubmatch(header)
	if m == nil {
		err = errors.Errorf("could not find 'shape' in header: %q", header)
		return
	}
	dims = []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			// Trailing comma of "(N,)" or the empty scalar shape "()".
			continue
		}
		var dim int
		dim, err = strconv.Atoi(part)
		if err != nil {
			err = errors.Wrapf(err, "invalid shape value %q in header", part)
			return
		}
		dims = append(dims, dim)
	}
	return
}

func descrToDType(descr string) (dtypes.DType, error) {
	if strings.HasPrefix(descr, ">") {
		return dtypes.InvalidDType, errors.Errorf("big-endian .npy data (%q) is not supported", descr)
	}
	kind := strings.TrimLeft(descr, "<|=")
	for dtype, known := range dtypeToDescr {
		if strings.TrimLeft(known, "<|") == kind {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported NumPy dtype %q", descr)
}

// ToNpyWriter writes the tensor to w in .npy format (version 1.0, C-order).
func ToNpyWriter(tensor *tensors.Tensor, w io.Writer) error {
	if err := tensor.CheckValid(); err != nil {
		return err
	}
	shape := tensor.Shape()
	descr, found := dtypeToDescr[shape.DType]
	if !found {
		return errors.Errorf("unsupported dtype %s for .npy", shape.DType)
	}
	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		parts := make([]string, shape.Rank())
		for ii, dim := range shape.Dimensions {
			parts[ii] = strconv.Itoa(dim)
		}
		shapeTuple = "(" + strings.Join(parts, ", ") + ")"
	}

	// Preamble (magic, version and header length) plus header must be a multiple of 64 bytes,
	// with the header terminated by a newline.
	var header bytes.Buffer
	fmt.Fprintf(&header, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	for (len(magic)+4+header.Len()+1)%64 != 0 {
		header.WriteByte(' ')
	}
	header.WriteByte('\n')

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(header.Len()))
	buf.Write(header.Bytes())
	var err error
	tensor.ConstFlatData(func(flat any) {
		err = binary.Write(&buf, binary.LittleEndian, flat)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode tensor data")
	}
	if _, err = w.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy data")
	}
	return nil
}

// ToNpyFile writes the tensor to filePath in .npy format.
func ToNpyFile(tensor *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	err = ToNpyWriter(tensor, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "failed to close .npy file %q", filePath)
	}
	return err
}

// ToNpzWriter writes the named tensors to w as a .npz archive. Entries are written in sorted order.
func ToNpzWriter(named map[string]*tensors.Tensor, w io.Writer) error {
	zipWriter := zip.NewWriter(w)
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		entryWriter, err := zipWriter.Create(name + ".npy")
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in .npz archive", name)
		}
		if err := ToNpyWriter(named[name], entryWriter); err != nil {
			return errors.WithMessagef(err, "failed to write tensor %q to .npz archive", name)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return errors.Wrapf(err, "failed to close .npz archive")
	}
	return nil
}

// ToNpzFile writes the named tensors to filePath as a .npz archive.
func ToNpzFile(named map[string]*tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npz file %q", filePath)
	}
	err = ToNpzWriter(named, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "failed to close .npz file %q", filePath)
	}
	return err
}

// FromNpzFile reads all tensors of a .npz file, keyed by their names without the ".npy" suffix.
func FromNpzFile(filePath string) (map[string]*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npz file %q", filePath)
	}
	return FromNpzReader(file, info.Size())
}

// FromNpzReader reads all tensors of a .npz archive. Entries other than .npy files are ignored.
func FromNpzReader(r io.ReaderAt, size int64) (map[string]*tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read .npz archive")
	}
	results := make(map[string]*tensors.Tensor)
	for _, f := range zipReader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("invalid path in .npz archive: %q", f.Name)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q within .npz", f.Name)
		}
		tensor, err := FromNpyReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read tensor %q from .npz", f.Name)
		}
		results[strings.TrimSuffix(f.Name, ".npy")] = tensor
	}
	return results, nil
}
