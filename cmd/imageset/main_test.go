// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/gomlx/imageset/pkg/core/tensors/numpy"
	"github.com/gomlx/imageset/pkg/ml/data/imageset"
	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
src:
  path: src
  save_args: {suffix: .png}

dst:
  path: dst
  channel_first: true
  save_args: {suffix: .png}
  versioned: true
`

func testImages() []*tensors.Tensor {
	var list []*tensors.Tensor
	for seed := range 2 {
		data := make([]uint8, 2*3*3)
		for ii := range data {
			data[ii] = uint8(seed*50 + ii*7)
		}
		list = append(list, tensors.FromFlatDataAndDimensions(data, 2, 3, 3))
	}
	return list
}

// setupCatalog writes the test catalog and the "src" dataset, and points -catalog to it.
func setupCatalog(t *testing.T) string {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0644))
	require.NoError(t, imageset.New(filepath.Join(dir, "src"), imageset.WithSaveArgs(options.Options{"suffix": ".png"})).
		Save(testImages()))
	previous := *flagCatalog
	*flagCatalog = catalogPath
	t.Cleanup(func() { *flagCatalog = previous })
	return dir
}

func TestConvertToVersioned(t *testing.T) {
	dir := setupCatalog(t)
	require.NoError(t, convert(io.Discard, []string{"src", "dst"}))

	dst, err := dataset("dst")
	require.NoError(t, err)
	versionsList, err := dst.Resolver().ListVersions()
	require.NoError(t, err)
	require.Len(t, versionsList, 1)
	c, err := dst.Load()
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	for ii, want := range testImages() {
		item, found := c.Get(imageset.IndexName(ii))
		require.True(t, found)
		assert.Equal(t, []int{3, 2, 3}, item.Tensor.Shape().Dimensions)
		assert.True(t, want.Equal(dst.ToCanonical(item.Tensor)), "image #%d", ii)
	}

	var buf bytes.Buffer
	require.NoError(t, versions(&buf, []string{"dst"}))
	assert.Contains(t, buf.String(), versionsList[0])
	assert.ErrorContains(t, versions(io.Discard, []string{"src"}), "not versioned")

	buf.Reset()
	require.NoError(t, info(&buf, []string{"dst"}))
	assert.Contains(t, buf.String(), "00001")
	assert.Contains(t, buf.String(), "Uint8")

	npzPath := filepath.Join(dir, "dst.npz")
	require.NoError(t, export(io.Discard, []string{"dst", npzPath}))
	named, err := numpy.FromNpzFile(npzPath)
	require.NoError(t, err)
	assert.Len(t, named, 2)

	assert.Error(t, convert(io.Discard, []string{"missing", "dst"}))
}

func TestPathDatasets(t *testing.T) {
	previous := *flagCatalog
	*flagCatalog = ""
	t.Cleanup(func() { *flagCatalog = previous })

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, imageset.New(src, imageset.WithSaveArgs(options.Options{"suffix": ".png"})).
		Save(testImages()))
	dst := filepath.Join(dir, "dst")
	require.NoError(t, convert(io.Discard, []string{src, dst}))
	names, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, names, 2)
}
