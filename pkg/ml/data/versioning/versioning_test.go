// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnversioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces")
	r := NewResolver(path, nil)
	assert.False(t, r.IsVersioned())
	loadPath, err := r.LoadPath()
	require.NoError(t, err)
	assert.Equal(t, path, loadPath)
	savePath, err := r.SavePath()
	require.NoError(t, err)
	assert.Equal(t, path, savePath)
	assert.Equal(t, "unversioned", r.Version().String())
}

func TestVersioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces")
	r := NewResolver(path, &Version{})
	require.True(t, r.IsVersioned())

	_, err := r.LoadPath()
	require.ErrorIs(t, err, ErrVersionNotFound)
	versions, err := r.ListVersions()
	require.NoError(t, err)
	assert.Empty(t, versions)

	savePath, err := r.SavePath()
	require.NoError(t, err)
	version := r.SaveVersion()
	_, err = time.Parse(TimestampFormat, version)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(path, version, "faces"), savePath)

	// The reserved version is not loaded until it is written.
	_, err = r.LoadPath()
	require.ErrorIs(t, err, ErrVersionNotFound)

	// Load after save, from the same resolver, reads the saved version.
	require.NoError(t, os.MkdirAll(savePath, 0755))
	loadPath, err := r.LoadPath()
	require.NoError(t, err)
	assert.Equal(t, savePath, loadPath)
	_, err = r.SavePath()
	require.ErrorIs(t, err, ErrSavePathExists)
	assert.Equal(t, savePath, r.SaveTarget())

	// A new resolver finds the latest version with the dataset in it.
	older := filepath.Join(path, "2000-01-01T00.00.00.000Z", "faces")
	require.NoError(t, os.MkdirAll(older, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "9999-empty-version"), 0755))
	r2 := NewResolver(path, &Version{})
	versions, err = r2.ListVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"2000-01-01T00.00.00.000Z", version}, versions)
	loadPath, err = r2.LoadPath()
	require.NoError(t, err)
	assert.Equal(t, savePath, loadPath)

	// Explicit versions.
	r3 := NewResolver(path, &Version{Load: "2000-01-01T00.00.00.000Z", Save: "v2"})
	loadPath, err = r3.LoadPath()
	require.NoError(t, err)
	assert.Equal(t, older, loadPath)
	savePath, err = r3.SavePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(path, "v2", "faces"), savePath)
}

func TestLoadPath(t *testing.T) {
	const (
		older  = "2000-01-01T00.00.00.000Z"
		newer  = "2020-01-01T00.00.00.000Z"
		latest = "2030-01-01T00.00.00.000Z"
	)
	path := filepath.Join(t.TempDir(), "faces")
	for _, version := range []string{older, newer} {
		require.NoError(t, os.MkdirAll(filepath.Join(path, version, "faces"), 0755))
	}
	testCases := []struct {
		name     string
		version  *Version
		// written is the version saved (and written) by the resolver before loading, if any.
		written  string
		// reserved is a save version reserved by the resolver but never written.
		reserved bool
		want     string
	}{
		{name: "unversioned", want: path},
		{name: "newest", version: &Version{}, want: filepath.Join(path, newer, "faces")},
		{name: "explicit", version: &Version{Load: older}, want: filepath.Join(path, older, "faces")},
		{name: "explicit-missing", version: &Version{Load: latest},
			want: filepath.Join(path, latest, "faces")},
		{name: "saved", version: &Version{Save: latest}, written: latest,
			want: filepath.Join(path, latest, "faces")},
		{name: "reserved-not-written", version: &Version{}, reserved: true,
			want: filepath.Join(path, newer, "faces")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(path, tc.version)
			if tc.reserved {
				_, err := r.SavePath()
				require.NoError(t, err)
			}
			if tc.written != "" {
				savePath, err := r.SavePath()
				require.NoError(t, err)
				require.NoError(t, os.MkdirAll(savePath, 0755))
				defer func() { _ = os.RemoveAll(filepath.Join(path, tc.written)) }()
			}
			got, err := r.LoadPath()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
