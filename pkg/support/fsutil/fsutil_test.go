// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0644))

	assert.True(t, MustFileExists(filePath))
	assert.True(t, MustFileExists(dir))
	assert.False(t, MustFileExists(filepath.Join(dir, "missing")))

	isDir, err := IsDir(dir)
	require.NoError(t, err)
	assert.True(t, isDir)
	isDir, err = IsDir(filePath)
	require.NoError(t, err)
	assert.False(t, isDir)
	isDir, err = IsDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.jpg", "b.bmp", ".c.png.0f8fad5b.tmp", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), DirPermMode))
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.jpg"), filepath.Join(dir, "d.jpg")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "sub"), filepath.Join(dir, "e")))

	names, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.bmp", "c.png", "d.jpg"}, names)

	_, err = ListFiles(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "cat", Stem("/data/images/cat.jpg"))
	assert.Equal(t, "cat.small", Stem("cat.small.png"))
	assert.Equal(t, "dog", Stem("dog"))
}

func TestReplaceTildeInDir(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)
	assert.Equal(t, "/data/x", MustReplaceTildeInDir("/data/x"))
	assert.Equal(t, filepath.Join(usr.HomeDir, "data"), MustReplaceTildeInDir("~/data"))
	assert.Equal(t, usr.HomeDir, MustReplaceTildeInDir("~"))
	_, err = ReplaceTildeInDir("~user_that_does_not_exist_42/data")
	require.Error(t, err)
}
