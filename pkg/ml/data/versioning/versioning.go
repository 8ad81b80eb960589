// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package versioning resolves the paths of versioned datasets.
//
// A versioned dataset configured with path `<dir>/<name>` stores each version under
// `<dir>/<name>/<version>/<name>`, where version is by default a UTC timestamp formatted
// with TimestampFormat, so versions sort lexicographically in time order.
//
// Only paths are resolved: no history management (pruning, locking) is done.
package versioning

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gomlx/imageset/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// TimestampFormat used for generated versions. It sorts lexicographically in time order.
const TimestampFormat = "2006-01-02T15.04.05.000Z"

var (
	// ErrVersionNotFound is returned when no version to load can be found.
	ErrVersionNotFound = errors.New("dataset version not found")

	// ErrSavePathExists is returned when saving to a version that already exists.
	ErrSavePathExists = errors.New("dataset save path already exists")
)

// Version of a dataset to load and to save.
//
// An empty Load means the latest version available, and an empty Save means a newly generated timestamp.
type Version struct {
	Load string
	Save string
}

// String implements fmt.Stringer.
func (v *Version) String() string {
	if v == nil {
		return "unversioned"
	}
	return fmt.Sprintf("Version(load=%q, save=%q)", v.Load, v.Save)
}

// GenerateTimestamp returns a new version name for the current time.
func GenerateTimestamp() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// Resolver resolves the load and save paths of a dataset.
//
// It is safe for concurrent use.
type Resolver struct {
	path    string
	version *Version

	mu          sync.Mutex
	saveVersion string
}

// NewResolver returns a Resolver for the dataset at path. If version is nil, the dataset is unversioned,
// and both load and save paths are path itself.
func NewResolver(path string, version *Version) *Resolver {
	var versionCopy *Version
	if version != nil {
		v := *version
		versionCopy = &v
	}
	return &Resolver{path: filepath.Clean(path), version: versionCopy}
}

// Path returns the configured (unversioned) path.
func (r *Resolver) Path() string { return r.path }

// Version returns a copy of the configured version, or nil if unversioned.
func (r *Resolver) Version() *Version {
	if r.version == nil {
		return nil
	}
	v := *r.version
	return &v
}

// IsVersioned returns whether the dataset is versioned.
func (r *Resolver) IsVersioned() bool { return r.version != nil }

// VersionedPath returns the path of the dataset for the given version.
func (r *Resolver) VersionedPath(version string) string {
	return filepath.Join(r.path, version, filepath.Base(r.path))
}

// ListVersions returns the versions available, in sorted order (older first for generated timestamps).
// Only versions that contain the dataset are listed.
func (r *Resolver) ListVersions() ([]string, error) {
	entries, err := os.ReadDir(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list versions of %q", r.path)
	}
	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exists, err := fsutil.FileExists(r.VersionedPath(entry.Name()))
		if err != nil {
			return nil, err
		}
		if exists {
			versions = append(versions, entry.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// LoadVersion returns the version to load: the configured one, the one saved last by this Resolver
// (if it was written), or the latest available.
func (r *Resolver) LoadVersion() (string, error) {
	if r.version == nil {
		return "", nil
	}
	if r.version.Load != "" {
		return r.version.Load, nil
	}
	r.mu.Lock()
	saved := r.saveVersion
	r.mu.Unlock()
	if saved != "" {
		// A failed save may have left the version reserved but never written.
		written, err := fsutil.FileExists(r.VersionedPath(saved))
		if err != nil {
			return "", err
		}
		if written {
			return saved, nil
		}
	}
	versions, err := r.ListVersions()
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", errors.Wrapf(ErrVersionNotFound, "no versions of %q found", r.path)
	}
	return versions[len(versions)-1], nil
}

// LoadPath returns the path to load the dataset from.
func (r *Resolver) LoadPath() (string, error) {
	if r.version == nil {
		return r.path, nil
	}
	version, err := r.LoadVersion()
	if err != nil {
		return "", err
	}
	return r.VersionedPath(version), nil
}

// SaveVersion returns the version to save to: the configured one, or a generated timestamp.
// The version is generated once and reused by later calls.
func (r *Resolver) SaveVersion() string {
	if r.version == nil {
		return ""
	}
	if r.version.Save != "" {
		return r.version.Save
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveVersion == "" {
		r.saveVersion = GenerateTimestamp()
	}
	return r.saveVersion
}

// SaveTarget returns the path the dataset is (or was) saved to, without checking whether it already
// exists. See SavePath.
func (r *Resolver) SaveTarget() string {
	if r.version == nil {
		return r.path
	}
	return r.VersionedPath(r.SaveVersion())
}

// SavePath returns the path to save the dataset to. For versioned datasets, it
// returns ErrSavePathExists if the version was already saved.
func (r *Resolver) SavePath() (string, error) {
	if r.version == nil {
		return r.path, nil
	}
	version := r.SaveVersion()
	savePath := r.SaveTarget()
	exists, err := fsutil.FileExists(savePath)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.Wrapf(ErrSavePathExists, "version %q of %q was already saved to %q", version, r.path, savePath)
	}
	return savePath, nil
}
