// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package catalog reads a YAML data catalog describing image datasets, and creates the
// corresponding imageset.Dataset.
//
// Example of a catalog file:
//
//	faces:
//	  type: ImagesLocalDataSet
//	  path: ~/data/faces
//	  channel_first: false
//	  reverse_color: true
//	  load_args: {dict_structure: sep_names}
//	  save_args: {suffix: .png, lower: 0, upper: 255}
//	  versioned: true
//
// Relative paths are relative to the directory of the catalog file, and "~" is expanded to the user's home.
package catalog

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/gomlx/imageset/pkg/ml/data/imageset"
	"github.com/gomlx/imageset/pkg/ml/data/versioning"
	"github.com/gomlx/imageset/pkg/support/fsutil"
	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownDataset is returned when a dataset name is not in the catalog.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnknownType is returned for catalog entries whose type is not an image dataset.
	ErrUnknownType = errors.New("unknown dataset type")
)

// Types accepted in the "type" field of an entry. An empty type is also accepted.
var Types = []string{"ImagesLocalDataSet", "pillow.ImagesLocalDataSet", "imageset.Dataset"}

// Entry is the configuration of one dataset in the catalog.
type Entry struct {
	Type         string         `yaml:"type"`
	Path         string         `yaml:"path"`
	ChannelFirst bool           `yaml:"channel_first"`
	ReverseColor bool           `yaml:"reverse_color"`
	LoadArgs     map[string]any `yaml:"load_args"`

	// SaveArgs, if not set, defaults to imageset.DefaultSaveArgs.
	SaveArgs map[string]any `yaml:"save_args"`

	// Versioned datasets load the version LoadVersion (or the latest if empty) and save to SaveVersion
	// (or a new timestamp if empty).
	Versioned   bool   `yaml:"versioned"`
	LoadVersion string `yaml:"load_version"`
	SaveVersion string `yaml:"save_version"`
}

// Catalog of datasets, indexed by name.
type Catalog struct {
	entries map[string]Entry
	baseDir string
}

// Parse a YAML catalog. Relative dataset paths are relative to baseDir.
func Parse(data []byte, baseDir string) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry), baseDir: baseDir}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c.entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	for name, entry := range c.entries {
		if entry.Type != "" && !slices.Contains(Types, entry.Type) {
			return nil, errors.Wrapf(ErrUnknownType, "dataset %q has type %q, accepted types are %v", name, entry.Type, Types)
		}
		if entry.Path == "" {
			return nil, errors.Errorf("dataset %q has no path", name)
		}
	}
	return c, nil
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	path, err := fsutil.ReplaceTildeInDir(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog %q", path)
	}
	c, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, errors.WithMessagef(err, "catalog %q", path)
	}
	return c, nil
}

// Names returns the sorted names of the datasets in the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entry returns the configuration of the named dataset.
func (c *Catalog) Entry(name string) (entry Entry, found bool) {
	entry, found = c.entries[name]
	return
}

// DataSet creates the named dataset. Extra options (e.g. imageset.WithProgressBar) are applied after
// the ones from the catalog.
func (c *Catalog) DataSet(name string, extraOpts ...imageset.Option) (*imageset.Dataset, error) {
	entry, found := c.entries[name]
	if !found {
		return nil, errors.Wrapf(ErrUnknownDataset, "%q not in catalog (datasets: %v)", name, c.Names())
	}
	path, err := fsutil.ReplaceTildeInDir(entry.Path)
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", name)
	}
	if !filepath.IsAbs(path) && c.baseDir != "" {
		path = filepath.Join(c.baseDir, path)
	}
	opts := []imageset.Option{
		imageset.WithChannelsFirst(entry.ChannelFirst),
		imageset.WithReverseColor(entry.ReverseColor),
		imageset.WithLoadArgs(options.Options(entry.LoadArgs)),
	}
	if entry.SaveArgs != nil {
		opts = append(opts, imageset.WithSaveArgs(options.Options(entry.SaveArgs)))
	}
	if entry.Versioned {
		opts = append(opts, imageset.WithVersion(&versioning.Version{Load: entry.LoadVersion, Save: entry.SaveVersion}))
	}
	opts = append(opts, extraOpts...)
	return imageset.New(path, opts...), nil
}
