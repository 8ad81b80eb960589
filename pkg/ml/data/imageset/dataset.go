// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imageset implements a versioned dataset of images stored on the local file system:
// either a single image file, or a directory of image files.
//
// Loading a directory returns a Collection with one Item per file, keyed by the file name without
// extension (its stem). Saving accepts images, tensors (single or stacked), and mappings or lists of
// those, normalizing the channels layout and color order, and optionally rescaling the values
// to a byte range before writing.
//
// Example:
//
//	ds := imageset.New("~/data/faces",
//		imageset.WithSaveArgs(options.Options{"suffix": ".png", "lower": 0, "upper": 255}),
//		imageset.WithChannelsFirst(true))
//	err := ds.Save(stackedTensor) // Writes 00000.png, 00001.png, ...
//	collection, err := ds.Load()
package imageset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/imageset/pkg/ml/data/versioning"
	"github.com/gomlx/imageset/pkg/support/fsutil"
	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/pkg/errors"
)

// Dataset of images on the local file system. Create it with New.
//
// Its configuration is immutable, and it can be read from multiple goroutines. But concurrent Load/Save
// of the same path is not supported.
type Dataset struct {
	path          string
	loadArgs      options.Options
	saveArgs      options.Options
	channelsFirst bool
	reverseColor  bool
	version       *versioning.Version
	progressBar   bool

	resolver *versioning.Resolver
}

// Option configures a Dataset, see New.
type Option func(ds *Dataset)

// DefaultSaveArgs returns the save arguments used if none are given: a new `{"suffix": ".jpg"}` at each call.
func DefaultSaveArgs() options.Options {
	return options.Options{"suffix": DefaultSuffix}
}

// DefaultSuffix is the file extension used when saving multiple images, if none is given in the save arguments.
const DefaultSuffix = ".jpg"

// WithLoadArgs sets the options used when loading:
//
//   - "dict_structure": how a directory is returned. If explicitly set to nil, as a KindSequence (names
//     are dropped); if "sep_names" as a KindParallel; otherwise (the default) as a KindMapping.
//   - "as_numpy" (or its alias "as_tensor"), default true: whether to convert images to tensors.
//   - Decoding options, see imgcodec.DecodeOptionsFrom: "auto_orientation", "formats".
func WithLoadArgs(args options.Options) Option {
	return func(ds *Dataset) { ds.loadArgs = args.Clone() }
}

// WithSaveArgs sets the options used when saving:
//
//   - "suffix": file extension used when saving multiple images into a directory. Default ".jpg".
//   - "mode": image mode of converted tensors: "L", "I;16", "RGB" or "RGBA". Default is inferred.
//   - "lower" and "upper": if either is given, tensors are linearly rescaled from their
//     `[min, max]` to `[lower, upper]` and converted to Uint8. See images.Scale.
//   - Encoding options, see imgcodec.EncodeOptionsFrom: "format", "quality", "compress_level", "num_colors".
//
// Setting it to nil disables the defaults (DefaultSaveArgs).
func WithSaveArgs(args options.Options) Option {
	return func(ds *Dataset) { ds.saveArgs = args.Clone() }
}

// WithChannelsFirst configures whether tensors have the channels axis first (`[C, H, W]` or `[N, C, H, W]`).
// The default is channels-last.
func WithChannelsFirst(channelsFirst bool) Option {
	return func(ds *Dataset) { ds.channelsFirst = channelsFirst }
}

// WithReverseColor configures whether tensors have the color channels reversed (BGR instead of RGB).
func WithReverseColor(reverseColor bool) Option {
	return func(ds *Dataset) { ds.reverseColor = reverseColor }
}

// WithVersion makes the dataset versioned. See package versioning.
// A nil version (the default) means unversioned.
func WithVersion(version *versioning.Version) Option {
	return func(ds *Dataset) {
		if version == nil {
			ds.version = nil
			return
		}
		v := *version
		ds.version = &v
	}
}

// WithProgressBar displays a progress bar when loading or saving directories of images.
func WithProgressBar(enabled bool) Option {
	return func(ds *Dataset) { ds.progressBar = enabled }
}

// New creates a Dataset for the given path: an image file or a directory of images.
func New(path string, opts ...Option) *Dataset {
	ds := &Dataset{
		path:     path,
		saveArgs: DefaultSaveArgs(),
	}
	for _, opt := range opts {
		opt(ds)
	}
	ds.resolver = versioning.NewResolver(path, ds.version)
	return ds
}

// Path returns the configured path of the dataset.
func (ds *Dataset) Path() string { return ds.path }

// ChannelsFirst returns whether tensors are channels-first.
func (ds *Dataset) ChannelsFirst() bool { return ds.channelsFirst }

// ReverseColor returns whether tensors have the color channels reversed.
func (ds *Dataset) ReverseColor() bool { return ds.reverseColor }

// Resolver returns the versioning.Resolver used to resolve the load and save paths.
func (ds *Dataset) Resolver() *versioning.Resolver { return ds.resolver }

// Describe returns the configuration of the dataset.
func (ds *Dataset) Describe() map[string]any {
	return map[string]any{
		"filepath":      ds.path,
		"load_args":     ds.loadArgs.Clone(),
		"save_args":     ds.saveArgs.Clone(),
		"channel_first": ds.channelsFirst,
		"reverse_color": ds.reverseColor,
		"version":       ds.resolver.Version(),
	}
}

// String implements fmt.Stringer.
func (ds *Dataset) String() string {
	desc := ds.Describe()
	keys := make([]string, 0, len(desc))
	for key := range desc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, desc[key]))
	}
	return fmt.Sprintf("imageset.Dataset(%s)", strings.Join(parts, ", "))
}

// Exists returns whether there is data to load. A dataset whose version cannot be resolved doesn't exist.
func (ds *Dataset) Exists() (bool, error) {
	path, err := ds.resolver.LoadPath()
	if err != nil {
		if errors.Is(err, versioning.ErrVersionNotFound) {
			return false, nil
		}
		return false, errors.WithMessagef(err, "failed checking existence of dataset %s", ds)
	}
	return fsutil.FileExists(path)
}
