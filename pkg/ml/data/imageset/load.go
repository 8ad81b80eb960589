// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"path/filepath"

	"github.com/gomlx/imageset/pkg/support/fsutil"
	"github.com/gomlx/imageset/pkg/support/imgcodec"
	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// DictStructureSepNames is the value of the "dict_structure" load option to load directories as KindParallel.
const DictStructureSepNames = "sep_names"

// loadConfig holds the load options, after they are parsed.
type loadConfig struct {
	// dictStructure is the value of "dict_structure", or true if not set.
	dictStructure any
	asTensor      bool
	decode        imgcodec.DecodeOptions
}

func (ds *Dataset) parseLoadArgs() (cfg loadConfig, err error) {
	args := ds.loadArgs.Clone()
	cfg.dictStructure = true
	if value, found := args.Pop("dict_structure"); found {
		cfg.dictStructure = value
	}
	cfg.asTensor, err = options.PopOr(args, "as_numpy", true)
	if err != nil {
		return
	}
	cfg.asTensor, err = options.PopOr(args, "as_tensor", cfg.asTensor)
	if err != nil {
		return
	}
	cfg.decode, err = imgcodec.DecodeOptionsFrom(args)
	return
}

// Load the data of the dataset.
//
// If the (resolved) path is a directory, each regular file in it is decoded, in order of file name, and
// it returns a KindMapping (default), KindSequence or KindParallel collection, depending on the
// "dict_structure" load option. Otherwise, the file is decoded and returned as a KindSingle.
//
// Images are converted to tensors (in the configured layout) unless the "as_numpy" load option is false.
func (ds *Dataset) Load() (c Collection, err error) {
	err = tryCatch(func() error {
		var loadErr error
		c, loadErr = ds.load()
		return loadErr
	})
	if err != nil {
		return Collection{}, errors.WithMessagef(err, "failed while loading data from dataset %s", ds)
	}
	return c, nil
}

func (ds *Dataset) load() (Collection, error) {
	cfg, err := ds.parseLoadArgs()
	if err != nil {
		return Collection{}, err
	}
	loadPath, err := ds.resolver.LoadPath()
	if err != nil {
		return Collection{}, err
	}
	isDir, err := fsutil.IsDir(loadPath)
	if err != nil {
		return Collection{}, err
	}
	if !isDir {
		item, err := LoadImage(loadPath, cfg.decode, cfg.asTensor, ds.channelsFirst, ds.reverseColor)
		if err != nil {
			return Collection{}, err
		}
		return NewSingle(item), nil
	}

	fileNames, err := fsutil.ListFiles(loadPath)
	if err != nil {
		return Collection{}, err
	}
	klog.V(1).Infof("imageset: loading %d files from %q", len(fileNames), loadPath)
	bar := ds.newProgressBar(len(fileNames), "Loading images")
	items := make([]Item, 0, len(fileNames))
	names := make([]string, 0, len(fileNames))
	seen := make(map[string]int, len(fileNames))
	for _, fileName := range fileNames {
		item, err := LoadImage(filepath.Join(loadPath, fileName), cfg.decode, cfg.asTensor, ds.channelsFirst, ds.reverseColor)
		if err != nil {
			return Collection{}, err
		}
		stem := fsutil.Stem(fileName)
		if idx, found := seen[stem]; found {
			// Same stem with different extensions: the last file (in name order) wins.
			klog.Warningf("imageset: %q has more than one file with the name %q, using %q", loadPath, stem, fileName)
			items[idx] = item
		} else {
			seen[stem] = len(items)
			items = append(items, item)
			names = append(names, stem)
		}
		addProgress(bar)
	}
	closeProgress(bar)

	switch {
	case cfg.dictStructure == nil:
		return NewSequence(items), nil
	case cfg.dictStructure == DictStructureSepNames:
		return NewParallel(items, names), nil
	}
	mapping := make(map[string]Item, len(items))
	for ii, name := range names {
		mapping[name] = items[ii]
	}
	return NewMapping(mapping), nil
}

// newProgressBar returns nil if progress bars are disabled.
func (ds *Dataset) newProgressBar(n int, description string) *progressbar.ProgressBar {
	if !ds.progressBar || n == 0 {
		return nil
	}
	return progressbar.Default(int64(n), description)
}

func addProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

func closeProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Close()
	}
}
