// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"image"
	"os"
	"path/filepath"

	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/gomlx/imageset/pkg/core/tensors/images"
	"github.com/gomlx/imageset/pkg/ml/datasets"
	"github.com/gomlx/imageset/pkg/support/fsutil"
	"github.com/gomlx/imageset/pkg/support/imgcodec"
	"github.com/gomlx/imageset/pkg/support/options"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// saveConfig holds the save options, after they are parsed.
type saveConfig struct {
	suffix string
	mode   string
	scaler *images.Scaler
	encode imgcodec.EncodeOptions
}

func (ds *Dataset) parseSaveArgs() (cfg saveConfig, err error) {
	args := ds.saveArgs.Clone()
	if cfg.suffix, err = options.PopOr(args, "suffix", DefaultSuffix); err != nil {
		return
	}
	if cfg.mode, err = options.PopOr(args, "mode", images.ModeInferred); err != nil {
		return
	}
	cfg.scaler = images.Scale()
	for _, bound := range []struct {
		key string
		set func(float64) *images.Scaler
	}{{"lower", cfg.scaler.Lower}, {"upper", cfg.scaler.Upper}} {
		value, found, getErr := options.Get[float64](args, bound.key)
		if getErr != nil {
			return cfg, getErr
		}
		delete(args, bound.key)
		if found {
			bound.set(value)
		}
	}
	cfg.encode, err = imgcodec.EncodeOptionsFrom(args)
	return
}

// Save data to the dataset.
//
// data can be anything accepted by Classify: single images or tensors are written to the
// (resolved) path of the dataset, as a file. Collections of images are written as files into the
// path, as a directory, named `<name><suffix>`: the name is the key of the mapping or the
// zero-padded index of unnamed images.
//
// Tensors are converted from the dataset layout (see WithChannelsFirst and WithReverseColor) to
// images, after optionally being rescaled (see WithSaveArgs). Existing files are overwritten.
func (ds *Dataset) Save(data any) error {
	err := tryCatch(func() error { return ds.save(data) })
	if err != nil {
		return errors.WithMessagef(err, "failed while saving data to dataset %s", ds)
	}
	return nil
}

func (ds *Dataset) save(data any) error {
	cfg, err := ds.parseSaveArgs()
	if err != nil {
		return err
	}
	c, err := Classify(data)
	if err != nil {
		return err
	}
	savePath, err := ds.resolver.SavePath()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(savePath), fsutil.DirPermMode); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", savePath)
	}
	w := &writer{ds: ds, cfg: cfg, path: savePath}
	err = w.saveCollection(c)
	if err != nil && ds.resolver.IsVersioned() {
		w.discard()
	}
	return err
}

// writer writes images to the resolved save path of a Dataset, for one Save call.
type writer struct {
	ds   *Dataset
	cfg  saveConfig
	path string
}

// discard removes what a failed save wrote to a new version, so the version is not taken as saved.
func (w *writer) discard() {
	if err := os.RemoveAll(w.path); err != nil {
		klog.Warningf("imageset: failed to remove partially saved %q: %v", w.path, err)
	}
	// The version directory is only removed if empty.
	_ = os.Remove(filepath.Dir(w.path))
}

func (w *writer) saveCollection(c Collection) error {
	switch c.Kind {
	case KindMapping, KindParallel:
		if c.Stack != nil {
			return w.saveStacked(c.Stack, c.Names)
		}
		return w.saveList(c.Items, c.Names)
	case KindStacked:
		return w.saveStacked(c.Stack, nil)
	case KindSingle:
		if len(c.Items) != 1 {
			return errors.Wrapf(ErrUnsupportedType, "single image collection with %d items", len(c.Items))
		}
		return w.saveSingle(c.Items[0])
	case KindSequence:
		return w.saveList(c.Items, nil)
	}
	return errors.Wrapf(ErrUnsupportedType, "unknown collection kind %s", c.Kind)
}

// itemTensor returns the tensor of the item in the dataset layout. Images are converted as if loaded
// with "as_numpy" set, so the layout normalization on save is undone.
func (w *writer) itemTensor(item Item) (*tensors.Tensor, error) {
	if item.Tensor != nil {
		return item.Tensor, nil
	}
	t, err := images.ToTensor(item.Image)
	if err != nil {
		return nil, err
	}
	return fromChannelsLast(t, w.ds.channelsFirst, w.ds.reverseColor), nil
}

// toImage converts a tensor already in channels-last RGB layout to an image.
func (w *writer) toImage(t *tensors.Tensor) (image.Image, error) {
	return images.ToImage().Mode(w.cfg.mode).Single(squeezeImage(t))
}

func (w *writer) write(path string, img image.Image) error {
	return imgcodec.Write(path, img, w.cfg.encode)
}

func (w *writer) fileName(name string) string {
	return filepath.Join(w.path, name+w.cfg.suffix)
}

// saveSingle writes one image to the save path itself: the suffix is not used.
func (w *writer) saveSingle(item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.Image != nil && !w.cfg.scaler.Enabled() {
		return w.write(w.path, item.Image)
	}
	t, err := w.itemTensor(item)
	if err != nil {
		return err
	}
	if rank := t.Rank(); rank == 4 {
		return w.saveStacked(t, nil)
	} else if rank != 2 && rank != 3 {
		return errors.Wrapf(ErrUnsupportedRank, "tensor %s has rank %d, only ranks 2, 3 and 4 are supported",
			t.Shape(), rank)
	}
	t = toChannelsLast(t, w.ds.channelsFirst, w.ds.reverseColor)
	if t, err = w.cfg.scaler.Apply(t); err != nil {
		return err
	}
	img, err := w.toImage(t)
	if err != nil {
		return err
	}
	return w.write(w.path, img)
}

// saveStacked writes each image of a rank-4 tensor to the save path, as a directory.
// The layout normalization and scaling are done on the whole stack at once.
func (w *writer) saveStacked(stack *tensors.Tensor, names []string) error {
	if stack.Rank() != 4 {
		return errors.Wrapf(ErrUnsupportedRank, "stacked tensor %s must have rank 4", stack.Shape())
	}
	stack = toChannelsLast(stack, w.ds.channelsFirst, w.ds.reverseColor)
	stack, err := w.cfg.scaler.Apply(stack)
	if err != nil {
		return err
	}
	view, err := datasets.NewStackedView(stack)
	if err != nil {
		return err
	}
	return w.saveView(view, names, true)
}

// saveList writes each item to the save path, as a directory.
func (w *writer) saveList(items []Item, names []string) error {
	if names != nil && len(names) != len(items) {
		return errors.Wrapf(ErrNamesMismatch, "%d names for %d images", len(names), len(items))
	}
	if !w.cfg.scaler.Enabled() {
		if err := os.MkdirAll(w.path, fsutil.DirPermMode); err != nil {
			return errors.Wrapf(err, "failed to create directory %q", w.path)
		}
		bar := w.ds.newProgressBar(len(items), "Saving images")
		defer closeProgress(bar)
		for ii, item := range items {
			if err := item.Validate(); err != nil {
				return errors.WithMessagef(err, "item #%d", ii)
			}
			name := Collection{Names: names}.NameAt(ii)
			img := item.Image
			if item.Tensor != nil {
				var err error
				img, err = w.toImage(toChannelsLast(item.Tensor, w.ds.channelsFirst, w.ds.reverseColor))
				if err != nil {
					return errors.WithMessagef(err, "item %q", name)
				}
			}
			if err := w.write(w.fileName(name), img); err != nil {
				return err
			}
			addProgress(bar)
		}
		return nil
	}

	values := make([]any, len(items))
	for ii, item := range items {
		if err := item.Validate(); err != nil {
			return errors.WithMessagef(err, "item #%d", ii)
		}
		t, err := w.itemTensor(item)
		if err != nil {
			return errors.WithMessagef(err, "item #%d", ii)
		}
		values[ii] = t
	}
	view := datasets.NewListView(values, w.cfg.scaler.Transform())
	return w.saveView(view, names, false)
}

// saveView writes each item of the view to the save path, as a directory. If normalized is false
// the items are converted from the dataset layout to channels-last RGB first.
func (w *writer) saveView(view datasets.ItemView, names []string, normalized bool) error {
	n := view.Len()
	if names != nil && len(names) != n {
		return errors.Wrapf(ErrNamesMismatch, "%d names for %d images", len(names), n)
	}
	if err := os.MkdirAll(w.path, fsutil.DirPermMode); err != nil {
		return errors.Wrapf(err, "failed to create directory %q", w.path)
	}
	klog.V(1).Infof("imageset: saving %d images to %q", n, w.path)
	bar := w.ds.newProgressBar(n, "Saving images")
	defer closeProgress(bar)
	c := Collection{Names: names}
	for ii := range n {
		name := c.NameAt(ii)
		t, err := view.At(ii)
		if err != nil {
			return err
		}
		if !normalized {
			t = toChannelsLast(t, w.ds.channelsFirst, w.ds.reverseColor)
		}
		img, err := w.toImage(t)
		if err != nil {
			return errors.WithMessagef(err, "item %q", name)
		}
		if err = w.write(w.fileName(name), img); err != nil {
			return err
		}
		addProgress(bar)
	}
	return nil
}

// squeezeImage removes leading batch axes of dimension 1, and the channels axis of a channels-last
// image if it has dimension 1, so `[1, H, W, 1]` becomes `[H, W]`. The spatial axes are kept even
// if they have dimension 1.
func squeezeImage(t *tensors.Tensor) *tensors.Tensor {
	dims := t.Shape().Dimensions
	for len(dims) > 3 && dims[0] == 1 {
		dims = dims[1:]
	}
	if len(dims) == 3 && dims[2] == 1 {
		dims = dims[:2]
	}
	if len(dims) == t.Rank() {
		return t
	}
	return t.Reshape(dims...)
}
