// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// imageset inspects and converts the image datasets configured in a YAML catalog.
//
// Usage:
//
//	imageset [flags] info <dataset>
//	imageset [flags] convert <src_dataset> <dst_dataset>
//	imageset [flags] versions <dataset>
//	imageset [flags] export <dataset> <file.npz>
//
// With -catalog="" the dataset arguments are paths, loaded and saved with the default options.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/imageset/pkg/core/tensors/numpy"
	"github.com/gomlx/imageset/pkg/ml/data/catalog"
	"github.com/gomlx/imageset/pkg/ml/data/imageset"
	"github.com/gomlx/imageset/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagCatalog = flag.String("catalog", "catalog.yaml",
		"YAML catalog with the datasets configuration. If empty, dataset arguments are taken as paths.")
	flagProgress = flag.Bool("progress", false, "Display a progress bar while loading and saving images.")
)

// commands maps each sub-command to its number of arguments and its implementation.
var commands = map[string]struct {
	numArgs int
	run     func(w io.Writer, args []string) error
}{
	"info":     {1, info},
	"convert":  {2, convert},
	"versions": {1, versions},
	"export":   {2, export},
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] info|convert|versions|export <args...>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing command. See 'imageset -help'")
		os.Exit(1)
	}
	cmd, found := commands[args[0]]
	if !found {
		klog.Errorf("Unknown command %q. See 'imageset -help'", args[0])
		os.Exit(1)
	}
	if len(args)-1 != cmd.numArgs {
		klog.Errorf("Command %q takes %d argument(s), got %d. See 'imageset -help'", args[0], cmd.numArgs, len(args)-1)
		os.Exit(1)
	}
	if err := cmd.run(os.Stdout, args[1:]); err != nil {
		klog.Errorf("Command %q failed: %+v", args[0], err)
		os.Exit(1)
	}
}

// dataset returns the dataset named in the catalog, or the one at the path if -catalog is empty.
func dataset(name string) (*imageset.Dataset, error) {
	opts := []imageset.Option{imageset.WithProgressBar(*flagProgress)}
	if *flagCatalog == "" {
		path, err := fsutil.ReplaceTildeInDir(name)
		if err != nil {
			return nil, err
		}
		return imageset.New(path, opts...), nil
	}
	c, err := catalog.LoadFile(*flagCatalog)
	if err != nil {
		return nil, err
	}
	return c.DataSet(name, opts...)
}

func info(w io.Writer, args []string) error {
	ds, err := dataset(args[0])
	if err != nil {
		return err
	}
	c, err := ds.Load()
	if err != nil {
		return err
	}
	loadPath, err := ds.Resolver().LoadPath()
	if err != nil {
		return err
	}
	usage, err := diskUsage(loadPath)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("dataset", args[0])
	table.Row("path", loadPath)
	table.Row("version", ds.Resolver().Version().String())
	table.Row("structure", c.Kind.String())
	table.Row("# images", humanize.Comma(int64(c.Len())))
	table.Row("bytes on disk", humanize.Bytes(usage))
	_, _ = fmt.Fprintln(w, table.Render())

	_, _ = fmt.Fprintln(w, titleStyle.Render("Images"))
	table = newPlainTable(true)
	table.Row("Name", "Type", "Shape", "DType")
	for ii := range c.Len() {
		var item imageset.Item
		if c.Stack != nil {
			item = imageset.Item{Tensor: c.Stack.Slice(ii)}
		} else {
			item = c.Items[ii]
		}
		if item.IsTensor() {
			shape := item.Tensor.Shape()
			table.Row(c.NameAt(ii), "tensor", fmt.Sprintf("%v", shape.Dimensions), shape.DType.String())
		} else {
			bounds := item.Image.Bounds()
			table.Row(c.NameAt(ii), fmt.Sprintf("%T", item.Image),
				fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()), "-")
		}
	}
	_, _ = fmt.Fprintln(w, table.Render())
	return nil
}

// diskUsage returns the size of the file, or the sum of the files in the directory.
func diskUsage(path string) (uint64, error) {
	isDir, err := fsutil.IsDir(path)
	if err != nil {
		return 0, err
	}
	if !isDir {
		info, err := os.Stat(path)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to stat %q", path)
		}
		return uint64(info.Size()), nil
	}
	names, err := fsutil.ListFiles(path)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, name := range names {
		info, err := os.Stat(filepath.Join(path, name))
		if err != nil {
			return 0, errors.Wrapf(err, "failed to stat %q", name)
		}
		total += uint64(info.Size())
	}
	return total, nil
}

func convert(_ io.Writer, args []string) error {
	src, err := dataset(args[0])
	if err != nil {
		return err
	}
	dst, err := dataset(args[1])
	if err != nil {
		return err
	}
	c, err := src.Load()
	if err != nil {
		return err
	}
	if err = dst.Save(imageset.Relayout(c, src, dst)); err != nil {
		return err
	}
	klog.Infof("Converted %d images from %s to %q", c.Len(), args[0], dst.Resolver().SaveTarget())
	return nil
}

func versions(w io.Writer, args []string) error {
	ds, err := dataset(args[0])
	if err != nil {
		return err
	}
	resolver := ds.Resolver()
	if !resolver.IsVersioned() {
		return errors.Errorf("dataset %q is not versioned", args[0])
	}
	versionsList, err := resolver.ListVersions()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Versions of %s", resolver.Path())))
	table := newPlainTable(true)
	table.Row("Version", "# Files", "Bytes")
	for _, version := range versionsList {
		path := resolver.VersionedPath(version)
		numFiles := 1
		isDir, err := fsutil.IsDir(path)
		if err != nil {
			return err
		}
		if isDir {
			names, err := fsutil.ListFiles(path)
			if err != nil {
				return err
			}
			numFiles = len(names)
		}
		usage, err := diskUsage(path)
		if err != nil {
			return err
		}
		table.Row(version, humanize.Comma(int64(numFiles)), humanize.Bytes(usage))
	}
	_, _ = fmt.Fprintln(w, table.Render())
	return nil
}

func export(_ io.Writer, args []string) error {
	ds, err := dataset(args[0])
	if err != nil {
		return err
	}
	c, err := ds.Load()
	if err != nil {
		return err
	}
	named, err := ds.Tensors(c)
	if err != nil {
		return err
	}
	if err = numpy.ToNpzFile(named, args[1]); err != nil {
		return err
	}
	klog.Infof("Exported %d images from %s to %q", len(named), args[0], args[1])
	return nil
}
