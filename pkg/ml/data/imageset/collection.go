// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageset

import (
	"fmt"
	"image"
	"slices"

	"github.com/gomlx/imageset/pkg/core/tensors"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedRank is returned for tensors whose rank has no image interpretation.
	ErrUnsupportedRank = errors.New("unsupported number of dimensions")

	// ErrUnsupportedType is returned for data of a type that cannot be saved as images.
	ErrUnsupportedType = errors.New("unsupported data type")

	// ErrNamesMismatch is returned when the number of names differs from the number of images.
	ErrNamesMismatch = errors.New("number of names and images differ")
)

// Item is one image, either a decoded image.Image or a tensor, optionally paired with a label.
//
// Exactly one of Image or Tensor must be set. Tensors are rank-2 (grayscale) or rank-3, with the channels
// axis positioned according to the dataset configuration.
type Item struct {
	Image  image.Image
	Tensor *tensors.Tensor

	// Label is an optional value paired with the image (e.g. for supervised learning). It is
	// not saved: on save the item is unwrapped to its image.
	Label any
}

// IsTensor returns whether the item holds a tensor.
func (it Item) IsTensor() bool { return it.Tensor != nil }

// Validate that exactly one of Image or Tensor is set.
func (it Item) Validate() error {
	if (it.Image == nil) == (it.Tensor == nil) {
		return errors.Wrap(ErrUnsupportedType, "Item must have exactly one of Image or Tensor set")
	}
	return nil
}

// Value returns the image part of the item: either an image.Image or a *tensors.Tensor.
func (it Item) Value() any {
	if it.Tensor != nil {
		return it.Tensor
	}
	return it.Image
}

// String implements fmt.Stringer.
func (it Item) String() string {
	if it.Tensor != nil {
		return fmt.Sprintf("Tensor%s", it.Tensor.Shape())
	}
	if it.Image != nil {
		return fmt.Sprintf("%T%s", it.Image, it.Image.Bounds().Size())
	}
	return "Item(empty)"
}

// Kind of Collection.
type Kind int

const (
	// KindMapping is a mapping of names to items.
	KindMapping Kind = iota

	// KindParallel holds parallel lists of items and names. The items may also be given as a single stacked tensor.
	KindParallel

	// KindStacked is a rank-4 tensor with a batch of images.
	KindStacked

	// KindSingle is one image.
	KindSingle

	// KindSequence is an ordered list of items, without names.
	KindSequence
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "Mapping"
	case KindParallel:
		return "Parallel"
	case KindStacked:
		return "Stacked"
	case KindSingle:
		return "Single"
	case KindSequence:
		return "Sequence"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Collection is the data loaded from or saved to a dataset.
//
// Which fields are set depends on the Kind:
//
//   - KindMapping: Items and Names, sorted by name.
//   - KindParallel: Names, and either Items or Stack.
//   - KindStacked: Stack.
//   - KindSingle: Items with one element.
//   - KindSequence: Items.
type Collection struct {
	Kind  Kind
	Items []Item
	Names []string
	Stack *tensors.Tensor
}

// NewMapping returns a KindMapping collection, with the items sorted by name.
func NewMapping(items map[string]Item) Collection {
	c := Collection{Kind: KindMapping}
	c.Names = make([]string, 0, len(items))
	for name := range items {
		c.Names = append(c.Names, name)
	}
	slices.Sort(c.Names)
	c.Items = make([]Item, len(c.Names))
	for ii, name := range c.Names {
		c.Items[ii] = items[name]
	}
	return c
}

// NewParallel returns a KindParallel collection.
func NewParallel(items []Item, names []string) Collection {
	return Collection{Kind: KindParallel, Items: items, Names: names}
}

// NewSingle returns a KindSingle collection.
func NewSingle(item Item) Collection {
	return Collection{Kind: KindSingle, Items: []Item{item}}
}

// NewSequence returns a KindSequence collection.
func NewSequence(items []Item) Collection {
	return Collection{Kind: KindSequence, Items: items}
}

// NewStacked returns a KindStacked collection.
func NewStacked(stack *tensors.Tensor) Collection {
	return Collection{Kind: KindStacked, Stack: stack}
}

// Len returns the number of images in the collection.
func (c Collection) Len() int {
	if c.Stack != nil {
		return c.Stack.Shape().Dimensions[0]
	}
	return len(c.Items)
}

// Get returns the item with the given name, for collections with names.
func (c Collection) Get(name string) (item Item, found bool) {
	idx := slices.Index(c.Names, name)
	if idx < 0 {
		return
	}
	if c.Stack != nil {
		return Item{Tensor: c.Stack.Slice(idx)}, true
	}
	if idx >= len(c.Items) {
		return
	}
	return c.Items[idx], true
}

// Mapping returns the collection as a map of name to item. Collections without names are keyed by
// their zero-padded index ("00000", "00001", ...), the same names used when saving them.
func (c Collection) Mapping() map[string]Item {
	m := make(map[string]Item, c.Len())
	for ii := range c.Len() {
		var item Item
		if c.Stack != nil {
			item = Item{Tensor: c.Stack.Slice(ii)}
		} else {
			item = c.Items[ii]
		}
		m[c.NameAt(ii)] = item
	}
	return m
}

// NameAt returns the name of the i-th item: its given name, or its zero-padded index if there are no names.
func (c Collection) NameAt(i int) string {
	if i < len(c.Names) {
		return c.Names[i]
	}
	return IndexName(i)
}

// IndexName returns the name used for unnamed items: the index zero-padded to 5 digits.
func IndexName(i int) string {
	return fmt.Sprintf("%05d", i)
}

// String implements fmt.Stringer.
func (c Collection) String() string {
	if c.Stack != nil {
		return fmt.Sprintf("Collection(%s, stack=%s)", c.Kind, c.Stack.Shape())
	}
	return fmt.Sprintf("Collection(%s, %d items)", c.Kind, len(c.Items))
}

// Classify converts free-form data into a Collection. It accepts:
//
//   - Collection or *Collection: returned as is.
//   - map[string]any with exactly the keys "images" and "names": KindParallel. "images" can be a list
//     or a rank-4 tensor, and "names" a list of strings.
//   - Other maps of string to images, tensors or Item: KindMapping.
//   - image.Image, Item or a rank-2/rank-3 *tensors.Tensor: KindSingle.
//   - rank-4 *tensors.Tensor: KindStacked.
//   - Slices of images, tensors, Item or any of those: KindSequence.
//
// Tensors of other ranks return ErrUnsupportedRank, and other types return ErrUnsupportedType.
func Classify(data any) (Collection, error) {
	switch typed := data.(type) {
	case Collection:
		return typed, nil
	case *Collection:
		if typed == nil {
			return Collection{}, errors.Wrap(ErrUnsupportedType, "nil *Collection")
		}
		return *typed, nil
	case map[string]any:
		if isParallelMapping(typed) {
			return classifyParallel(typed["images"], typed["names"])
		}
		return classifyMapping(typed)
	case map[string]image.Image:
		return classifyMapping(typed)
	case map[string]*tensors.Tensor:
		return classifyMapping(typed)
	case map[string]Item:
		return classifyMapping(typed)
	case *tensors.Tensor:
		if typed == nil {
			return Collection{}, errors.Wrap(ErrUnsupportedType, "nil *tensors.Tensor")
		}
		switch typed.Rank() {
		case 2, 3:
			return NewSingle(Item{Tensor: typed}), nil
		case 4:
			return NewStacked(typed), nil
		default:
			return Collection{}, errors.Wrapf(ErrUnsupportedRank, "tensor %s has rank %d, only ranks 2, 3 and 4 are supported",
				typed.Shape(), typed.Rank())
		}
	case image.Image, Item:
		item, err := toItem(typed)
		if err != nil {
			return Collection{}, err
		}
		return NewSingle(item), nil
	case []image.Image:
		return classifySequence(typed)
	case []*tensors.Tensor:
		return classifySequence(typed)
	case []Item:
		return classifySequence(typed)
	case []any:
		return classifySequence(typed)
	}
	return Collection{}, errors.Wrapf(ErrUnsupportedType, "cannot save data of type %T", data)
}

// isParallelMapping returns whether m holds parallel lists of images and names: it must have
// exactly the keys "images" and "names".
func isParallelMapping(m map[string]any) bool {
	if len(m) != 2 {
		return false
	}
	_, hasImages := m["images"]
	_, hasNames := m["names"]
	return hasImages && hasNames
}

func classifyParallel(images, names any) (Collection, error) {
	var c Collection
	switch typed := names.(type) {
	case []string:
		c.Names = typed
	case []any:
		c.Names = make([]string, len(typed))
		for ii, name := range typed {
			str, ok := name.(string)
			if !ok {
				return Collection{}, errors.Wrapf(ErrUnsupportedType, "names[%d] is %T, not a string", ii, name)
			}
			c.Names[ii] = str
		}
	default:
		return Collection{}, errors.Wrapf(ErrUnsupportedType, "\"names\" must be a list of strings, got %T", names)
	}

	if stack, ok := images.(*tensors.Tensor); ok && stack != nil && stack.Rank() == 4 {
		c.Kind = KindParallel
		c.Stack = stack
		return c, nil
	}
	imagesCollection, err := Classify(images)
	if err != nil {
		return Collection{}, errors.WithMessage(err, "invalid \"images\"")
	}
	if imagesCollection.Kind != KindSequence {
		return Collection{}, errors.Wrapf(ErrUnsupportedType, "\"images\" must be a list or a rank-4 tensor, got %T", images)
	}
	c.Kind = KindParallel
	c.Items = imagesCollection.Items
	return c, nil
}

func classifyMapping[V any](m map[string]V) (Collection, error) {
	items := make(map[string]Item, len(m))
	for name, value := range m {
		item, err := toItem(value)
		if err != nil {
			return Collection{}, errors.WithMessagef(err, "item %q", name)
		}
		items[name] = item
	}
	return NewMapping(items), nil
}

func classifySequence[V any](values []V) (Collection, error) {
	items := make([]Item, len(values))
	for ii, value := range values {
		item, err := toItem(value)
		if err != nil {
			return Collection{}, errors.WithMessagef(err, "item #%d", ii)
		}
		items[ii] = item
	}
	return NewSequence(items), nil
}

// toItem converts one element of a mapping or sequence to an Item.
func toItem(value any) (Item, error) {
	var item Item
	switch typed := value.(type) {
	case Item:
		item = typed
	case *Item:
		if typed != nil {
			item = *typed
		}
	case *tensors.Tensor:
		item.Tensor = typed
	case image.Image:
		item.Image = typed
	default:
		return item, errors.Wrapf(ErrUnsupportedType, "cannot use %T as an image", value)
	}
	if err := item.Validate(); err != nil {
		return item, err
	}
	return item, nil
}
