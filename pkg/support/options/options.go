// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package options implements free-form option maps (`map[string]any`), as given by users in
// code or configuration files, with typed lookups.
//
// Options are consumed by popping the keys a component understands: what remains can be
// forwarded to the next component, or reported as unknown.
package options

import (
	"encoding"
	"maps"
	"reflect"
	"slices"

	"github.com/pkg/errors"
)

// ErrInvalidOption is returned when an option value cannot be converted to the type requested.
var ErrInvalidOption = errors.New("invalid option")

// Options is a free-form map of option names to values.
// A nil Options is valid and empty for reading.
type Options map[string]any

// Clone returns a shallow copy of the options. It never returns nil.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// Has returns whether the key is set, even if set to nil.
func (o Options) Has(key string) bool {
	_, found := o[key]
	return found
}

// Keys returns the sorted option names.
func (o Options) Keys() []string {
	return slices.Sorted(maps.Keys(o))
}

// Pop removes the key from the options and returns its value, and whether it was set.
// A key explicitly set to nil returns (nil, true).
func (o Options) Pop(key string) (value any, found bool) {
	value, found = o[key]
	if found {
		delete(o, key)
	}
	return
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// Convert value to type T.
//
// It tries to cast the value to the given type. If it fails, it tries to convert the
// value to the given type (so an `int` will be converted to a `float64` transparently).
// Strings are decoded with encoding.TextUnmarshaler if T implements it.
func Convert[T any](value any) (T, error) {
	var t T
	if typed, ok := value.(T); ok {
		return typed, nil
	}
	typeOfT := reflect.TypeOf(t)
	if value == nil || typeOfT == nil {
		return t, errors.Wrapf(ErrInvalidOption, "cannot convert %#v to %T", value, t)
	}
	v := reflect.ValueOf(value)
	valueT := reflect.New(typeOfT)
	if valueT.Type().Implements(textUnmarshalerType) && v.Kind() == reflect.String {
		if err := valueT.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(v.String())); err != nil {
			return t, errors.Wrapf(ErrInvalidOption, "can't UnmarshalText %q to %s: %v", v.String(), typeOfT, err)
		}
		return valueT.Elem().Interface().(T), nil
	}
	// Numbers are convertible to strings in Go (as runes), which is never what a user option means.
	if typeOfT.Kind() == reflect.String && v.Kind() != reflect.String {
		return t, errors.Wrapf(ErrInvalidOption, "(%T) %#v cannot be converted to %s", value, value, typeOfT)
	}
	if isNumber(typeOfT.Kind()) != isNumber(v.Kind()) || !v.CanConvert(typeOfT) {
		return t, errors.Wrapf(ErrInvalidOption, "(%T) %#v cannot be converted to %s", value, value, typeOfT)
	}
	return v.Convert(typeOfT).Interface().(T), nil
}

func isNumber(kind reflect.Kind) bool {
	return (kind >= reflect.Int && kind <= reflect.Uint64) || kind == reflect.Float32 || kind == reflect.Float64
}

// Get returns the value of the key converted to T, and whether it was set.
// A key set to nil is considered not set.
func Get[T any](o Options, key string) (value T, found bool, err error) {
	valueAny, found := o[key]
	if !found || valueAny == nil {
		return value, false, nil
	}
	value, err = Convert[T](valueAny)
	if err != nil {
		err = errors.WithMessagef(err, "option %q", key)
	}
	return value, true, err
}

// PopOr removes the key from the options and returns its value converted to T.
// If the key is not set (or set to nil) it returns defaultValue.
func PopOr[T any](o Options, key string, defaultValue T) (T, error) {
	value, found, err := Get[T](o, key)
	delete(o, key)
	if err != nil {
		return defaultValue, err
	}
	if !found {
		return defaultValue, nil
	}
	return value, nil
}
