// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"math"

	"github.com/gomlx/imageset/pkg/core/dtypes"
	"github.com/gomlx/imageset/pkg/core/tensors"
	"k8s.io/klog/v2"
)

// Scaler linearly maps the values of a tensor from its own range `[min, max]` to `[lower, upper]`,
// and converts the result to Uint8. Create it with Scale.
type Scaler struct {
	lower, upper       float64
	hasLower, hasUpper bool
}

// Scale returns a Scaler with no bounds set: it is a no-op until Lower or Upper is configured.
//
// Example:
//
//	scaled, err := images.Scale().Lower(0).Upper(255).Apply(t)
func Scale() *Scaler {
	return &Scaler{}
}

// Lower sets the value the minimum of the tensor is mapped to.
// If not set, it defaults to the minimum of the tensor.
func (s *Scaler) Lower(value float64) *Scaler {
	s.lower, s.hasLower = value, true
	return s
}

// Upper sets the value the maximum of the tensor is mapped to.
// If not set, it defaults to the maximum of the tensor.
func (s *Scaler) Upper(value float64) *Scaler {
	s.upper, s.hasUpper = value, true
	return s
}

// Enabled returns whether any of the bounds is set.
func (s *Scaler) Enabled() bool {
	return s != nil && (s.hasLower || s.hasUpper)
}

// Apply the scaling to t. If no bound was set, t is returned unchanged.
//
// Otherwise, the result is a new Uint8 tensor with the values `(v-min)*(upper-lower)/(max-min)+lower`,
// truncated toward zero and saturated to [0, 255].
// If all values are the same (max == min), the values are converted to Uint8 without rescaling.
func (s *Scaler) Apply(t *tensors.Tensor) (*tensors.Tensor, error) {
	if !s.Enabled() {
		return t, nil
	}
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	minValue, maxValue := t.MinMax()
	klog.InfoS("scaling image values", "max_val", maxValue, "min_val", minValue)
	if math.IsNaN(minValue) || maxValue == minValue {
		klog.Warningf("images.Scale: tensor %s has a constant value %g, converting to Uint8 without rescaling",
			t.Shape(), minValue)
		return t.ConvertDType(dtypes.Uint8), nil
	}
	lower, upper := minValue, maxValue
	if s.hasLower {
		lower = s.lower
	}
	if s.hasUpper {
		upper = s.upper
	}
	values := t.Float64s()
	for ii, v := range values {
		values[ii] = (v-minValue)*(upper-lower)/(maxValue-minValue) + lower
	}
	return tensors.FromFloat64s(values, dtypes.Uint8, t.Shape().Dimensions...), nil
}

// Transform returns the scaler as a tensor transformation function, to be applied lazily, e.g.
// by datasets.NewListView.
func (s *Scaler) Transform() func(t *tensors.Tensor) (*tensors.Tensor, error) {
	return s.Apply
}
