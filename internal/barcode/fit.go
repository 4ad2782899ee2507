// Copyright (c) 2026 WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package barcode

import (
	"errors"
	"fmt"
	"math"
)

// Fit defaults.
const (
	DefaultMinModuleMM   = 0.02
	DefaultMaxModuleMM   = 1.0
	DefaultToleranceMM   = 0.02
	DefaultEpsilonMM     = 1e-5
	DefaultMaxIterations = 40
)

// ErrInvalidFit is returned for a non-positive target width or a bad search interval.
var ErrInvalidFit = errors.New("invalid fit parameters")

// SizingFunc reports the rendered width in millimeters of symbol at the given
// module width and per-side quiet zone. It must be non-decreasing in
// moduleWidthMM for Fit to converge.
type SizingFunc func(symbol string, moduleWidthMM, quietZoneMM float64) (float64, error)

// FitOptions controls the module width search. Zero values take the defaults.
type FitOptions struct {
	TargetWidthMM float64
	QuietZoneMM   float64
	MinModuleMM   float64
	MaxModuleMM   float64
	ToleranceMM   float64
	EpsilonMM     float64
	MaxIterations int
}

func (o FitOptions) withDefaults() FitOptions {
	if o.MinModuleMM == 0 {
		o.MinModuleMM = DefaultMinModuleMM
	}
	if o.MaxModuleMM == 0 {
		o.MaxModuleMM = DefaultMaxModuleMM
	}
	if o.ToleranceMM <= 0 {
		o.ToleranceMM = DefaultToleranceMM
	}
	if o.EpsilonMM <= 0 {
		o.EpsilonMM = DefaultEpsilonMM
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// FitResult is the best module width found. Converged is false when the
// search ended without reaching the tolerance; ErrorMM then tells the caller
// how far off the closest candidate is.
type FitResult struct {
	ModuleWidthMM float64
	WidthMM       float64
	ErrorMM       float64
	Iterations    int
	Converged     bool
}

// Fit bisects the module width until sizing(symbol, mw, qz) is within
// tolerance of the target width. A target outside the reachable range ends
// at the closer interval bound; that is reported through the result, not as
// an error.
func Fit(symbol string, sizing SizingFunc, opts FitOptions) (FitResult, error) {
	if symbol == "" {
		return FitResult{}, ErrEmptySymbol
	}
	opts = opts.withDefaults()
	if opts.TargetWidthMM <= 0 || math.IsNaN(opts.TargetWidthMM) || math.IsInf(opts.TargetWidthMM, 0) {
		return FitResult{}, fmt.Errorf("%w: target width %v mm", ErrInvalidFit, opts.TargetWidthMM)
	}
	if opts.MinModuleMM <= 0 || opts.MaxModuleMM <= opts.MinModuleMM {
		return FitResult{}, fmt.Errorf("%w: module interval [%v, %v] mm", ErrInvalidFit, opts.MinModuleMM, opts.MaxModuleMM)
	}
	if opts.QuietZoneMM < 0 {
		return FitResult{}, fmt.Errorf("%w: quiet zone %v mm", ErrInvalidFit, opts.QuietZoneMM)
	}

	lo, hi := opts.MinModuleMM, opts.MaxModuleMM
	best := FitResult{ErrorMM: math.Inf(1)}

	iter := 0
	for iter < opts.MaxIterations {
		iter++
		mid := (lo + hi) / 2

		width, err := sizing(symbol, mid, opts.QuietZoneMM)
		if err != nil {
			return FitResult{}, fmt.Errorf("sizing at module width %.5f mm: %w", mid, err)
		}

		diff := width - opts.TargetWidthMM
		if math.Abs(diff) < best.ErrorMM {
			best.ModuleWidthMM = mid
			best.WidthMM = width
			best.ErrorMM = math.Abs(diff)
		}
		if best.ErrorMM <= opts.ToleranceMM {
			best.Converged = true
			break
		}

		if diff > 0 {
			hi = mid // too wide, narrow the bars
		} else {
			lo = mid
		}
		if hi-lo < opts.EpsilonMM {
			break
		}
	}

	best.Iterations = iter
	return best, nil
}
