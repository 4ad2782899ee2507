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
	"math"

	"github.com/yalansy1989/code128/internal/textnorm"
)

// MMPerInch converts between the two physical units used by print dialogs.
const MMPerInch = 25.4

// ErrEmptySymbol is returned when nothing printable is left after sanitizing the input.
var ErrEmptySymbol = errors.New("symbol is empty after sanitization")

// InchesToMM converts inches to millimeters.
func InchesToMM(in float64) float64 { return in * MMPerInch }

// MMToPixels converts a physical length to whole pixels at dpi.
func MMToPixels(mm float64, dpi int) int {
	return int(math.Round(mm * float64(dpi) / MMPerInch))
}

// PixelsToMM converts a pixel count back to millimeters at dpi.
func PixelsToMM(px, dpi int) float64 {
	return float64(px) * MMPerInch / float64(dpi)
}

// Sanitize maps Arabic digits to ASCII, strips bidi/format controls and any
// other non-ASCII rune, and trims whitespace.
func Sanitize(s string) string {
	return textnorm.ASCII(s)
}

// PrepareSymbol sanitizes s and rejects it when nothing is left.
func PrepareSymbol(s string) (string, error) {
	clean := Sanitize(s)
	if clean == "" {
		return "", ErrEmptySymbol
	}
	return clean, nil
}
