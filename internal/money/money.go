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

// Package money parses and formats invoice amounts and computes VAT breakdowns.
// All rounding is commercial (half away from zero) to two fraction digits.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yalansy1989/code128/internal/textnorm"
)

// Places is the number of fraction digits used for every displayed amount.
const Places = 2

var (
	// ErrInvalidAmount is returned when an amount is empty or not a base-10 number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidRate is returned for VAT rates outside 0..100%.
	ErrInvalidRate = errors.New("invalid VAT rate")
)

var hundred = decimal.NewFromInt(100)

// MaxAmountLen bounds the textual length of an amount.
const MaxAmountLen = 32

// amountPattern is plain positional notation; exponents are not accepted.
var amountPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

// Round rounds d half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders d with exactly two fraction digits; "10.005" becomes "10.01".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Parse reads a base-10 amount in plain positional notation. Surrounding
// spaces are ignored and Arabic digits are accepted; exponents and anything
// else that is not a number are rejected.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(textnorm.ASCIIDigits(s))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if len(s) > MaxAmountLen {
		return decimal.Zero, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, MaxAmountLen)
	}
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// FormatString parses s and reformats it to two fraction digits.
func FormatString(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}

// ParseRate reads a VAT rate given either as a fraction ("0.15") or as a
// percentage ("15", "15%"). Values above 1 are taken as percentages.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	if percent || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(hundred)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidRate, s)
	}
	return d, nil
}

// VATBreakdown splits an amount into its net and tax parts.
// Net + VAT equals Gross exactly after rounding.
type VATBreakdown struct {
	Rate  decimal.Decimal
	Net   decimal.Decimal
	VAT   decimal.Decimal
	Gross decimal.Decimal
}

// Breakdown computes the VAT parts of amount at rate. When inclusive is true,
// amount is the gross (tax-included) total; otherwise it is the net amount.
func Breakdown(amount, rate decimal.Decimal, inclusive bool) VATBreakdown {
	b := VATBreakdown{Rate: rate}
	if inclusive {
		b.Gross = Round(amount)
		b.Net = Round(b.Gross.Div(decimal.NewFromInt(1).Add(rate)))
		b.VAT = b.Gross.Sub(b.Net)
		return b
	}
	b.Net = Round(amount)
	b.VAT = Round(b.Net.Mul(rate))
	b.Gross = b.Net.Add(b.VAT)
	return b
}

// Strings returns the breakdown formatted for display, rate as a percentage.
func (b VATBreakdown) Strings() map[string]string {
	return map[string]string{
		"rate":  b.Rate.Mul(hundred).String() + "%",
		"net":   Format(b.Net),
		"vat":   Format(b.VAT),
		"gross": Format(b.Gross),
	}
}
