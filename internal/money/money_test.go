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

package money

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestFormatRoundsHalfUp(t *testing.T) {
	tests := map[string]string{
		"10.005":  "10.01",
		"10.004":  "10.00",
		"0.125":   "0.13",
		"2.675":   "2.68",
		"115":     "115.00",
		"15.5":    "15.50",
		"-10.005": "-10.01",
		"+7":      "7.00",
	}
	for in, want := range tests {
		got, err := FormatString(in)
		if err != nil {
			t.Errorf("FormatString(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("FormatString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"", "  ", "abc", "1,000.00", "12.3.4", "NaN", "Inf",
		"1e2", "1e20000000", ".5", "1.", "1E-5", "0x1F", "- 5", "123456789012345678901234567890123",
	} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Parse(%q): got %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestParseArabicDigits(t *testing.T) {
	d, err := Parse(" ١١٥٫٠٠ ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.Equal(decimal.NewFromInt(115)) {
		t.Fatalf("got %s, want 115", d)
	}
}

func TestParseRate(t *testing.T) {
	tests := map[string]string{
		"0.15": "0.15",
		"15":   "0.15",
		"15%":  "0.15",
		"5 %":  "0.05",
		"0":    "0",
		"1":    "1",
	}
	for in, want := range tests {
		got, err := ParseRate(in)
		if err != nil {
			t.Errorf("ParseRate(%q): %v", in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParseRate(%q) = %s, want %s", in, got, want)
		}
	}

	for _, in := range []string{"-5", "150", "x"} {
		if _, err := ParseRate(in); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("ParseRate(%q): got %v, want ErrInvalidRate", in, err)
		}
	}
}

func TestBreakdown(t *testing.T) {
	rate := decimal.RequireFromString("0.15")

	tests := []struct {
		name      string
		amount    string
		inclusive bool
		want      map[string]string
	}{
		{
			name:      "inclusive",
			amount:    "115.00",
			inclusive: true,
			want:      map[string]string{"rate": "15%", "net": "100.00", "vat": "15.00", "gross": "115.00"},
		},
		{
			name:      "exclusive",
			amount:    "100",
			inclusive: false,
			want:      map[string]string{"rate": "15%", "net": "100.00", "vat": "15.00", "gross": "115.00"},
		},
		{
			name:      "inclusive with rounding",
			amount:    "10.00",
			inclusive: true,
			want:      map[string]string{"rate": "15%", "net": "8.70", "vat": "1.30", "gross": "10.00"},
		},
		{
			name:      "exclusive half cent",
			amount:    "0.10",
			inclusive: false,
			want:      map[string]string{"rate": "15%", "net": "0.10", "vat": "0.02", "gross": "0.12"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := Breakdown(decimal.RequireFromString(tc.amount), rate, tc.inclusive)
			if diff := cmp.Diff(tc.want, b.Strings()); diff != "" {
				t.Fatalf("breakdown mismatch (-want +got):\n%s", diff)
			}
			if !b.Net.Add(b.VAT).Equal(b.Gross) {
				t.Fatalf("net %s + vat %s != gross %s", b.Net, b.VAT, b.Gross)
			}
		})
	}
}
