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

package zatca

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/yalansy1989/code128/internal/money"
	"github.com/yalansy1989/code128/internal/tlv"
)

const acmePayload = "AQRBQ01FAg8xMjM0NTY3ODkwMTIzNDUDFDIwMjQtMDEtMDFUMDA6MDA6MDBaBAYxMTUuMDAFBTE1LjAw"

var standardRate = decimal.RequireFromString("0.15")

func acme() Invoice {
	return Invoice{
		Seller:    "ACME",
		VATNumber: "123456789012345",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Total:     decimal.RequireFromString("115"),
		VATAmount: decimal.RequireFromString("15"),
	}
}

func TestInvoicePayloadACME(t *testing.T) {
	got, err := acme().Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if got != acmePayload {
		t.Fatalf("payload mismatch\n got %s\nwant %s", got, acmePayload)
	}

	fields, err := tlv.DecodeBase64(got)
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	want := map[tlv.Tag]string{
		tlv.TagSeller:    "ACME",
		tlv.TagVATNumber: "123456789012345",
		tlv.TagTimestamp: "2024-01-01T00:00:00Z",
		tlv.TagTotal:     "115.00",
		tlv.TagVATAmount: "15.00",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("decoded fields mismatch (-want +got):\n%s", diff)
	}
}

func TestInvoiceFieldsRoundAmountsHalfUp(t *testing.T) {
	inv := acme()
	inv.Total = decimal.RequireFromString("10.005")
	inv.VATAmount = decimal.RequireFromString("1.3049")
	fields := inv.Fields()
	if fields[3].Value != "10.01" || fields[4].Value != "1.30" {
		t.Fatalf("amounts = %q, %q", fields[3].Value, fields[4].Value)
	}
}

func TestInvoiceTimestampIsUTC(t *testing.T) {
	inv := acme()
	inv.Timestamp = time.Date(2024, 1, 1, 3, 0, 0, 0, time.FixedZone("AST", 3*60*60))
	if got := inv.Fields()[2].Value; got != "2024-01-01T00:00:00Z" {
		t.Fatalf("timestamp = %q", got)
	}
}

func TestInvoiceValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Invoice)
		field string
	}{
		{"blank seller", func(i *Invoice) { i.Seller = "  " }, "seller"},
		{"short vat number", func(i *Invoice) { i.VATNumber = "12345678901234" }, "vat_number"},
		{"long vat number", func(i *Invoice) { i.VATNumber = "1234567890123456" }, "vat_number"},
		{"vat number with separators", func(i *Invoice) { i.VATNumber = "123-456789012345" }, "vat_number"},
		{"zero timestamp", func(i *Invoice) { i.Timestamp = time.Time{} }, "timestamp"},
		{"negative total", func(i *Invoice) { i.Total = decimal.NewFromInt(-1) }, "total"},
		{"negative vat", func(i *Invoice) { i.VATAmount = decimal.NewFromInt(-1) }, "vat_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := acme()
			tt.edit(&inv)
			err := inv.Validate()
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Fatalf("got %v, want FieldError on %s", err, tt.field)
			}
			if !errors.Is(err, ErrInvalidInvoice) {
				t.Fatalf("error %v does not wrap ErrInvalidInvoice", err)
			}
		})
	}
}

func TestInvoicePayloadSellerTooLong(t *testing.T) {
	inv := acme()
	inv.Seller = strings.Repeat("s", 256)
	_, err := inv.Payload()
	if !errors.Is(err, tlv.ErrFieldTooLong) || !errors.Is(err, ErrInvalidInvoice) {
		t.Fatalf("got %v, want field-too-long invoice error", err)
	}
}

func TestParseForm(t *testing.T) {
	tests := []struct {
		name string
		form Form
	}{
		{"local time with offset", Form{
			Seller: " ACME ", VATNumber: "123 456 789 012 345", Total: "115",
			Date: "2024-01-01", Time: "03:00", UTCOffset: "+03:00",
		}},
		{"rfc3339 timestamp", Form{
			Seller: "ACME", VATNumber: "123456789012345", Total: "115.00",
			Timestamp: "2024-01-01T03:00:00+03:00",
		}},
		{"explicit vat amount", Form{
			Seller: "ACME", VATNumber: "123456789012345", Total: "115.00", VATAmount: "15",
			Date: "2024-01-01",
		}},
		{"arabic digits", Form{
			Seller: "ACME", VATNumber: "١٢٣٤٥٦٧٨٩٠١٢٣٤٥",
			Total: "١١٥", Date: "2024-01-01", Time: "00:00:00", UTCOffset: "Z",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := ParseForm(tt.form, standardRate)
			if err != nil {
				t.Fatalf("ParseForm: %v", err)
			}
			got, err := inv.Payload()
			if err != nil {
				t.Fatalf("Payload: %v", err)
			}
			if got != acmePayload {
				t.Fatalf("payload %s, want %s", got, acmePayload)
			}
		})
	}
}

func TestParseFormDerivesVATAtFormRate(t *testing.T) {
	inv, err := ParseForm(Form{
		Seller: "ACME", VATNumber: "123456789012345", Total: "105", VATRate: "5%", Date: "2024-01-01",
	}, standardRate)
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}
	if got := money.Format(inv.VATAmount); got != "5.00" {
		t.Fatalf("vat = %s, want 5.00", got)
	}
}

func TestParseFormErrors(t *testing.T) {
	base := Form{Seller: "ACME", VATNumber: "123456789012345", Total: "115", Date: "2024-01-01"}
	tests := []struct {
		name   string
		edit   func(*Form)
		field  string
		target error
	}{
		{"no seller", func(f *Form) { f.Seller = "" }, "seller", ErrInvalidInvoice},
		{"14 digit vat", func(f *Form) { f.VATNumber = "12345678901234" }, "vat_number", ErrInvalidInvoice},
		{"bad total", func(f *Form) { f.Total = "1,000" }, "total", money.ErrInvalidAmount},
		{"bad vat amount", func(f *Form) { f.VATAmount = "abc" }, "vat_amount", money.ErrInvalidAmount},
		{"bad rate", func(f *Form) { f.VATRate = "150%" }, "vat_rate", money.ErrInvalidRate},
		{"no date", func(f *Form) { f.Date = "" }, "date", ErrInvalidInvoice},
		{"bad date", func(f *Form) { f.Date = "01/01/2024" }, "date", ErrInvalidInvoice},
		{"bad offset", func(f *Form) { f.UTCOffset = "AST" }, "date", ErrInvalidInvoice},
		{"bad timestamp", func(f *Form) { f.Timestamp = "2024-01-01 00:00" }, "timestamp", ErrInvalidInvoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.edit(&f)
			_, err := ParseForm(f, standardRate)
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Fatalf("got %v, want FieldError on %s", err, tt.field)
			}
			if !errors.Is(err, tt.target) {
				t.Fatalf("error %v does not wrap %v", err, tt.target)
			}
		})
	}
}
