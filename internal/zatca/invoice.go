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

// Package zatca builds, renders and checks ZATCA (Saudi e-invoicing) phase-one
// QR payloads.
package zatca

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yalansy1989/code128/internal/money"
	"github.com/yalansy1989/code128/internal/textnorm"
	"github.com/yalansy1989/code128/internal/tlv"
)

// TimestampLayout is the payload timestamp format: UTC, second precision, literal Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

// VATNumberDigits is the length of a Saudi VAT registration number.
const VATNumberDigits = 15

// ErrInvalidInvoice is the parent of every FieldError.
var ErrInvalidInvoice = errors.New("invalid invoice")

// FieldError reports which input field was rejected.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInvoice, e.Err}
	}
	return []error{ErrInvalidInvoice}
}

// Invoice carries the five payload fields in typed form.
type Invoice struct {
	Seller    string
	VATNumber string
	Timestamp time.Time
	Total     decimal.Decimal
	VATAmount decimal.Decimal
}

// Fields returns the TLV fields in tag order.
func (inv Invoice) Fields() []tlv.Field {
	return []tlv.Field{
		{Tag: tlv.TagSeller, Value: inv.Seller},
		{Tag: tlv.TagVATNumber, Value: inv.VATNumber},
		{Tag: tlv.TagTimestamp, Value: inv.Timestamp.UTC().Format(TimestampLayout)},
		{Tag: tlv.TagTotal, Value: money.Format(inv.Total)},
		{Tag: tlv.TagVATAmount, Value: money.Format(inv.VATAmount)},
	}
}

// Payload returns the Base64 TLV payload to embed in the QR code.
func (inv Invoice) Payload() (string, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}
	payload, err := tlv.EncodeBase64(inv.Fields())
	if err != nil {
		return "", &FieldError{Field: "payload", Reason: err.Error(), Err: err}
	}
	return payload, nil
}

// Validate checks the invoice before encoding.
func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.Seller) == "" {
		return &FieldError{Field: "seller", Reason: "required"}
	}
	if len(inv.VATNumber) != VATNumberDigits || textnorm.DigitsOnly(inv.VATNumber) != inv.VATNumber {
		return &FieldError{Field: "vat_number", Reason: fmt.Sprintf("must be exactly %d digits", VATNumberDigits)}
	}
	if inv.Timestamp.IsZero() {
		return &FieldError{Field: "timestamp", Reason: "required"}
	}
	if inv.Total.IsNegative() {
		return &FieldError{Field: "total", Reason: "must not be negative"}
	}
	if inv.VATAmount.IsNegative() {
		return &FieldError{Field: "vat_amount", Reason: "must not be negative"}
	}
	return nil
}

// Form is the raw invoice input as typed by a user.
type Form struct {
	Seller    string `json:"seller"`
	VATNumber string `json:"vat_number"`
	Total     string `json:"total"`
	VATAmount string `json:"vat_amount,omitempty"`
	VATRate   string `json:"vat_rate,omitempty"`
	// Timestamp takes precedence over Date/Time when set (RFC 3339).
	Timestamp string `json:"timestamp,omitempty"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD
	Time      string `json:"time,omitempty"` // HH:MM or HH:MM:SS
	// UTCOffset applies to Date/Time, e.g. "+03:00". Empty means UTC.
	UTCOffset string `json:"utc_offset,omitempty"`
}

// ParseForm strictly converts user input into an Invoice. When the VAT
// amount is blank it is derived from the VAT-inclusive total at the form's
// rate, or defaultRate when the form has none.
func ParseForm(f Form, defaultRate decimal.Decimal) (Invoice, error) {
	inv := Invoice{
		Seller:    strings.TrimSpace(f.Seller),
		VATNumber: textnorm.DigitsOnly(f.VATNumber),
	}
	if inv.Seller == "" {
		return Invoice{}, &FieldError{Field: "seller", Reason: "required"}
	}
	if len(inv.VATNumber) != VATNumberDigits {
		return Invoice{}, &FieldError{Field: "vat_number", Reason: fmt.Sprintf("must be exactly %d digits, got %d", VATNumberDigits, len(inv.VATNumber))}
	}

	total, err := money.Parse(f.Total)
	if err != nil {
		return Invoice{}, &FieldError{Field: "total", Reason: err.Error(), Err: err}
	}
	inv.Total = money.Round(total)

	if strings.TrimSpace(f.VATAmount) != "" {
		vat, err := money.Parse(f.VATAmount)
		if err != nil {
			return Invoice{}, &FieldError{Field: "vat_amount", Reason: err.Error(), Err: err}
		}
		inv.VATAmount = money.Round(vat)
	} else {
		rate := defaultRate
		if strings.TrimSpace(f.VATRate) != "" {
			if rate, err = money.ParseRate(f.VATRate); err != nil {
				return Invoice{}, &FieldError{Field: "vat_rate", Reason: err.Error(), Err: err}
			}
		}
		inv.VATAmount = money.Breakdown(inv.Total, rate, true).VAT
	}

	if inv.Timestamp, err = parseTimestamp(f); err != nil {
		return Invoice{}, err
	}
	if err := inv.Validate(); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func parseTimestamp(f Form) (time.Time, error) {
	if ts := strings.TrimSpace(f.Timestamp); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, &FieldError{Field: "timestamp", Reason: "must be RFC 3339"}
		}
		return t.UTC().Truncate(time.Second), nil
	}

	date := strings.TrimSpace(textnorm.ASCIIDigits(f.Date))
	clock := strings.TrimSpace(textnorm.ASCIIDigits(f.Time))
	if date == "" {
		return time.Time{}, &FieldError{Field: "date", Reason: "required"}
	}
	if clock == "" {
		clock = "00:00:00"
	} else if strings.Count(clock, ":") == 1 {
		clock += ":00"
	}

	offset := strings.TrimSpace(f.UTCOffset)
	if offset == "" || offset == "Z" {
		offset = "+00:00"
	}
	t, err := time.Parse("2006-01-02T15:04:05-07:00", date+"T"+clock+offset)
	if err != nil {
		return time.Time{}, &FieldError{Field: "date", Reason: "expected YYYY-MM-DD, HH:MM[:SS] and ±HH:MM offset"}
	}
	return t.UTC(), nil
}
