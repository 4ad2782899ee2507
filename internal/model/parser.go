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

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// RowScanner is the subset of *sql.Rows used by the row parsers.
type RowScanner interface {
	Scan(dest ...any) error
}

// LabelColumns is the column order ParseLabelRow expects.
const LabelColumns = "id, symbol, mode, dpi, target_width_mm, target_height_mm, module_width_mm, measured_width_mm, error_mm, converged, created_at"

// InvoiceColumns is the column order ParseInvoiceRow expects.
const InvoiceColumns = "id, seller, vat_number, invoice_time, total, vat_amount, payload, created_at"

// ParseLabelRow scans one label row. MySQL and PostgreSQL drivers return
// different Go types for the same column, so values are scanned loosely and
// converted here.
func ParseLabelRow(rows RowScanner, logger *zap.Logger) (*IssuedLabel, error) {
	vals, err := scanAny(rows, 11)
	if err != nil {
		return nil, err
	}

	l := &IssuedLabel{}
	var errs []string
	convert := func(name string, fn func() error) {
		if err := fn(); err != nil {
			errs = append(errs, name+": "+err.Error())
		}
	}
	convert("id", func() (err error) { l.ID, err = asInt(vals[0]); return })
	l.Symbol = asString(vals[1], logger)
	l.Mode = asString(vals[2], logger)
	convert("dpi", func() error { v, err := asInt(vals[3]); l.DPI = int(v); return err })
	convert("target_width_mm", func() (err error) { l.TargetWidthMM, err = asFloat(vals[4]); return })
	convert("target_height_mm", func() (err error) { l.TargetHeightMM, err = asFloat(vals[5]); return })
	convert("module_width_mm", func() (err error) { l.ModuleWidthMM, err = asFloat(vals[6]); return })
	convert("measured_width_mm", func() (err error) { l.MeasuredWidthMM, err = asFloat(vals[7]); return })
	convert("error_mm", func() (err error) { l.ErrorMM, err = asFloat(vals[8]); return })
	convert("converged", func() (err error) { l.Converged, err = asBool(vals[9]); return })
	convert("created_at", func() (err error) { l.CreatedAt, err = asTime(vals[10]); return })

	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to parse label row: %s", strings.Join(errs, "; "))
	}
	return l, nil
}

// ParseInvoiceRow scans one invoice row.
func ParseInvoiceRow(rows RowScanner, logger *zap.Logger) (*IssuedInvoice, error) {
	vals, err := scanAny(rows, 8)
	if err != nil {
		return nil, err
	}

	inv := &IssuedInvoice{
		Seller:    asString(vals[1], logger),
		VATNumber: asString(vals[2], logger),
		Total:     asString(vals[4], logger),
		VATAmount: asString(vals[5], logger),
		Payload:   asString(vals[6], logger),
	}
	if inv.ID, err = asInt(vals[0]); err != nil {
		return nil, fmt.Errorf("failed to parse invoice row: id: %w", err)
	}
	if inv.InvoiceTime, err = asTime(vals[3]); err != nil {
		return nil, fmt.Errorf("failed to parse invoice row: invoice_time: %w", err)
	}
	if inv.CreatedAt, err = asTime(vals[7]); err != nil {
		return nil, fmt.Errorf("failed to parse invoice row: created_at: %w", err)
	}
	return inv, nil
}

func scanAny(rows RowScanner, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return values, nil
}

// asString sanitizes invalid UTF-8 so the BigQuery JSON upload does not fail.
func asString(val any, logger *zap.Logger) string {
	var s string
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		logger.Debug("Converting unknown type to string",
			zap.String("type", fmt.Sprintf("%T", v)))
		return fmt.Sprintf("%v", v)
	}
	if !utf8.ValidString(s) {
		logger.Debug("Invalid UTF-8 sequence detected, sanitizing",
			zap.Int("original_length", len(s)))
		return strings.ToValidUTF8(s, "")
	}
	return s
}

func asInt(val any) (int64, error) {
	switch v := val.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("unsupported integer type %T", val)
}

func asFloat(val any) (float64, error) {
	switch v := val.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("unsupported float type %T", val)
}

func asBool(val any) (bool, error) {
	switch v := val.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("unsupported bool type %T", val)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func asTime(val any) (time.Time, error) {
	switch v := val.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}
	return time.Time{}, fmt.Errorf("unsupported time type %T", val)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
