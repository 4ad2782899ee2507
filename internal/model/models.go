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

// Package model contains the issuance records written by the service and the
// structures used by the BigQuery export.
package model

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
)

// Savable defines the interface for types that can be converted to a map for storage.
type Savable interface {
	ToSaveable() map[string]any
}

// IssuedLabel records one barcode label the service rendered.
type IssuedLabel struct {
	ID              int64
	Symbol          string
	Mode            string
	DPI             int
	TargetWidthMM   float64
	TargetHeightMM  float64
	ModuleWidthMM   float64
	MeasuredWidthMM float64
	ErrorMM         float64
	Converged       bool
	CreatedAt       time.Time
}

// IssuedInvoice records one ZATCA payload the service produced.
// Amounts are kept as the exact two-decimal strings that went into the payload.
type IssuedInvoice struct {
	ID          int64
	Seller      string
	VATNumber   string
	InvoiceTime time.Time
	Total       string
	VATAmount   string
	Payload     string
	CreatedAt   time.Time
}

// ToSaveable converts the label record into a BigQuery JSON row.
func (l *IssuedLabel) ToSaveable() map[string]any {
	return map[string]any{
		"id":                l.ID,
		"symbol":            l.Symbol,
		"mode":              l.Mode,
		"dpi":               l.DPI,
		"target_width_mm":   l.TargetWidthMM,
		"target_height_mm":  l.TargetHeightMM,
		"module_width_mm":   l.ModuleWidthMM,
		"measured_width_mm": l.MeasuredWidthMM,
		"error_mm":          l.ErrorMM,
		"converged":         l.Converged,
		"created_at":        l.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToSaveable converts the invoice record into a BigQuery JSON row.
func (i *IssuedInvoice) ToSaveable() map[string]any {
	return map[string]any{
		"id":           i.ID,
		"seller":       i.Seller,
		"vat_number":   i.VATNumber,
		"invoice_time": i.InvoiceTime.UTC().Format(time.RFC3339Nano),
		"total":        i.Total,
		"vat_amount":   i.VATAmount,
		"payload":      i.Payload,
		"created_at":   i.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// BQTable represents a BigQuery table with its name and schema.
type BQTable struct {
	Name   string
	Schema bigquery.Schema
}

// LabelSchema is the BigQuery schema of exported labels.
var LabelSchema = bigquery.Schema{
	{Name: "id", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "symbol", Type: bigquery.StringFieldType, Required: true},
	{Name: "mode", Type: bigquery.StringFieldType},
	{Name: "dpi", Type: bigquery.IntegerFieldType},
	{Name: "target_width_mm", Type: bigquery.FloatFieldType},
	{Name: "target_height_mm", Type: bigquery.FloatFieldType},
	{Name: "module_width_mm", Type: bigquery.FloatFieldType},
	{Name: "measured_width_mm", Type: bigquery.FloatFieldType},
	{Name: "error_mm", Type: bigquery.FloatFieldType},
	{Name: "converged", Type: bigquery.BooleanFieldType},
	{Name: "created_at", Type: bigquery.TimestampFieldType, Required: true},
}

// InvoiceSchema is the BigQuery schema of exported invoices. Amounts stay
// NUMERIC so cents survive the trip.
var InvoiceSchema = bigquery.Schema{
	{Name: "id", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "seller", Type: bigquery.StringFieldType, Required: true},
	{Name: "vat_number", Type: bigquery.StringFieldType, Required: true},
	{Name: "invoice_time", Type: bigquery.TimestampFieldType},
	{Name: "total", Type: bigquery.NumericFieldType},
	{Name: "vat_amount", Type: bigquery.NumericFieldType},
	{Name: "payload", Type: bigquery.StringFieldType},
	{Name: "created_at", Type: bigquery.TimestampFieldType, Required: true},
}

// ExportConfig holds the BigQuery export settings.
type ExportConfig struct {
	GCPProjectID      string
	BigQueryDatasetID string
	LabelTable        string
	InvoiceTable      string

	Since     time.Time
	BatchSize int
	Timeout   time.Duration

	DryRun       bool
	CreateTables bool
}

// Job represents the export of one issuance table.
type Job struct {
	Name        string
	TargetTable string
	Schema      bigquery.Schema
	// Fetch returns up to limit rows created after since, oldest first, and
	// the creation time of the last row returned.
	Fetch func(ctx context.Context, since time.Time, limit int) ([]Savable, time.Time, error)
}

// SyncResult holds the result of one export job.
type SyncResult struct {
	TableName   string
	TargetTable string
	RowsSynced  int64
	Duration    time.Duration
	Error       error
	StartedAt   time.Time
	CompletedAt time.Time
}

// SyncSummary holds the overall export summary.
type SyncSummary struct {
	TotalTables     int
	SuccessfulSyncs int
	FailedSyncs     int
	TotalRowsSynced int64
	TotalDuration   time.Duration
	Results         []*SyncResult
}

// SchemasMatch validates equality of two BigQuery schemas by comparing field names and types.
// Records debug and warning logs for field count differences and type mismatches.
// Returns true only if no missing or mismatched fields are detected.
func SchemasMatch(s1, s2 bigquery.Schema, logger *zap.Logger) bool {
	logger.Debug("Comparing BigQuery schemas",
		zap.Int("schema1_fields", len(s1)),
		zap.Int("schema2_fields", len(s2)))
	if len(s1) != len(s2) {
		logger.Warn("Schema field count mismatch",
			zap.Int("schema1_count", len(s1)),
			zap.Int("schema2_count", len(s2)))
		return false
	}
	types := make(map[string]bigquery.FieldType, len(s1))
	for _, field := range s1 {
		types[field.Name] = field.Type
	}
	var mismatches []string
	for _, field := range s2 {
		if t, ok := types[field.Name]; !ok {
			mismatches = append(mismatches, "missing:"+field.Name)
		} else if t != field.Type {
			mismatches = append(mismatches, "type:"+field.Name)
		}
	}
	if len(mismatches) > 0 {
		logger.Warn("Schema mismatches detected",
			zap.Strings("mismatches", mismatches))
		return false
	}
	logger.Debug("Schemas match")
	return true
}
