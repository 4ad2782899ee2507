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

// Package store persists the issuance log: every label and ZATCA payload the
// service produced. MySQL and PostgreSQL are supported.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yalansy1989/code128/internal/model"

	"go.uber.org/zap"
)

// Store is the issuance log.
type Store interface {
	RecordLabel(ctx context.Context, l *model.IssuedLabel) error
	RecordInvoice(ctx context.Context, inv *model.IssuedInvoice) error
	LabelsSince(ctx context.Context, since time.Time, limit int) ([]*model.IssuedLabel, error)
	InvoicesSince(ctx context.Context, since time.Time, limit int) ([]*model.IssuedInvoice, error)
	Close() error
}

// Config holds the SQL connection settings.
type Config struct {
	Type             string // "mysql" or "postgres"
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db     *sql.DB
	dbType string
	logger *zap.Logger
}

// Open opens and pings the database. The driver must be registered by the caller.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*SQLStore, error) {
	driverName := driverFor(cfg.Type)
	logger.Debug("Opening database connection", zap.String("driver", driverName))

	db, err := sql.Open(driverName, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("Database connection established successfully")
	return New(db, driverName, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dbType string, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, dbType: driverFor(dbType), logger: logger}
}

func driverFor(dbType string) string {
	if strings.EqualFold(strings.TrimSpace(dbType), "postgres") {
		return "postgres"
	}
	return "mysql"
}

// Migrate creates the issuance tables when they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaFor(s.dbType) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate issuance tables: %w", err)
		}
	}
	s.logger.Info("Issuance tables ready", zap.String("db_type", s.dbType))
	return nil
}

func schemaFor(dbType string) []string {
	id := "BIGINT AUTO_INCREMENT PRIMARY KEY"
	ts := "DATETIME(6)"
	if dbType == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS issued_labels (
			id ` + id + `,
			symbol VARCHAR(255) NOT NULL,
			mode VARCHAR(16) NOT NULL,
			dpi INTEGER NOT NULL,
			target_width_mm DOUBLE PRECISION NOT NULL,
			target_height_mm DOUBLE PRECISION NOT NULL,
			module_width_mm DOUBLE PRECISION NOT NULL,
			measured_width_mm DOUBLE PRECISION NOT NULL,
			error_mm DOUBLE PRECISION NOT NULL,
			converged BOOLEAN NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS issued_invoices (
			id ` + id + `,
			seller VARCHAR(255) NOT NULL,
			vat_number VARCHAR(32) NOT NULL,
			invoice_time ` + ts + ` NOT NULL,
			total DECIMAL(18,2) NOT NULL,
			vat_amount DECIMAL(18,2) NOT NULL,
			payload TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
	}
}

// rebind rewrites '?' placeholders to $N for PostgreSQL.
func rebind(dbType, query string) string {
	if dbType != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// RecordLabel inserts a label record and sets its ID when the driver reports it.
func (s *SQLStore) RecordLabel(ctx context.Context, l *model.IssuedLabel) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	q := `INSERT INTO issued_labels (symbol, mode, dpi, target_width_mm, target_height_mm,
		module_width_mm, measured_width_mm, error_mm, converged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{l.Symbol, l.Mode, l.DPI, l.TargetWidthMM, l.TargetHeightMM,
		l.ModuleWidthMM, l.MeasuredWidthMM, l.ErrorMM, l.Converged, l.CreatedAt}

	id, err := s.insert(ctx, q, args)
	if err != nil {
		return fmt.Errorf("failed to record label: %w", err)
	}
	l.ID = id
	return nil
}

// RecordInvoice inserts an invoice record and sets its ID when the driver reports it.
func (s *SQLStore) RecordInvoice(ctx context.Context, inv *model.IssuedInvoice) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	q := `INSERT INTO issued_invoices (seller, vat_number, invoice_time, total, vat_amount, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []any{inv.Seller, inv.VATNumber, inv.InvoiceTime, inv.Total, inv.VATAmount, inv.Payload, inv.CreatedAt}

	id, err := s.insert(ctx, q, args)
	if err != nil {
		return fmt.Errorf("failed to record invoice: %w", err)
	}
	inv.ID = id
	return nil
}

// insert runs an INSERT and returns the new row id. lib/pq does not support
// LastInsertId, so PostgreSQL uses RETURNING.
func (s *SQLStore) insert(ctx context.Context, q string, args []any) (int64, error) {
	if s.dbType == "postgres" {
		var id int64
		err := s.db.QueryRowContext(ctx, rebind(s.dbType, q)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		s.logger.Debug("Driver did not report insert id", zap.Error(err))
		return 0, nil
	}
	return id, nil
}

// LabelsSince returns labels created strictly after since, oldest first.
func (s *SQLStore) LabelsSince(ctx context.Context, since time.Time, limit int) ([]*model.IssuedLabel, error) {
	q := rebind(s.dbType, "SELECT "+model.LabelColumns+" FROM issued_labels WHERE created_at > ? ORDER BY created_at, id LIMIT ?")
	rows, err := s.db.QueryContext(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	out, err := scanAll(rows, model.ParseLabelRow, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return out, nil
}

// InvoicesSince returns invoices created strictly after since, oldest first.
func (s *SQLStore) InvoicesSince(ctx context.Context, since time.Time, limit int) ([]*model.IssuedInvoice, error) {
	q := rebind(s.dbType, "SELECT "+model.InvoiceColumns+" FROM issued_invoices WHERE created_at > ? ORDER BY created_at, id LIMIT ?")
	rows, err := s.db.QueryContext(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	out, err := scanAll(rows, model.ParseInvoiceRow, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	return out, nil
}

// rowIterator is the part of *sql.Rows that scanAll needs.
type rowIterator interface {
	model.RowScanner
	Next() bool
	Err() error
}

// scanAll parses every row. A row that cannot be parsed fails the whole read.
func scanAll[T any](rows rowIterator, parse func(model.RowScanner, *zap.Logger) (T, error), logger *zap.Logger) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := parse(rows, logger)
		if err != nil {
			logger.Error("Failed to parse row", zap.Int("row", len(out)), zap.Error(err))
			return nil, fmt.Errorf("row %d: %w", len(out), err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// NopStore discards records. It is used when the issuance log is disabled.
type NopStore struct{}

func (NopStore) RecordLabel(context.Context, *model.IssuedLabel) error     { return nil }
func (NopStore) RecordInvoice(context.Context, *model.IssuedInvoice) error { return nil }
func (NopStore) LabelsSince(context.Context, time.Time, int) ([]*model.IssuedLabel, error) {
	return nil, nil
}
func (NopStore) InvoicesSince(context.Context, time.Time, int) ([]*model.IssuedInvoice, error) {
	return nil, nil
}
func (NopStore) Close() error { return nil }
