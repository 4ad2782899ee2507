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
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yalansy1989/code128/internal/model"
	"github.com/yalansy1989/code128/internal/money"
	"github.com/yalansy1989/code128/internal/qr"
	"github.com/yalansy1989/code128/internal/store"
	"github.com/yalansy1989/code128/internal/tlv"
)

// QRResult is a rendered ZATCA QR code together with the payload it carries.
type QRResult struct {
	Payload string
	PNG     []byte
}

type Service interface {
	Payload(ctx context.Context, inv Invoice) (string, error)
	QR(ctx context.Context, inv Invoice, size int) (*QRResult, error)
	Inspect(payload string) (Report, error)
}

type service struct {
	qr     qr.Service
	store  store.Store
	logger *zap.Logger
}

// NewService creates a ZATCA service. Issued invoices are recorded in st.
func NewService(qrSvc qr.Service, st store.Store, logger *zap.Logger) Service {
	if st == nil {
		st = store.NopStore{}
	}
	return &service{qr: qrSvc, store: st, logger: logger}
}

// Payload encodes inv and records it in the issuance log.
func (s *service) Payload(ctx context.Context, inv Invoice) (string, error) {
	payload, err := inv.Payload()
	if err != nil {
		s.logger.Warn("Rejected invoice", zap.Error(err))
		return "", err
	}
	s.record(ctx, inv, payload)
	return payload, nil
}

// QR encodes inv and renders its payload as a size×size PNG.
func (s *service) QR(ctx context.Context, inv Invoice, size int) (*QRResult, error) {
	payload, err := inv.Payload()
	if err != nil {
		s.logger.Warn("Rejected invoice", zap.Error(err))
		return nil, err
	}

	png, err := s.qr.Generate([]byte(payload), size)
	if err != nil {
		return nil, fmt.Errorf("failed to render ZATCA QR: %w", err)
	}

	s.record(ctx, inv, payload)
	return &QRResult{Payload: payload, PNG: png}, nil
}

// Inspect decodes a scanned payload and reports which fields are valid.
// Only malformed Base64 is an error; a truncated TLV body yields a report
// with the unread fields marked missing.
func (s *service) Inspect(payload string) (Report, error) {
	fields, err := tlv.DecodeBase64(payload)
	if err != nil {
		return Report{}, err
	}
	report := Validate(fields)
	s.logger.Debug("Payload inspected",
		zap.Int("fields_found", len(fields)),
		zap.Bool("valid", report.Valid),
	)
	return report, nil
}

// record writes the issuance log entry. Failures are logged only: the
// payload handed back to the caller is valid either way.
func (s *service) record(ctx context.Context, inv Invoice, payload string) {
	rec := &model.IssuedInvoice{
		Seller:      inv.Seller,
		VATNumber:   inv.VATNumber,
		InvoiceTime: inv.Timestamp.UTC(),
		Total:       money.Format(inv.Total),
		VATAmount:   money.Format(inv.VATAmount),
		Payload:     payload,
	}
	if err := s.store.RecordInvoice(ctx, rec); err != nil {
		s.logger.Error("Failed to record issued invoice",
			zap.Error(err),
			zap.String("vat_number", inv.VATNumber),
		)
		return
	}
	s.logger.Info("Invoice payload issued",
		zap.Int64("id", rec.ID),
		zap.String("vat_number", inv.VATNumber),
		zap.Int("payload_length", len(payload)),
	)
}
