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
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yalansy1989/code128/internal/model"
	"github.com/yalansy1989/code128/internal/qr"
	"github.com/yalansy1989/code128/internal/store"
)

type failingStore struct{ store.NopStore }

func (failingStore) RecordInvoice(context.Context, *model.IssuedInvoice) error {
	return errors.New("connection refused")
}

func newTestService(st store.Store, log *zap.Logger) Service {
	return NewService(qr.NewService(zap.NewNop(), 64, 1024), st, log)
}

func TestServicePayloadRecordsInvoice(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(mem, zap.NewNop())

	payload, err := svc.Payload(context.Background(), acme())
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if payload != acmePayload {
		t.Fatalf("payload %s", payload)
	}

	recs, err := mem.InvoicesSince(context.Background(), time.Time{}, 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected one record, got %d (%v)", len(recs), err)
	}
	r := recs[0]
	if r.Seller != "ACME" || r.Total != "115.00" || r.VATAmount != "15.00" || r.Payload != acmePayload {
		t.Fatalf("unexpected record %+v", r)
	}
	if !r.InvoiceTime.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("invoice time %v", r.InvoiceTime)
	}
}

func TestServiceRejectsInvalidInvoice(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(mem, zap.NewNop())
	inv := acme()
	inv.VATNumber = "123"

	if _, err := svc.Payload(context.Background(), inv); !errors.Is(err, ErrInvalidInvoice) {
		t.Fatalf("got %v", err)
	}
	if _, err := svc.QR(context.Background(), inv, 256); !errors.Is(err, ErrInvalidInvoice) {
		t.Fatalf("got %v", err)
	}
	if recs, _ := mem.InvoicesSince(context.Background(), time.Time{}, 10); len(recs) != 0 {
		t.Fatalf("rejected invoices must not be recorded: %+v", recs)
	}
}

func TestServiceQR(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), zap.NewNop())
	res, err := svc.QR(context.Background(), acme(), 300)
	if err != nil {
		t.Fatalf("QR: %v", err)
	}
	if res.Payload != acmePayload {
		t.Fatalf("payload %s", res.Payload)
	}
	img, err := png.Decode(bytes.NewReader(res.PNG))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if img.Bounds().Dx() != 300 {
		t.Fatalf("width %d", img.Bounds().Dx())
	}

	if _, err := svc.QR(context.Background(), acme(), 10); !errors.Is(err, qr.ErrInvalidSize) {
		t.Fatalf("got %v, want ErrInvalidSize", err)
	}
}

func TestServiceStoreFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := newTestService(failingStore{}, zap.New(core))

	if _, err := svc.Payload(context.Background(), acme()); err != nil {
		t.Fatalf("store failure must not fail the request: %v", err)
	}
	if logs.FilterMessage("Failed to record issued invoice").Len() != 1 {
		t.Fatalf("expected a logged store failure, got %v", logs.All())
	}
}

func TestServiceInspect(t *testing.T) {
	svc := newTestService(nil, zap.NewNop())

	r, err := svc.Inspect(" " + acmePayload + "\n")
	if err != nil || !r.Valid {
		t.Fatalf("Inspect: %+v, %v", r, err)
	}

	// last field cut short: everything before it still decodes
	r, err = svc.Inspect("AQRBQ01FAg8xMjM0NTY3ODkwMTIzNDUDFDIwMjQtMDEtMDFUMDA6MDA6MDBaBAYxMTUuMDAFBTE1")
	if err != nil {
		t.Fatalf("truncated payload must not error: %v", err)
	}
	if r.Valid || r.Checks[4].Reason != "missing" || !r.Checks[3].Valid {
		t.Fatalf("unexpected report %+v", r)
	}

	if _, err := svc.Inspect("not base64!"); err == nil {
		t.Fatal("expected base64 error")
	}
}
