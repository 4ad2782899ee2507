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

// Package http exposes the label and ZATCA services over HTTP.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yalansy1989/code128/internal/barcode"
	"github.com/yalansy1989/code128/internal/label"
	"github.com/yalansy1989/code128/internal/money"
	"github.com/yalansy1989/code128/internal/qr"
	"github.com/yalansy1989/code128/internal/tlv"
	"github.com/yalansy1989/code128/internal/zatca"
)

// errBadRequest marks request bodies and parameters that could not be parsed.
var errBadRequest = errors.New("bad request")

// LabelService renders barcode labels.
type LabelService interface {
	Generate(ctx context.Context, req label.Request) (*label.Result, error)
}

// Options carries the request limits and defaults of the handler.
type Options struct {
	MaxBodySize int64
	MinSize     int
	MaxSize     int
	DefaultSize int
	VATRate     decimal.Decimal
}

type Handler struct {
	labels LabelService
	zatca  zatca.Service
	qr     qr.Service
	logger *zap.Logger
	opts   Options
}

// NewHandler creates the HTTP handler set.
func NewHandler(labels LabelService, zatcaSvc zatca.Service, qrSvc qr.Service, logger *zap.Logger, opts Options) *Handler {
	return &Handler{
		labels: labels,
		zatca:  zatcaSvc,
		qr:     qrSvc,
		logger: logger,
		opts:   opts,
	}
}

// Routes registers every endpoint with its method restriction and request logging.
func (h *Handler) Routes() http.Handler {
	post := func(fn http.HandlerFunc) http.Handler {
		return RequestLoggingMiddleware(h.logger)(MethodMiddleware(http.MethodPost)(fn))
	}

	mux := http.NewServeMux()
	mux.Handle("/barcode", post(h.Barcode))
	mux.Handle("/zatca/payload", post(h.ZatcaPayload))
	mux.Handle("/zatca/qr", post(h.ZatcaQR))
	mux.Handle("/zatca/inspect", post(h.ZatcaInspect))
	mux.Handle("/vat", post(h.VAT))
	mux.Handle("/generate", post(h.Generate))
	mux.Handle("/health", RequestLoggingMiddleware(h.logger)(MethodMiddleware(http.MethodGet, http.MethodHead)(http.HandlerFunc(h.HealthCheck))))
	return mux
}

// barcodeRequest is the JSON body of POST /barcode. Sizes may be given in
// millimeters or inches; millimeters win when both are set.
type barcodeRequest struct {
	Data        string   `json:"data"`
	WidthMM     float64  `json:"width_mm"`
	HeightMM    float64  `json:"height_mm"`
	WidthIn     float64  `json:"width_in"`
	HeightIn    float64  `json:"height_in"`
	DPI         int      `json:"dpi"`
	QuietZoneMM *float64 `json:"quiet_zone_mm"`
	Mode        string   `json:"mode"`
	WriteText   bool     `json:"write_text"`
}

func (b barcodeRequest) toLabel() label.Request {
	req := label.Request{
		Data:        b.Data,
		WidthMM:     b.WidthMM,
		HeightMM:    b.HeightMM,
		DPI:         b.DPI,
		QuietZoneMM: b.QuietZoneMM,
		Mode:        label.Mode(b.Mode),
		WriteText:   b.WriteText,
	}
	if req.WidthMM == 0 && b.WidthIn != 0 {
		req.WidthMM = barcode.InchesToMM(b.WidthIn)
	}
	if req.HeightMM == 0 && b.HeightIn != 0 {
		req.HeightMM = barcode.InchesToMM(b.HeightIn)
	}
	return req
}

// Barcode handles POST /barcode and returns the label as a PNG.
func (h *Handler) Barcode(w http.ResponseWriter, r *http.Request) {
	var body barcodeRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	res, err := h.labels.Generate(r.Context(), body.toLabel())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("X-Symbol", res.Symbol)
	w.Header().Set("X-Mode", string(res.Mode))
	w.Header().Set("X-Module-Width-Mm", formatFloat(res.ModuleWidthMM))
	w.Header().Set("X-Width-Mm", formatFloat(res.WidthMM))
	w.Header().Set("X-Fit-Error-Mm", formatFloat(res.ErrorMM))
	if res.Fit != nil {
		w.Header().Set("X-Fit-Converged", strconv.FormatBool(res.Fit.Converged))
		w.Header().Set("X-Fit-Iterations", strconv.Itoa(res.Fit.Iterations))
	}
	w.Header().Set("Content-Disposition", `inline; filename="code128.png"`)
	h.writePNG(w, r, res.PNG)
}

// payloadResponse is the body of POST /zatca/payload.
type payloadResponse struct {
	Payload string            `json:"payload"`
	Fields  map[string]string `json:"fields"`
}

// ZatcaPayload handles POST /zatca/payload and returns the Base64 TLV payload.
func (h *Handler) ZatcaPayload(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.readInvoice(w, r)
	if !ok {
		return
	}

	payload, err := h.zatca.Payload(r.Context(), inv)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fields := make(map[string]string, 5)
	for _, f := range inv.Fields() {
		fields[f.Tag.String()] = f.Value
	}
	h.writeJSON(w, r, http.StatusOK, payloadResponse{Payload: payload, Fields: fields})
}

// ZatcaQR handles POST /zatca/qr?size={pixels} and returns the invoice QR code.
func (h *Handler) ZatcaQR(w http.ResponseWriter, r *http.Request) {
	size, err := h.sizeParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	inv, ok := h.readInvoice(w, r)
	if !ok {
		return
	}

	res, err := h.zatca.QR(r.Context(), inv, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("X-Zatca-Payload", res.Payload)
	h.writePNG(w, r, res.PNG)
}

type inspectRequest struct {
	Payload string `json:"payload"`
}

// ZatcaInspect handles POST /zatca/inspect and reports which payload fields are valid.
func (h *Handler) ZatcaInspect(w http.ResponseWriter, r *http.Request) {
	var body inspectRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	report, err := h.zatca.Inspect(body.Payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, report)
}

type vatRequest struct {
	Amount    string `json:"amount"`
	Rate      string `json:"rate"`
	Inclusive bool   `json:"inclusive"`
}

type vatResponse struct {
	Rate      string `json:"rate"`
	Net       string `json:"net"`
	VAT       string `json:"vat"`
	Gross     string `json:"gross"`
	Inclusive bool   `json:"inclusive"`
}

// VAT handles POST /vat and splits an amount into net and tax.
func (h *Handler) VAT(w http.ResponseWriter, r *http.Request) {
	var body vatRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	amount, err := money.Parse(body.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rate := h.opts.VATRate
	if body.Rate != "" {
		if rate, err = money.ParseRate(body.Rate); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	parts := money.Breakdown(amount, rate, body.Inclusive).Strings()
	h.writeJSON(w, r, http.StatusOK, vatResponse{
		Rate:      parts["rate"],
		Net:       parts["net"],
		VAT:       parts["vat"],
		Gross:     parts["gross"],
		Inclusive: body.Inclusive,
	})
}

// Generate handles POST /generate?size={pixels}: the raw body is encoded
// into a QR code PNG.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	size, err := h.sizeParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if len(body) == 0 {
		h.logger.Warn("Empty request body received", zap.String("remote_addr", r.RemoteAddr))
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Request body is empty"})
		return
	}

	png, err := h.qr.Generate(body, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePNG(w, r, png)
}

// HealthCheck handles GET /health requests for liveness/readiness probes.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readInvoice(w http.ResponseWriter, r *http.Request) (zatca.Invoice, bool) {
	var form zatca.Form
	if !h.decodeJSON(w, r, &form) {
		return zatca.Invoice{}, false
	}
	inv, err := zatca.ParseForm(form, h.opts.VATRate)
	if err != nil {
		h.writeError(w, r, err)
		return zatca.Invoice{}, false
	}
	return inv, true
}

// sizeParam reads the optional ?size= query parameter.
func (h *Handler) sizeParam(r *http.Request) (int, error) {
	sizeStr := r.URL.Query().Get("size")
	if sizeStr == "" {
		return h.opts.DefaultSize, nil
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < h.opts.MinSize || size > h.opts.MaxSize {
		return 0, fmt.Errorf("%w: size must be between %d and %d", errBadRequest, h.opts.MinSize, h.opts.MaxSize)
	}
	return size, nil
}

// readBody reads at most MaxBodySize bytes. It writes the error response
// itself and reports whether the caller may continue.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.ContentLength > h.opts.MaxBodySize {
		h.logger.Warn("Request body too large (ContentLength check)",
			zap.Int64("content_length", r.ContentLength),
			zap.Int64("max_allowed", h.opts.MaxBodySize),
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodySize)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r.Body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn("Request body too large",
				zap.Int64("max_allowed", h.opts.MaxBodySize),
				zap.String("remote_addr", r.RemoteAddr),
			)
			h.writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return nil, false
		}
		h.logger.Error("Failed to read request body", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Failed to read request body"})
		return nil, false
	}
	return buf.Bytes(), true
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err))
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

// isClientError reports whether err was caused by the request rather than the service.
func isClientError(err error) bool {
	for _, target := range []error{
		errBadRequest,
		label.ErrInvalidRequest,
		barcode.ErrEmptySymbol,
		barcode.ErrInvalidFit,
		barcode.ErrCanvasTooLarge,
		zatca.ErrInvalidInvoice,
		money.ErrInvalidAmount,
		money.ErrInvalidRate,
		tlv.ErrFieldTooLong,
		tlv.ErrInvalidTag,
		tlv.ErrInvalidBase64,
		qr.ErrEmptyData,
		qr.ErrInvalidSize,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if isClientError(err) {
		h.logger.Warn("Rejected request",
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.logger.Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
		zap.String("remote_addr", r.RemoteAddr),
	)
	h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
	}
}

func (h *Handler) writePNG(w http.ResponseWriter, r *http.Request, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.Error("Failed to write response",
			zap.Error(err),
			zap.Int("png_size", len(png)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
