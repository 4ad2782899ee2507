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

// Package label produces print-ready Code-128 shelf labels of an exact
// physical size.
package label

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/yalansy1989/code128/internal/barcode"
	"github.com/yalansy1989/code128/internal/model"
	"github.com/yalansy1989/code128/internal/store"
)

// Mode selects how the bar pattern is brought to the target size.
type Mode string

const (
	// ModeFit searches the module width so the bars span the target width.
	ModeFit Mode = "fit"
	// ModePad renders at the natural module width and centres the result on
	// a white canvas of the target size.
	ModePad Mode = "pad"
	// ModeScale renders at the natural module width and resamples to the
	// target size with nearest-neighbour scaling.
	ModeScale Mode = "scale"
)

const (
	// MaxDPI bounds the print resolution a request may ask for.
	MaxDPI = 2400
	// MaxSymbolLen bounds the sanitized symbol length.
	MaxSymbolLen = 128
)

// ErrInvalidRequest is returned for label requests that cannot be rendered as asked.
var ErrInvalidRequest = errors.New("invalid label request")

// Defaults are applied to zero-valued request fields.
type Defaults struct {
	WidthMM         float64
	HeightMM        float64
	DPI             int
	QuietZoneMM     float64
	NaturalModuleMM float64
	Mode            Mode
	Fit             barcode.FitOptions
}

// JarirDefaults is the 1.86 x 0.28 in shelf label printed at 600 DPI.
func JarirDefaults() Defaults {
	return Defaults{
		WidthMM:         barcode.InchesToMM(1.86),
		HeightMM:        barcode.InchesToMM(0.28),
		DPI:             600,
		QuietZoneMM:     2,
		NaturalModuleMM: 0.2,
		Mode:            ModeFit,
		Fit: barcode.FitOptions{
			MinModuleMM:   barcode.DefaultMinModuleMM,
			MaxModuleMM:   barcode.DefaultMaxModuleMM,
			ToleranceMM:   barcode.DefaultToleranceMM,
			EpsilonMM:     barcode.DefaultEpsilonMM,
			MaxIterations: barcode.DefaultMaxIterations,
		},
	}
}

// Request describes one label. Zero values take the service defaults.
type Request struct {
	Data        string
	WidthMM     float64
	HeightMM    float64
	DPI         int
	QuietZoneMM *float64
	Mode        Mode
	WriteText   bool
}

// Result is a rendered label.
type Result struct {
	PNG           []byte
	Symbol        string
	Mode          Mode
	DPI           int
	WidthPx       int
	HeightPx      int
	WidthMM       float64
	ModuleWidthMM float64
	ErrorMM       float64
	// Fit is set in fit mode only.
	Fit *barcode.FitResult
}

type Service struct {
	defaults Defaults
	store    store.Store
	logger   *zap.Logger
}

// NewService creates a label service. Rendered labels are recorded in st.
func NewService(defaults Defaults, st store.Store, logger *zap.Logger) *Service {
	if st == nil {
		st = store.NopStore{}
	}
	return &Service{defaults: defaults, store: st, logger: logger}
}

// Defaults returns the values applied to zero-valued request fields.
func (s *Service) Defaults() Defaults { return s.defaults }

type plan struct {
	symbol      string
	mode        Mode
	dpi         int
	widthMM     float64
	heightMM    float64
	barHeightMM float64
	quietZoneMM float64
	writeText   bool
}

func (s *Service) resolve(req Request) (plan, error) {
	symbol, err := barcode.PrepareSymbol(req.Data)
	if err != nil {
		return plan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(symbol) > MaxSymbolLen {
		return plan{}, fmt.Errorf("%w: symbol is %d characters, max %d", ErrInvalidRequest, len(symbol), MaxSymbolLen)
	}

	p := plan{
		symbol:      symbol,
		mode:        Mode(strings.ToLower(strings.TrimSpace(string(req.Mode)))),
		dpi:         req.DPI,
		widthMM:     req.WidthMM,
		heightMM:    req.HeightMM,
		quietZoneMM: s.defaults.QuietZoneMM,
		writeText:   req.WriteText,
	}
	if p.mode == "" {
		p.mode = s.defaults.Mode
	}
	if p.dpi == 0 {
		p.dpi = s.defaults.DPI
	}
	if p.widthMM == 0 {
		p.widthMM = s.defaults.WidthMM
	}
	if p.heightMM == 0 {
		p.heightMM = s.defaults.HeightMM
	}
	if req.QuietZoneMM != nil {
		p.quietZoneMM = *req.QuietZoneMM
	}

	switch p.mode {
	case ModeFit, ModePad, ModeScale:
	default:
		return plan{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	if p.dpi <= 0 || p.dpi > MaxDPI {
		return plan{}, fmt.Errorf("%w: dpi %d out of range 1..%d", ErrInvalidRequest, p.dpi, MaxDPI)
	}
	if !(p.widthMM > 0) || !(p.heightMM > 0) || math.IsInf(p.widthMM, 0) || math.IsInf(p.heightMM, 0) {
		return plan{}, fmt.Errorf("%w: size must be positive, got %vx%v mm", ErrInvalidRequest, p.widthMM, p.heightMM)
	}
	if !(p.quietZoneMM >= 0) {
		return plan{}, fmt.Errorf("%w: quiet zone must not be negative", ErrInvalidRequest)
	}
	if p.quietZoneMM > p.widthMM/2 {
		return plan{}, fmt.Errorf("%w: quiet zone %v mm exceeds half the label width", ErrInvalidRequest, p.quietZoneMM)
	}

	scale := float64(p.dpi) / barcode.MMPerInch
	if area := p.widthMM * scale * p.heightMM * scale; !(area <= barcode.MaxCanvasPixels) {
		return plan{}, fmt.Errorf("%w: %.0fx%.0f px canvas", ErrInvalidRequest, p.widthMM*scale, p.heightMM*scale)
	}
	if w, h := barcode.MMToPixels(p.widthMM, p.dpi), barcode.MMToPixels(p.heightMM, p.dpi); w <= 0 || h <= 0 {
		return plan{}, fmt.Errorf("%w: %dx%d px canvas", ErrInvalidRequest, w, h)
	}

	p.barHeightMM = p.heightMM
	if p.writeText {
		p.barHeightMM -= barcode.PixelsToMM(barcode.TextBandPixels(p.dpi), p.dpi)
		if p.barHeightMM <= 0 {
			return plan{}, fmt.Errorf("%w: label too short for a text line", ErrInvalidRequest)
		}
	}
	return p, nil
}

// Generate renders a label according to req and records it in the issuance log.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	p, err := s.resolve(req)
	if err != nil {
		s.logger.Warn("Rejected label request", zap.Error(err))
		return nil, err
	}

	renderer, err := barcode.NewRenderer(p.dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.logger.Debug("Generating label",
		zap.String("symbol", p.symbol),
		zap.String("mode", string(p.mode)),
		zap.Int("dpi", p.dpi),
		zap.Float64("width_mm", p.widthMM),
		zap.Float64("height_mm", p.heightMM),
	)

	res := &Result{Symbol: p.symbol, Mode: p.mode, DPI: p.dpi, ModuleWidthMM: s.defaults.NaturalModuleMM}
	if p.mode == ModeFit {
		opts := s.defaults.Fit
		opts.TargetWidthMM = p.widthMM
		opts.QuietZoneMM = p.quietZoneMM
		fit, err := barcode.Fit(p.symbol, renderer.Width, opts)
		if err != nil {
			if errors.Is(err, barcode.ErrInvalidFit) {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			return nil, fmt.Errorf("failed to fit module width: %w", err)
		}
		if !fit.Converged {
			s.logger.Warn("Module width search did not converge",
				zap.String("symbol", p.symbol),
				zap.Float64("target_mm", p.widthMM),
				zap.Float64("error_mm", fit.ErrorMM),
				zap.Int("iterations", fit.Iterations),
			)
		}
		res.Fit = &fit
		res.ModuleWidthMM = fit.ModuleWidthMM
	}

	img, err := renderer.Render(p.symbol, barcode.Params{
		ModuleWidthMM:  res.ModuleWidthMM,
		ModuleHeightMM: p.barHeightMM,
		QuietZoneMM:    p.quietZoneMM,
		WriteText:      p.writeText,
	})
	if err != nil {
		if errors.Is(err, barcode.ErrCanvasTooLarge) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("failed to render barcode: %w", err)
	}

	targetW, targetH := barcode.MMToPixels(p.widthMM, p.dpi), barcode.MMToPixels(p.heightMM, p.dpi)
	switch p.mode {
	case ModePad:
		img = pad(img, targetW, targetH)
	case ModeScale:
		img = scale(img, targetW, targetH)
	}

	res.PNG, err = barcode.EncodePNG(img, p.dpi)
	if err != nil {
		return nil, err
	}
	res.WidthPx, res.HeightPx = img.Bounds().Dx(), img.Bounds().Dy()
	res.WidthMM = barcode.PixelsToMM(res.WidthPx, p.dpi)
	res.ErrorMM = math.Abs(res.WidthMM - p.widthMM)

	s.record(ctx, p, res)
	return res, nil
}

// pad centres src on a white w x h canvas without resampling. A source
// larger than the canvas is cropped evenly on both sides.
func pad(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	sb := src.Bounds()
	off := image.Pt((w-sb.Dx())/2, (h-sb.Dy())/2)
	draw.Copy(dst, off, src, sb, draw.Src, nil)
	return dst
}

// scale resamples src to w x h. Nearest-neighbour keeps bar edges hard.
func scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func (s *Service) record(ctx context.Context, p plan, res *Result) {
	rec := &model.IssuedLabel{
		Symbol:          res.Symbol,
		Mode:            string(res.Mode),
		DPI:             res.DPI,
		TargetWidthMM:   p.widthMM,
		TargetHeightMM:  p.heightMM,
		ModuleWidthMM:   res.ModuleWidthMM,
		MeasuredWidthMM: res.WidthMM,
		ErrorMM:         res.ErrorMM,
		Converged:       res.ErrorMM <= s.tolerance(),
	}
	if res.Fit != nil {
		rec.Converged = res.Fit.Converged
	}
	if err := s.store.RecordLabel(ctx, rec); err != nil {
		s.logger.Error("Failed to record issued label", zap.Error(err), zap.String("symbol", res.Symbol))
		return
	}
	s.logger.Info("Label generated",
		zap.Int64("id", rec.ID),
		zap.String("symbol", res.Symbol),
		zap.String("mode", string(res.Mode)),
		zap.Int("width_px", res.WidthPx),
		zap.Int("height_px", res.HeightPx),
		zap.Float64("module_width_mm", res.ModuleWidthMM),
		zap.Float64("error_mm", res.ErrorMM),
	)
}

func (s *Service) tolerance() float64 {
	if s.defaults.Fit.ToleranceMM > 0 {
		return s.defaults.Fit.ToleranceMM
	}
	return barcode.DefaultToleranceMM
}
