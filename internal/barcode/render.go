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

// Package barcode renders Code-128 symbols at an exact physical size.
//
// The bar pattern comes from boombuler/barcode; this package owns the
// conversion from modules to millimeters to pixels and the module width
// search (Fit) that makes a render match a target print width.
package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/boombuler/barcode/code128"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// MaxCanvasPixels bounds the area of a single render.
const MaxCanvasPixels = 40_000_000

// ErrCanvasTooLarge is returned when a render would exceed MaxCanvasPixels.
var ErrCanvasTooLarge = errors.New("canvas too large")

// Params describes the physical geometry of a render.
type Params struct {
	ModuleWidthMM  float64
	ModuleHeightMM float64
	QuietZoneMM    float64 // per side, left and right
	WriteText      bool
}

// textPointSize is the size of the human readable line under the bars.
const textPointSize = 8

// Pattern returns the Code-128 module sequence for symbol, true for a bar.
// Quiet zones are not included.
func Pattern(symbol string) ([]bool, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	bc, err := code128.Encode(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to encode code128: %w", err)
	}

	n := bc.Bounds().Dx()
	modules := make([]bool, n)
	for x := 0; x < n; x++ {
		g := color.GrayModel.Convert(bc.At(x, 0)).(color.Gray)
		modules[x] = g.Y < 128
	}
	return modules, nil
}

// TextBandPixels is the height Render adds below the bars for the human
// readable line.
func TextBandPixels(dpi int) int {
	return int(math.Ceil(1.5 * textPointSize * float64(dpi) / 72))
}

// Renderer rasterizes Code-128 symbols at a fixed DPI.
// Bar edges are snapped to the nearest pixel of their physical position, so
// the image width is always round(width_mm * dpi / 25.4).
type Renderer struct {
	dpi int
}

// NewRenderer creates a renderer for the given print resolution.
func NewRenderer(dpi int) (*Renderer, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("invalid dpi %d: must be > 0", dpi)
	}
	return &Renderer{dpi: dpi}, nil
}

// DPI returns the print resolution of the renderer.
func (r *Renderer) DPI() int { return r.dpi }

// Width is the renderer's SizingFunc: the measured width in millimeters of
// the image Render would produce, quiet zones included.
func (r *Renderer) Width(symbol string, moduleWidthMM, quietZoneMM float64) (float64, error) {
	modules, err := Pattern(symbol)
	if err != nil {
		return 0, err
	}
	return PixelsToMM(r.widthPixels(len(modules), moduleWidthMM, quietZoneMM), r.dpi), nil
}

func (r *Renderer) widthPixels(modules int, moduleWidthMM, quietZoneMM float64) int {
	return MMToPixels(float64(modules)*moduleWidthMM+2*quietZoneMM, r.dpi)
}

// checkCanvas rejects geometry whose canvas would exceed MaxCanvasPixels.
// The area is computed in floating point; int pixel math overflows on huge inputs.
func (r *Renderer) checkCanvas(modules int, p Params) error {
	scale := float64(r.dpi) / MMPerInch
	w := (float64(modules)*p.ModuleWidthMM + 2*p.QuietZoneMM) * scale
	h := p.ModuleHeightMM * scale
	if p.WriteText {
		h += float64(TextBandPixels(r.dpi))
	}
	if !(w*h <= MaxCanvasPixels) {
		return fmt.Errorf("%w: %.0fx%.0f px exceeds %d", ErrCanvasTooLarge, w, h, MaxCanvasPixels)
	}
	return nil
}

// Render draws symbol as a white canvas with black bars.
func (r *Renderer) Render(symbol string, p Params) (image.Image, error) {
	if !(p.ModuleWidthMM > 0) || !(p.ModuleHeightMM > 0) || !(p.QuietZoneMM >= 0) {
		return nil, fmt.Errorf("invalid render params: module %vx%v mm, quiet zone %v mm",
			p.ModuleWidthMM, p.ModuleHeightMM, p.QuietZoneMM)
	}
	modules, err := Pattern(symbol)
	if err != nil {
		return nil, err
	}
	if err := r.checkCanvas(len(modules), p); err != nil {
		return nil, err
	}

	width := r.widthPixels(len(modules), p.ModuleWidthMM, p.QuietZoneMM)
	barHeight := max(1, MMToPixels(p.ModuleHeightMM, r.dpi))
	height := barHeight

	var face font.Face
	if p.WriteText {
		face, err = textFace(r.dpi)
		if err != nil {
			return nil, err
		}
		height += TextBandPixels(r.dpi)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	edge := func(module int) float64 {
		return float64(MMToPixels(p.QuietZoneMM+float64(module)*p.ModuleWidthMM, r.dpi))
	}
	for i := 0; i < len(modules); {
		if !modules[i] {
			i++
			continue
		}
		j := i
		for j < len(modules) && modules[j] {
			j++
		}
		x0, x1 := edge(i), edge(j)
		if x1 > x0 {
			dc.DrawRectangle(x0, 0, x1-x0, float64(barHeight))
		}
		i = j
	}
	dc.Fill()

	if face != nil {
		dc.SetFontFace(face)
		dc.DrawStringAnchored(symbol, float64(width)/2, float64(barHeight+(height-barHeight)/2), 0.5, 0.5)
	}
	return dc.Image(), nil
}

var (
	fontOnce sync.Once
	fontErr  error
	goFont   *opentype.Font
)

func textFace(dpi int) (font.Face, error) {
	fontOnce.Do(func() {
		goFont, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("failed to parse font: %w", fontErr)
	}
	face, err := opentype.NewFace(goFont, &opentype.FaceOptions{
		Size:    textPointSize,
		DPI:     float64(dpi),
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
