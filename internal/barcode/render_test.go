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

package barcode

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"
)

func isDark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}

func TestPatternShape(t *testing.T) {
	modules, err := Pattern(jarirSymbol)
	if err != nil {
		t.Fatalf("Pattern: %v", err)
	}
	// symbols are 11 modules each, the stop pattern is 13
	if len(modules)%11 != 2 {
		t.Fatalf("unexpected module count %d", len(modules))
	}
	if !modules[0] || !modules[len(modules)-1] {
		t.Fatal("pattern must start and end with a bar")
	}
}

func TestPatternRejectsEmpty(t *testing.T) {
	if _, err := Pattern(""); !errors.Is(err, ErrEmptySymbol) {
		t.Fatalf("got %v, want ErrEmptySymbol", err)
	}
}

func TestRenderGeometry(t *testing.T) {
	r, err := NewRenderer(600)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	p := Params{ModuleWidthMM: 0.3, ModuleHeightMM: InchesToMM(0.28), QuietZoneMM: 2}

	img, err := r.Render(jarirSymbol, p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	widthMM, err := r.Width(jarirSymbol, p.ModuleWidthMM, p.QuietZoneMM)
	if err != nil {
		t.Fatalf("Width: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != MMToPixels(widthMM, 600) {
		t.Fatalf("image width %d px, sizing reports %.4f mm (%d px)", b.Dx(), widthMM, MMToPixels(widthMM, 600))
	}
	if b.Dy() != MMToPixels(InchesToMM(0.28), 600) {
		t.Fatalf("image height %d px", b.Dy())
	}

	quiet := MMToPixels(2, 600)
	mid := b.Dy() / 2
	if isDark(img.At(quiet/2, mid)) || isDark(img.At(b.Dx()-quiet/2, mid)) {
		t.Fatal("quiet zones must be white")
	}
	// first module is a bar; sample the middle of it
	modulePx := MMToPixels(0.3, 600)
	if !isDark(img.At(quiet+modulePx/2, mid)) {
		t.Fatal("expected the start bar after the left quiet zone")
	}
}

func TestRenderWithTextIsTaller(t *testing.T) {
	r, _ := NewRenderer(300)
	p := Params{ModuleWidthMM: 0.25, ModuleHeightMM: 7, QuietZoneMM: 1}
	plain, err := r.Render("ABC-123", p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	p.WriteText = true
	text, err := r.Render("ABC-123", p)
	if err != nil {
		t.Fatalf("Render with text: %v", err)
	}
	if text.Bounds().Dx() != plain.Bounds().Dx() {
		t.Fatal("text must not change the width")
	}
	if text.Bounds().Dy() <= plain.Bounds().Dy() {
		t.Fatal("text line must add height")
	}
}

func TestRenderRejectsBadParams(t *testing.T) {
	r, _ := NewRenderer(300)
	for _, p := range []Params{
		{ModuleWidthMM: 0, ModuleHeightMM: 5},
		{ModuleWidthMM: 0.2, ModuleHeightMM: 0},
		{ModuleWidthMM: 0.2, ModuleHeightMM: 5, QuietZoneMM: -1},
		{ModuleWidthMM: 0.2, ModuleHeightMM: 5, QuietZoneMM: math.NaN()},
	} {
		if _, err := r.Render("A", p); err == nil {
			t.Errorf("%+v: expected error", p)
		}
	}
	if _, err := NewRenderer(0); err == nil {
		t.Error("dpi 0 must be rejected")
	}
}

func TestRenderRejectsOversizedCanvas(t *testing.T) {
	r, _ := NewRenderer(600)
	tests := []struct {
		name   string
		symbol string
		p      Params
	}{
		{"huge quiet zone", "12345", Params{ModuleWidthMM: 0.2, ModuleHeightMM: 5, QuietZoneMM: 1e300}},
		{"wide quiet zone", "12345", Params{ModuleWidthMM: 0.2, ModuleHeightMM: 5, QuietZoneMM: 20000}},
		{"infinite module", "12345", Params{ModuleWidthMM: math.Inf(1), ModuleHeightMM: 5}},
		{"long symbol", strings.Repeat("A", 4000), Params{ModuleWidthMM: 0.2, ModuleHeightMM: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Render(tt.symbol, tt.p); !errors.Is(err, ErrCanvasTooLarge) {
				t.Fatalf("got %v, want ErrCanvasTooLarge", err)
			}
		})
	}

	// just inside the bound
	if _, err := r.Render("12345", Params{ModuleWidthMM: 0.2, ModuleHeightMM: 5, QuietZoneMM: 100}); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestEncodePNGCarriesDPI(t *testing.T) {
	r, _ := NewRenderer(600)
	img, err := r.Render("12345", Params{ModuleWidthMM: 0.3, ModuleHeightMM: 5, QuietZoneMM: 2})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	data, err := EncodePNG(img, 600)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if got := DPIFromPNG(data); got != 600 {
		t.Fatalf("DPIFromPNG = %d, want 600", got)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode rejected the chunk: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed: %v vs %v", decoded.Bounds(), img.Bounds())
	}

	plain, err := EncodePNG(img, 0)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if DPIFromPNG(plain) != 0 {
		t.Fatal("no pHYs chunk expected when dpi is 0")
	}
}

func TestPrepareSymbol(t *testing.T) {
	got, err := PrepareSymbol("\u200f\u0667\u0662\u0666 ")
	if err != nil || got != "726" {
		t.Fatalf("PrepareSymbol = %q, %v", got, err)
	}
	if _, err := PrepareSymbol("\u200e\u0643"); !errors.Is(err, ErrEmptySymbol) {
		t.Fatalf("got %v, want ErrEmptySymbol", err)
	}
}
