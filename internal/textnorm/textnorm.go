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

// Package textnorm normalizes user input pasted from Arabic keyboards and
// right-to-left editors before it reaches the encoders.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// mapDigits rewrites Arabic-Indic (U+0660..U+0669) and Extended Arabic-Indic
// (U+06F0..U+06F9) digits to ASCII, and the Arabic decimal separator to '.'.
func mapDigits(r rune) rune {
	switch {
	case r >= '\u0660' && r <= '\u0669':
		return '0' + (r - '\u0660')
	case r >= '\u06f0' && r <= '\u06f9':
		return '0' + (r - '\u06f0')
	case r == '\u066b':
		return '.'
	}
	return r
}

// nonASCII matches every rune outside 7-bit ASCII, including the bidi and
// format controls (LRM, RLM, embeddings, isolates, BOM) that editors insert.
var nonASCII = runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })

// ASCIIDigits maps Arabic digit forms to ASCII and leaves everything else as is.
func ASCIIDigits(s string) string {
	out, _, err := transform.String(runes.Map(mapDigits), s)
	if err != nil {
		return s
	}
	return out
}

// ASCII maps Arabic digits to ASCII, drops every remaining non-ASCII rune and
// trims surrounding whitespace.
func ASCII(s string) string {
	t := transform.Chain(runes.Map(mapDigits), runes.Remove(nonASCII))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// DigitsOnly returns the ASCII digits of s after Arabic digit mapping.
func DigitsOnly(s string) string {
	s = ASCIIDigits(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
