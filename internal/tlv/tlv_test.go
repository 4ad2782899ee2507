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

package tlv

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleFields() []Field {
	return []Field{
		{TagSeller, "ACME"},
		{TagVATNumber, "123456789012345"},
		{TagTimestamp, "2024-01-01T00:00:00Z"},
		{TagTotal, "115.00"},
		{TagVATAmount, "15.00"},
	}
}

func TestEncodeLayout(t *testing.T) {
	got, err := Encode([]Field{{TagSeller, "AB"}, {TagTotal, "1.00"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{1, 2, 'A', 'B', 4, 4, '1', '.', '0', '0'}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("encoded bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeCountsUTF8Bytes(t *testing.T) {
	got, err := Encode([]Field{{TagSeller, "شركة"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got[1] != 8 {
		t.Fatalf("length byte = %d, want 8 (four two-byte runes)", got[1])
	}
}

func TestEncodeBase64RoundTrip(t *testing.T) {
	payload, err := EncodeBase64(sampleFields())
	if err != nil {
		t.Fatalf("EncodeBase64: %v", err)
	}
	if strings.ContainsAny(payload, "\r\n") {
		t.Fatalf("payload must not contain line breaks: %q", payload)
	}

	got, err := DecodeBase64(payload)
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	want := map[Tag]string{
		TagSeller:    "ACME",
		TagVATNumber: "123456789012345",
		TagTimestamp: "2024-01-01T00:00:00Z",
		TagTotal:     "115.00",
		TagVATAmount: "15.00",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded fields mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeLengthGuard(t *testing.T) {
	if _, err := Encode([]Field{{TagSeller, strings.Repeat("x", 255)}}); err != nil {
		t.Fatalf("255 bytes should encode: %v", err)
	}

	_, err := Encode([]Field{{TagSeller, strings.Repeat("x", 256)}})
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("256 bytes: got %v, want ErrFieldTooLong", err)
	}

	// 128 two-byte runes is 256 bytes even though it is only 128 characters.
	_, err = Encode([]Field{{TagSeller, strings.Repeat("ع", 128)}})
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("multi-byte overflow: got %v, want ErrFieldTooLong", err)
	}
}

func TestEncodeRejectsBadTags(t *testing.T) {
	for _, tag := range []Tag{0, 256, -1} {
		if _, err := Encode([]Field{{tag, "x"}}); !errors.Is(err, ErrInvalidTag) {
			t.Errorf("tag %d: got %v, want ErrInvalidTag", tag, err)
		}
	}
}

func TestDecodeStopsOnTruncation(t *testing.T) {
	raw, err := Encode(sampleFields())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name string
		buf  []byte
		want map[Tag]string
	}{
		{"empty", nil, map[Tag]string{}},
		{"lone tag byte", []byte{1}, map[Tag]string{}},
		{"header only", []byte{1, 4}, map[Tag]string{}},
		{"value cut short", raw[:2+4+2+5], map[Tag]string{TagSeller: "ACME"}},
		{"trailing tag byte", append(append([]byte{}, raw[:6]...), 9), map[Tag]string{TagSeller: "ACME"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Decode(tc.buf)); diff != "" {
				t.Fatalf("decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeReplacesInvalidUTF8(t *testing.T) {
	got := Decode([]byte{1, 3, 'A', 0xff, 'B'})
	if got[TagSeller] != "A\uFFFDB" {
		t.Fatalf("got %q, want replacement character", got[TagSeller])
	}
}

func TestDecodeKeepsLastDuplicate(t *testing.T) {
	got := Decode([]byte{1, 1, 'a', 1, 1, 'b'})
	if got[TagSeller] != "b" {
		t.Fatalf("got %q, want last value", got[TagSeller])
	}
}

func TestDecodeBase64RejectsGarbage(t *testing.T) {
	if _, err := DecodeBase64("not base64!!"); !errors.Is(err, ErrInvalidBase64) {
		t.Fatal("expected error for malformed base64")
	}
	// whitespace from copy/paste is tolerated
	payload := "  " + base64.StdEncoding.EncodeToString([]byte{1, 1, 'x'}) + "\n"
	got, err := DecodeBase64(payload)
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	if got[TagSeller] != "x" {
		t.Fatalf("got %q", got[TagSeller])
	}
}

func TestTagString(t *testing.T) {
	if TagVATNumber.String() != "vat_number" {
		t.Errorf("got %q", TagVATNumber.String())
	}
	if Tag(9).String() != "tag_9" {
		t.Errorf("got %q", Tag(9).String())
	}
}
