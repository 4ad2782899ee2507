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

// Package tlv implements the tag-length-value encoding used by ZATCA e-invoice
// QR payloads.
//
// Wire layout:
//
//	field   := tag(1 byte) length(1 byte) value(length bytes, UTF-8)
//	payload := field*
//
// The payload is embedded in the QR code as standard Base64 with padding.
package tlv

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// MaxValueLen is the largest value a single field can carry; the length prefix is one byte.
const MaxValueLen = 255

// Tag identifies a field in the payload.
type Tag int

// ZATCA phase-one tags.
const (
	TagSeller    Tag = 1
	TagVATNumber Tag = 2
	TagTimestamp Tag = 3
	TagTotal     Tag = 4
	TagVATAmount Tag = 5
)

var tagNames = map[Tag]string{
	TagSeller:    "seller",
	TagVATNumber: "vat_number",
	TagTimestamp: "timestamp",
	TagTotal:     "total",
	TagVATAmount: "vat_amount",
}

// String returns the field name of well-known tags and "tag_N" otherwise.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag_%d", int(t))
}

var (
	// ErrFieldTooLong is returned when a value exceeds MaxValueLen bytes once UTF-8 encoded.
	ErrFieldTooLong = errors.New("field too long")
	// ErrInvalidTag is returned for tags that do not fit in one byte or are zero.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrInvalidBase64 is returned when a payload is not standard padded Base64.
	ErrInvalidBase64 = errors.New("invalid base64 payload")
)

// Field is a single tagged value.
type Field struct {
	Tag   Tag
	Value string
}

// Encode serializes fields in the order given. Values are never truncated:
// a value longer than MaxValueLen bytes fails the whole encode.
func Encode(fields []Field) ([]byte, error) {
	size := 0
	for _, f := range fields {
		if f.Tag < 1 || f.Tag > 255 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidTag, int(f.Tag))
		}
		if len(f.Value) > MaxValueLen {
			return nil, fmt.Errorf("%w: %s is %d bytes, max %d", ErrFieldTooLong, f.Tag, len(f.Value), MaxValueLen)
		}
		size += 2 + len(f.Value)
	}

	buf := make([]byte, 0, size)
	for _, f := range fields {
		buf = append(buf, byte(f.Tag), byte(len(f.Value)))
		buf = append(buf, f.Value...)
	}
	return buf, nil
}

// EncodeBase64 encodes fields and wraps the result in standard Base64.
func EncodeBase64(fields []Field) (string, error) {
	raw, err := Encode(fields)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode scans buf and returns every field that could be read completely.
// It stops at the first header or value that would run past the end of the
// buffer. Invalid UTF-8 inside a value is replaced with U+FFFD. When a tag
// repeats, the last occurrence wins.
func Decode(buf []byte) map[Tag]string {
	out := make(map[Tag]string)
	dec := unicode.UTF8.NewDecoder()

	i := 0
	for len(buf)-i >= 2 {
		tag := Tag(buf[i])
		n := int(buf[i+1])
		i += 2
		if i+n > len(buf) {
			break
		}
		value := buf[i : i+n]
		i += n

		text, err := dec.Bytes(value)
		if err != nil {
			text = bytes.ToValidUTF8(value, []byte("\uFFFD"))
		}
		out[tag] = string(text)
	}
	return out
}

// DecodeBase64 decodes a Base64 payload and then its TLV fields.
// Malformed Base64 is an error; a truncated TLV body is not.
func DecodeBase64(payload string) (map[Tag]string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBase64, err)
	}
	return Decode(raw), nil
}
