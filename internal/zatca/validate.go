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
	"fmt"
	"regexp"
	"strings"

	"github.com/yalansy1989/code128/internal/money"
	"github.com/yalansy1989/code128/internal/textnorm"
	"github.com/yalansy1989/code128/internal/tlv"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// requiredTags lists the phase-one tags in payload order.
var requiredTags = []tlv.Tag{
	tlv.TagSeller,
	tlv.TagVATNumber,
	tlv.TagTimestamp,
	tlv.TagTotal,
	tlv.TagVATAmount,
}

// Check is the verdict for a single payload field.
type Check struct {
	Tag     tlv.Tag `json:"tag"`
	Field   string  `json:"field"`
	Value   string  `json:"value"`
	Display string  `json:"display"`
	Valid   bool    `json:"valid"`
	Reason  string  `json:"reason,omitempty"`
}

// Report is the per-field breakdown of a decoded payload.
type Report struct {
	Valid  bool    `json:"valid"`
	Checks []Check `json:"checks"`
}

// Validate checks every phase-one field of a decoded payload. A partially
// valid payload is reported field by field; Valid is set only when all pass.
func Validate(fields map[tlv.Tag]string) Report {
	report := Report{Valid: true, Checks: make([]Check, 0, len(requiredTags))}
	for _, tag := range requiredTags {
		value, ok := fields[tag]
		c := Check{Tag: tag, Field: tag.String(), Value: value, Display: value}
		if !ok {
			c.Reason = "missing"
		} else {
			c.Display, c.Reason = checkField(tag, value)
			c.Valid = c.Reason == ""
		}
		if !c.Valid {
			report.Valid = false
		}
		report.Checks = append(report.Checks, c)
	}
	return report
}

// checkField returns the display form of value and, when it is invalid, why.
func checkField(tag tlv.Tag, value string) (string, string) {
	switch tag {
	case tlv.TagSeller:
		if strings.TrimSpace(value) == "" {
			return value, "empty"
		}
	case tlv.TagVATNumber:
		digits := textnorm.DigitsOnly(value)
		if len(digits) != VATNumberDigits {
			return value, fmt.Sprintf("expected %d digits, found %d", VATNumberDigits, len(digits))
		}
		return digits, ""
	case tlv.TagTimestamp:
		if !timestampPattern.MatchString(value) {
			return value, "expected YYYY-MM-DDTHH:MM:SSZ"
		}
	case tlv.TagTotal, tlv.TagVATAmount:
		formatted, err := money.FormatString(value)
		if err != nil {
			return value, "not a decimal number"
		}
		return formatted, ""
	}
	return value, ""
}
