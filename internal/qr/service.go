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

// Package qr renders QR codes as PNG images.
package qr

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

var (
	// ErrEmptyData is returned when there is nothing to encode.
	ErrEmptyData = errors.New("data cannot be empty")
	// ErrInvalidSize is returned when the requested edge length is out of range.
	ErrInvalidSize = errors.New("invalid size")
)

type Service interface {
	Generate(data []byte, size int) ([]byte, error)
}

type service struct {
	logger  *zap.Logger
	minSize int
	maxSize int
}

// NewService creates a QR service that accepts edge lengths in [minSize, maxSize] pixels.
func NewService(logger *zap.Logger, minSize, maxSize int) Service {
	return &service{
		logger:  logger,
		minSize: minSize,
		maxSize: maxSize,
	}
}

// Generate creates a square QR code PNG from data with Medium error recovery (15%).
func (s *service) Generate(data []byte, size int) ([]byte, error) {
	s.logger.Debug("Starting QR code generation",
		zap.Int("data_length", len(data)),
		zap.Int("size", size),
	)

	if len(data) == 0 {
		s.logger.Warn("QR code generation failed: empty data provided")
		return nil, ErrEmptyData
	}

	if size < s.minSize || size > s.maxSize {
		s.logger.Warn("QR code generation failed: invalid size",
			zap.Int("size", size),
			zap.Int("min", s.minSize),
			zap.Int("max", s.maxSize),
		)
		return nil, fmt.Errorf("%w: must be between %d and %d", ErrInvalidSize, s.minSize, s.maxSize)
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		s.logger.Error("Failed to encode QR code",
			zap.Error(err),
			zap.String("data_preview", truncateString(string(data), 32)),
			zap.Int("size", size),
		)
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	s.logger.Debug("QR code generated successfully",
		zap.Int("output_size_bytes", len(png)),
		zap.String("image_dimensions", fmt.Sprintf("%dx%d", size, size)),
	)

	return png, nil
}

// truncateString shortens s to maxLen runes for logging.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
