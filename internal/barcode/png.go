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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"math"
)

// pngHeaderLen covers the 8 byte signature plus the 25 byte IHDR chunk, which
// image/png always writes first.
const pngHeaderLen = 8 + 4 + 4 + 13 + 4

// EncodePNG encodes img as PNG and records dpi in a pHYs chunk so that
// printing at 100% scale reproduces the physical size.
func EncodePNG(img image.Image, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	if dpi <= 0 {
		return buf.Bytes(), nil
	}

	raw := buf.Bytes()
	if len(raw) < pngHeaderLen || string(raw[12:16]) != "IHDR" {
		return nil, fmt.Errorf("unexpected PNG layout")
	}

	out := make([]byte, 0, len(raw)+21)
	out = append(out, raw[:pngHeaderLen]...)
	out = append(out, physChunk(dpi)...)
	out = append(out, raw[pngHeaderLen:]...)
	return out, nil
}

// physChunk builds a pHYs chunk; PNG stores density in pixels per meter.
func physChunk(dpi int) []byte {
	ppm := uint32(math.Round(float64(dpi) / 0.0254))

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // unit: meter
	binary.BigEndian.PutUint32(chunk[17:21], crc32.ChecksumIEEE(chunk[4:17]))
	return chunk
}

// DPIFromPNG reads the horizontal density back from a pHYs chunk.
// It returns 0 when the chunk is absent or not expressed in meters.
func DPIFromPNG(data []byte) int {
	if len(data) < 8 {
		return 0
	}
	for i := 8; i+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		if i+12+n > len(data) {
			return 0
		}
		if typ == "pHYs" && n == 9 {
			body := data[i+8 : i+8+n]
			if body[8] != 1 {
				return 0
			}
			return int(math.Round(float64(binary.BigEndian.Uint32(body[0:4])) * 0.0254))
		}
		if typ == "IDAT" {
			return 0
		}
		i += 12 + n
	}
	return 0
}
