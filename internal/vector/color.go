/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"strconv"
	"strings"
)

// Paint definitions shared by the renderers.

type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
)

// ParseColor reads #rgb, #rrggbb, #rrggbbaa, rgb() and rgba() tokens.
// Unparseable input returns fallback.
func ParseColor(s string, fallback Color) Color {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "#") {
		h := s[1:]
		if len(h) == 3 {
			h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
		}
		if len(h) != 6 && len(h) != 8 {
			return fallback
		}
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return fallback
		}
		if len(h) == 6 {
			return Color{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
		}
		return Color{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}
	}
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if (strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(")) && open > 0 && end > open {
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) < 3 || len(parts) > 4 {
			return fallback
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || n < 0 || n > 255 {
				return fallback
			}
			ch[i] = uint8(n)
		}
		a := uint8(255)
		if len(parts) == 4 {
			f, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil || f < 0 || f > 1 {
				return fallback
			}
			a = uint8(f*255 + 0.5)
		}
		return Color{ch[0], ch[1], ch[2], a}
	}
	return fallback
}

// Hex formats c as #rrggbb, ignoring alpha.
func (c Color) Hex() string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}
