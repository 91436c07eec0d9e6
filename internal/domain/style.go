/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Style keys understood by renderers. Other keys are preserved untouched.
const (
	StyleColor      = "color"
	StyleFontSize   = "fontSize"
	StyleFontWeight = "fontWeight"
)

// Style defaults applied when a key is missing or unusable.
const (
	DefaultTextColor  = "#000000"
	DefaultFontSize   = 16.0
	DefaultFontWeight = 400
)

// Style is the open, schema-less rendering hint map of an element.
type Style map[string]any

// Clone returns a shallow copy of the map.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	out := make(Style, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns s with every key of o written over it. Nil values delete the key.
func (s Style) Merge(o Style) Style {
	if len(o) == 0 {
		return s.Clone()
	}
	out := s.Clone()
	if out == nil {
		out = Style{}
	}
	for k, v := range o {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Color returns the text color or DefaultTextColor.
func (s Style) Color() string {
	if v, ok := s[StyleColor].(string); ok && IsColor(v) {
		return v
	}
	return DefaultTextColor
}

// FontSize returns the font size in pixels or DefaultFontSize.
func (s Style) FontSize() float64 {
	if n, ok := number(s[StyleFontSize]); ok && n > 0 {
		return n
	}
	return DefaultFontSize
}

// FontWeight returns the numeric font weight or DefaultFontWeight.
// "bold" and "normal" map to 700 and 400.
func (s Style) FontWeight() int {
	switch v := s[StyleFontWeight].(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "bold":
			return 700
		case "normal":
			return 400
		}
	}
	if n, ok := number(s[StyleFontWeight]); ok && n > 0 {
		return int(n)
	}
	return DefaultFontWeight
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "px"), 64)
		return f, err == nil
	}
	return 0, false
}
