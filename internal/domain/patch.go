/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"math"
	"regexp"
	"strings"
)

// ElementPatch is a partial element update. Nil fields are left unchanged.
// Each field carries the full new value, never a delta.
type ElementPatch struct {
	Content  *string  `json:"content,omitempty"`
	X        *float64 `json:"position_x,omitempty"`
	Y        *float64 `json:"position_y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *int     `json:"rotation,omitempty"`
	Style    Style    `json:"style_data,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ElementPatch) IsEmpty() bool {
	return p.Content == nil && p.X == nil && p.Y == nil && p.Width == nil &&
		p.Height == nil && p.Rotation == nil && len(p.Style) == 0
}

// Merge folds a later patch into p. Later values win.
func (p ElementPatch) Merge(later ElementPatch) ElementPatch {
	if later.Content != nil {
		p.Content = later.Content
	}
	if later.X != nil {
		p.X = later.X
	}
	if later.Y != nil {
		p.Y = later.Y
	}
	if later.Width != nil {
		p.Width = later.Width
	}
	if later.Height != nil {
		p.Height = later.Height
	}
	if later.Rotation != nil {
		p.Rotation = later.Rotation
	}
	if len(later.Style) > 0 {
		if p.Style == nil {
			p.Style = later.Style.Clone()
		} else {
			merged := p.Style.Clone()
			for k, v := range later.Style {
				merged[k] = v
			}
			p.Style = merged
		}
	}
	return p
}

// Normalize clamps geometry into the model's ranges: position to [0,100],
// size to at least MinElementSize and rotation into [0,360).
func (p ElementPatch) Normalize() ElementPatch {
	if p.X != nil {
		v := ClampPosition(*p.X)
		p.X = &v
	}
	if p.Y != nil {
		v := ClampPosition(*p.Y)
		p.Y = &v
	}
	if p.Width != nil {
		v := ClampSize(*p.Width)
		p.Width = &v
	}
	if p.Height != nil {
		v := ClampSize(*p.Height)
		p.Height = &v
	}
	if p.Rotation != nil {
		v := WrapRotation(*p.Rotation)
		p.Rotation = &v
	}
	return p
}

// Validate rejects patches that would break element invariants.
func (p ElementPatch) Validate() error {
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return Invalid("content must not be empty")
	}
	for _, f := range []*float64{p.X, p.Y, p.Width, p.Height} {
		if f != nil && (math.IsNaN(*f) || math.IsInf(*f, 0)) {
			return Invalid("geometry must be finite")
		}
	}
	return nil
}

// Apply returns e with the patch merged in. The receiver element is not modified.
func (p ElementPatch) Apply(e Element) Element {
	out := e.Clone()
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.X != nil {
		out.X = *p.X
	}
	if p.Y != nil {
		out.Y = *p.Y
	}
	if p.Width != nil {
		out.Width = *p.Width
	}
	if p.Height != nil {
		out.Height = *p.Height
	}
	if p.Rotation != nil {
		out.Rotation = *p.Rotation
	}
	if len(p.Style) > 0 {
		out.Style = out.Style.Merge(p.Style)
	}
	return out
}

// PatchFrom returns a patch that would restore every mutable field of e.
func PatchFrom(e Element) ElementPatch {
	c, x, y, w, h, r := e.Content, e.X, e.Y, e.Width, e.Height, e.Rotation
	st := e.Style.Clone()
	if st == nil {
		st = Style{}
	}
	return ElementPatch{Content: &c, X: &x, Y: &y, Width: &w, Height: &h, Rotation: &r, Style: st}
}

// RestorePatch returns a patch that turns current back into before,
// including the removal of style keys added since.
func RestorePatch(before, current Element) ElementPatch {
	p := PatchFrom(before)
	for k := range current.Style {
		if _, ok := before.Style[k]; !ok {
			p.Style[k] = nil
		}
	}
	return p
}

// Move is a shorthand patch for a position change.
func Move(x, y float64) ElementPatch { return ElementPatch{X: &x, Y: &y} }

// Resize is a shorthand patch for a size change.
func Resize(w, h float64) ElementPatch { return ElementPatch{Width: &w, Height: &h} }

// Rotate is a shorthand patch for a rotation change.
func Rotate(deg int) ElementPatch { return ElementPatch{Rotation: &deg} }

// SetContent is a shorthand patch for a content change.
func SetContent(s string) ElementPatch { return ElementPatch{Content: &s} }

// ClampPosition limits a percentage to [0,100].
func ClampPosition(v float64) float64 {
	return math.Max(MinPosition, math.Min(MaxPosition, v))
}

// ClampSize limits a dimension to at least MinElementSize.
func ClampSize(v float64) float64 {
	return math.Max(MinElementSize, v)
}

// WrapRotation maps any integer degree value into [0,360).
func WrapRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// NewElement is the input for creating an element.
type NewElement struct {
	PageID  string      `json:"page_id"`
	Kind    ElementKind `json:"element_type"`
	Content string      `json:"content"`
	X       float64     `json:"position_x"`
	Y       float64     `json:"position_y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	// Rotation and ZIndex are set by the session.
	Rotation int   `json:"rotation"`
	ZIndex   int   `json:"z_index"`
	Style    Style `json:"style_data,omitempty"`
}

// Validate checks a creation request.
func (n NewElement) Validate() error {
	if strings.TrimSpace(n.PageID) == "" {
		return Invalid("page id is required")
	}
	if !n.Kind.Valid() {
		return Invalid("unknown element type %q", n.Kind)
	}
	if strings.TrimSpace(n.Content) == "" {
		return Invalid("content must not be empty")
	}
	if c, ok := n.Style[StyleColor].(string); ok && !IsColor(c) {
		return Invalid("invalid color %q", c)
	}
	return nil
}

// PagePatch updates page-level state.
type PagePatch struct {
	BackgroundColor *string `json:"background_color,omitempty"`
}

// Validate checks the background token.
func (p PagePatch) Validate() error {
	if p.BackgroundColor != nil && !IsColor(*p.BackgroundColor) {
		return Invalid("invalid background color %q", *p.BackgroundColor)
	}
	return nil
}

// NewPage is the input for appending a page to a section.
type NewPage struct {
	SectionID       string `json:"section_id"`
	BackgroundColor string `json:"background_color,omitempty"`
}

// SectionPatch renames a section.
type SectionPatch struct {
	Title *string `json:"title,omitempty"`
}

// NewSection is the input for appending a section to a book.
type NewSection struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
}

// Validate requires a title.
func (n NewSection) Validate() error {
	if strings.TrimSpace(n.BookID) == "" {
		return Invalid("book id is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return Invalid("section title is required")
	}
	return nil
}

// BookPatch updates book metadata.
type BookPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	CoverImage  *string `json:"cover_image,omitempty"`
}

// Validate rejects an empty title.
func (p BookPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Invalid("book title must not be empty")
	}
	return nil
}

// NewBook is the input for creating a trip's book.
type NewBook struct {
	TripID      string `json:"trip_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var colorRe = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|#[0-9a-fA-F]{8}|rgba?\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*(,\s*(0|1|0?\.\d+)\s*)?\))$`)

// IsColor reports whether s is a hex (#rgb, #rrggbb, #rrggbbaa) or rgb()/rgba() token.
func IsColor(s string) bool {
	return colorRe.MatchString(strings.TrimSpace(s))
}
