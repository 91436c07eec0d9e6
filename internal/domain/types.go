/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "time"

// This file defines the scrapbook data model: a Book per trip, ordered Sections,
// ordered Pages and the positioned Elements placed on a page.
// Ownership is strictly hierarchical and deletes cascade downwards.

// ElementKind is the type of a placed object.
type ElementKind string

const (
	KindImage   ElementKind = "image"
	KindText    ElementKind = "text"
	KindSticker ElementKind = "sticker"
)

// Valid reports whether k is one of the known kinds.
func (k ElementKind) Valid() bool {
	switch k {
	case KindImage, KindText, KindSticker:
		return true
	}
	return false
}

// Geometry limits and defaults.
const (
	MinElementSize   = 20.0
	MinPosition      = 0.0
	MaxPosition      = 100.0
	DefaultPositionX = 50.0
	DefaultPositionY = 50.0
	RotationStep     = 15

	DefaultBackground = "#ffffff"
)

// Element is one placed object on a page.
// X and Y are percentages of the canvas, Width and Height absolute pixels.
type Element struct {
	ID        string      `json:"id"`
	PageID    string      `json:"page_id"`
	Kind      ElementKind `json:"element_type"`
	Content   string      `json:"content"` // image URL, text body or sticker glyph
	X         float64     `json:"position_x"`
	Y         float64     `json:"position_y"`
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Rotation  int         `json:"rotation"` // degrees in [0,360)
	ZIndex    int         `json:"z_index"`
	Style     Style       `json:"style_data,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Clone returns a deep copy; Style maps are not shared.
func (e Element) Clone() Element {
	e.Style = e.Style.Clone()
	return e
}

// DefaultSize returns the initial footprint of a new element of kind k.
func DefaultSize(k ElementKind) (w, h float64) {
	if k == KindText {
		return 200, 50
	}
	return 150, 150
}

// Page is a canvas within a section.
type Page struct {
	ID              string    `json:"id"`
	SectionID       string    `json:"section_id"`
	OrderIndex      int       `json:"order_index"`
	BackgroundColor string    `json:"background_color"`
	CreatedAt       time.Time `json:"created_at"`
}

// Section groups pages of a book.
type Section struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Title      string    `json:"title"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// Book is the scrapbook of one trip.
type Book struct {
	ID          string    `json:"id"`
	TripID      string    `json:"trip_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoverImage  string    `json:"cover_image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultBookDescription is used when a book is created lazily for a trip.
const DefaultBookDescription = "Collect your memories and moments from this trip"

// BookTitleFor names the lazily created book after its trip.
func BookTitleFor(tripName string) string {
	if tripName == "" {
		return "Trip Scrapbook"
	}
	return tripName + " Scrapbook"
}

// Stickers is the built-in travel sticker palette.
var Stickers = []string{
	"✈️", "🗺️", "📸", "🎒", "🏖️", "⛰️", "🏝️", "🗼", "🏰", "🎭",
	"🎨", "🍱", "🍕", "☕", "🌅", "🌄", "🌊", "🌸", "🌺", "⭐",
	"❤️", "💙", "💚", "💛", "🧡", "💜", "🤍", "🖤", "💕", "✨",
}

// BackgroundPresets are the suggested page background colors.
var BackgroundPresets = []string{"#ffffff", "#f3f4f6", "#fef3c7", "#fecaca", "#ddd6fe", "#bfdbfe", "#d1fae5"}
