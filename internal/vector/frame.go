/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "tripbook/internal/domain"

// Frame is an element's footprint on a concrete canvas: an axis-aligned box
// whose top-left corner sits at the element's percentage anchor, rotated about its center.
type Frame struct {
	Box      Rect
	Rotation float64
	xf       Affine2D
}

// FrameOf places e on a canvas of the given size.
func FrameOf(e domain.Element, canvas Size) Frame {
	box := Rect{X: e.X / 100 * canvas.W, Y: e.Y / 100 * canvas.H, W: e.Width, H: e.Height}
	return Frame{Box: box, Rotation: float64(e.Rotation), xf: RotateAbout(box.Center(), float64(e.Rotation))}
}

// Transform maps the unrotated box into canvas space.
func (f Frame) Transform() Affine2D {
	if f.xf == (Affine2D{}) {
		return Identity
	}
	return f.xf
}

// Corners returns the four transformed corners clockwise from top-left.
func (f Frame) Corners() [4]Pt {
	m := f.Transform()
	b := f.Box
	return [4]Pt{
		m.Apply(Pt{b.X, b.Y}),
		m.Apply(Pt{b.X + b.W, b.Y}),
		m.Apply(Pt{b.X + b.W, b.Y + b.H}),
		m.Apply(Pt{b.X, b.Y + b.H}),
	}
}

// Bounds is the axis-aligned box around the rotated frame.
func (f Frame) Bounds() Rect {
	c := f.Corners()
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := c[0].X, c[0].Y
	for _, p := range c[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Hit reports whether canvas point p lies inside the rotated frame.
func (f Frame) Hit(p Pt) bool {
	inv, ok := f.Transform().Invert()
	if !ok {
		return false
	}
	return f.Box.Contains(inv.Apply(p))
}

// TopmostAt returns the element with the highest z-index whose frame contains p.
// Ties on z go to the later element in the slice.
func TopmostAt(elems []domain.Element, canvas Size, p Pt) (domain.Element, bool) {
	var best domain.Element
	found := false
	for _, e := range elems {
		if !FrameOf(e, canvas).Hit(p) {
			continue
		}
		if !found || e.ZIndex >= best.ZIndex {
			best, found = e, true
		}
	}
	return best, found
}
