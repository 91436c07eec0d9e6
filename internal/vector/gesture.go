/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Gesture math: pure functions turning pointer displacement into element transforms.
// Positions are percentages of the canvas, sizes absolute pixels, rotation degrees.

import (
	"errors"
	"math"

	"tripbook/internal/domain"
)

// ErrBadInput is returned for non-finite points or a degenerate canvas.
var ErrBadInput = errors.New("vector: invalid gesture input")

func finite(p Pt) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// DragDelta converts a pixel displacement into a percentage-of-canvas displacement.
func DragDelta(start, cur Pt, canvas Size) (Pt, error) {
	if !finite(start) || !finite(cur) || !canvas.Valid() {
		return Pt{}, ErrBadInput
	}
	d := cur.Sub(start)
	return Pt{X: d.X / canvas.W * 100, Y: d.Y / canvas.H * 100}, nil
}

// ApplyDrag adds a percentage delta to a position, clamping each axis to [0,100].
func ApplyDrag(pos, delta Pt) Pt {
	return Pt{X: domain.ClampPosition(pos.X + delta.X), Y: domain.ClampPosition(pos.Y + delta.Y)}
}

// ResizeDelta is the raw pixel displacement of the resize handle.
func ResizeDelta(start, cur Pt) (Size, error) {
	if !finite(start) || !finite(cur) {
		return Size{}, ErrBadInput
	}
	d := cur.Sub(start)
	return Size{W: d.X, H: d.Y}, nil
}

// ApplyResize adds a pixel delta to a size, never going below the minimum footprint.
func ApplyResize(s, delta Size) Size {
	return Size{W: domain.ClampSize(s.W + delta.W), H: domain.ClampSize(s.H + delta.H)}
}

// RotateStep advances rotation by one 15 degree step, wrapping at 360.
func RotateStep(deg int) int {
	return domain.WrapRotation(deg + domain.RotationStep)
}
