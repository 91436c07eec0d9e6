/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestRectContainsAndUnion(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	u := r.Union(R(0, 0, 5, 5))
	if u.X != 0 || u.Y != 0 || u.W != 110 || u.H != 70 {
		t.Fatalf("unexpected union: %+v", u)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible")
	}
	q := inv.Apply(p)
	if FloatRound(q.X, 9) != 1 || FloatRound(q.Y, 9) != 1 {
		t.Fatalf("inverse mismatch: %+v", q)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("singular matrix must not invert")
	}
}

func TestRotateAboutKeepsCenter(t *testing.T) {
	c := Pt{50, 50}
	m := RotateAbout(c, 90)
	p := m.Apply(c)
	if math.Abs(p.X-50) > 1e-9 || math.Abs(p.Y-50) > 1e-9 {
		t.Fatalf("center moved: %+v", p)
	}
	q := m.Apply(Pt{60, 50})
	if math.Abs(q.X-50) > 1e-9 || math.Abs(q.Y-60) > 1e-9 {
		t.Fatalf("expected clockwise quarter turn on screen, got %+v", q)
	}
}

func TestParseColor(t *testing.T) {
	cases := map[string]Color{
		"#fff":               White,
		"#ff0000":            {255, 0, 0, 255},
		"#00ff0080":          {0, 255, 0, 128},
		"rgb(1, 2, 3)":       {1, 2, 3, 255},
		"rgba(10,20,30,0.5)": {10, 20, 30, 128},
		"nonsense":           Black,
		"rgb(300,0,0)":       Black,
	}
	for in, want := range cases {
		if got := ParseColor(in, Black); got != want {
			t.Fatalf("ParseColor(%q) = %+v, want %+v", in, got, want)
		}
	}
	if (Color{255, 0, 16, 255}).Hex() != "#ff0010" {
		t.Fatalf("hex mismatch")
	}
}
