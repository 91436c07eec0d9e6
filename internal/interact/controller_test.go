/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripbook/internal/domain"
	applog "tripbook/internal/log"
	"tripbook/internal/vector"
)

// board is a Source and Sink that applies intents to an in-memory element list.
type board struct {
	canvas  vector.Size
	elems   []domain.Element
	intents []Intent
	fail    error
}

func (b *board) Element(id string) (domain.Element, bool) {
	for _, e := range b.elems {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Element{}, false
}

func (b *board) Elements() []domain.Element { return b.elems }
func (b *board) CanvasSize() vector.Size    { return b.canvas }

func (b *board) Apply(in Intent) error {
	if b.fail != nil {
		return b.fail
	}
	b.intents = append(b.intents, in)
	for i, e := range b.elems {
		if e.ID != in.ElementID {
			continue
		}
		if in.Kind == IntentDelete {
			b.elems = append(b.elems[:i], b.elems[i+1:]...)
		} else {
			b.elems[i] = in.Patch.Normalize().Apply(e)
		}
		break
	}
	return nil
}

func (b *board) finals() []Intent {
	var out []Intent
	for _, in := range b.intents {
		if in.Final {
			out = append(out, in)
		}
	}
	return out
}

func newBoard() *board {
	return &board{
		canvas: vector.Size{W: 1000, H: 500},
		elems: []domain.Element{
			{ID: "a", Kind: domain.KindImage, Content: "a.png", X: 50, Y: 50, Width: 150, Height: 150, ZIndex: 1},
			{ID: "t", Kind: domain.KindText, Content: "hello", X: 10, Y: 10, Width: 200, Height: 50, ZIndex: 2},
		},
	}
}

func newController(b *board) *Controller { return New(b, b, applog.Discard()) }

func TestDragEmitsPercentPositionAndCommitsOnRelease(t *testing.T) {
	b := newBoard()
	c := newController(b)

	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{X: 100, Y: 100}))
	assert.Equal(t, Dragging, c.State("a"))

	require.NoError(t, c.PointerMove(vector.Pt{X: 150, Y: 125}))
	e, _ := b.Element("a")
	assert.InDelta(t, 55, e.X, 1e-9)
	assert.InDelta(t, 55, e.Y, 1e-9)
	require.Len(t, b.intents, 1)
	assert.False(t, b.intents[0].Final)

	require.NoError(t, c.PointerUp(vector.Pt{X: 200, Y: 100}))
	assert.Equal(t, Selected, c.State("a"))
	finals := b.finals()
	require.Len(t, finals, 1)
	assert.InDelta(t, 60, *finals[0].Patch.X, 1e-9)
	assert.InDelta(t, 50, *finals[0].Patch.Y, 1e-9)
}

func TestDragClampsToCanvas(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{X: 0, Y: 0}))
	require.NoError(t, c.PointerUp(vector.Pt{X: 5000, Y: -5000}))
	e, _ := b.Element("a")
	assert.Equal(t, 100.0, e.X)
	assert.Equal(t, 0.0, e.Y)
}

func TestClickWithoutMovementOnlySelects(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{X: 10, Y: 10}))
	require.NoError(t, c.PointerUp(vector.Pt{X: 10, Y: 10}))
	assert.Empty(t, b.intents)
	id, ok := c.Selection()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestNonPrimaryButtonIgnored(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonSecondary, vector.Pt{}))
	assert.Equal(t, Idle, c.State("a"))
}

func TestResizeRequiresSelectionAndRespectsMinimum(t *testing.T) {
	b := newBoard()
	c := newController(b)

	require.NoError(t, c.PointerDown(TargetResizeHandle, "a", ButtonPrimary, vector.Pt{}))
	assert.Equal(t, Idle, c.State("a"), "handle on unselected element")

	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{}))
	require.NoError(t, c.PointerUp(vector.Pt{}))
	require.NoError(t, c.PointerDown(TargetResizeHandle, "a", ButtonPrimary, vector.Pt{X: 300, Y: 300}))
	assert.Equal(t, Resizing, c.State("a"))
	require.NoError(t, c.PointerMove(vector.Pt{X: 350, Y: 320}))
	e, _ := b.Element("a")
	assert.Equal(t, 200.0, e.Width)
	assert.Equal(t, 170.0, e.Height)
	require.NoError(t, c.PointerUp(vector.Pt{X: 0, Y: 0}))
	e, _ = b.Element("a")
	assert.Equal(t, 20.0, e.Width)
	assert.Equal(t, 20.0, e.Height)
	assert.Equal(t, 50.0, e.X, "resize keeps position")
	assert.Equal(t, Selected, c.State("a"))
}

func TestRotateStepsAndWraps(t *testing.T) {
	b := newBoard()
	c := newController(b)
	for i := 0; i < 24; i++ {
		require.NoError(t, c.PointerDown(TargetRotate, "a", ButtonPrimary, vector.Pt{}))
	}
	e, _ := b.Element("a")
	assert.Equal(t, 0, e.Rotation)
	assert.Len(t, b.finals(), 24)
	assert.Equal(t, Selected, c.State("a"))

	b.elems[0].Rotation = 345
	require.NoError(t, c.Rotate("a"))
	e, _ = b.Element("a")
	assert.Equal(t, 0, e.Rotation)
}

func TestRotateUnknownElement(t *testing.T) {
	c := newController(newBoard())
	err := c.Rotate("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteEmitsAndClearsState(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{}))
	require.NoError(t, c.PointerDown(TargetDelete, "a", ButtonPrimary, vector.Pt{}))
	require.Len(t, b.intents, 1)
	assert.Equal(t, IntentDelete, b.intents[0].Kind)
	_, ok := c.Selection()
	assert.False(t, ok)
	_, ok = b.Element("a")
	assert.False(t, ok)
}

func TestEscapeRestoresDragStart(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{X: 0, Y: 0}))
	require.NoError(t, c.PointerMove(vector.Pt{X: 100, Y: 100}))
	require.NoError(t, c.KeyDown("Escape"))
	e, _ := b.Element("a")
	assert.Equal(t, 50.0, e.X)
	assert.Equal(t, 50.0, e.Y)
	assert.Equal(t, Selected, c.State("a"))
	// a later pointer-up is a no-op
	require.NoError(t, c.PointerUp(vector.Pt{X: 300, Y: 300}))
	e, _ = b.Element("a")
	assert.Equal(t, 50.0, e.X)
}

func TestMalformedMoveAbortsGesture(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{X: 0, Y: 0}))
	require.NoError(t, c.PointerMove(vector.Pt{X: 100, Y: 0}))
	require.NoError(t, c.PointerMove(vector.Pt{X: math.NaN(), Y: 0}))
	e, _ := b.Element("a")
	assert.Equal(t, 50.0, e.X, "start geometry restored")
	assert.Equal(t, Selected, c.State("a"))
}

func TestDegenerateCanvasAbortsDrag(t *testing.T) {
	b := newBoard()
	b.canvas = vector.Size{}
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{}))
	require.NoError(t, c.PointerMove(vector.Pt{X: 10, Y: 10}))
	assert.Empty(t, b.intents)
	assert.Equal(t, Selected, c.State("a"))
}

func TestTextEditingFlow(t *testing.T) {
	b := newBoard()
	c := newController(b)

	require.NoError(t, c.DoubleClick("a"))
	assert.NotEqual(t, EditingText, c.State("a"), "images are not editable")

	require.NoError(t, c.DoubleClick("t"))
	assert.Equal(t, EditingText, c.State("t"))

	// pointer on the element being edited does not start a drag
	require.NoError(t, c.PointerDown(TargetBody, "t", ButtonPrimary, vector.Pt{}))
	assert.Equal(t, EditingText, c.State("t"))

	c.SetDraft("   ")
	err := c.SaveText()
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, EditingText, c.State("t"))

	c.SetDraft("Day 1 in Lisbon")
	_, draft, ok := c.Draft()
	require.True(t, ok)
	assert.Equal(t, "Day 1 in Lisbon", draft)
	require.NoError(t, c.SaveText())
	e, _ := b.Element("t")
	assert.Equal(t, "Day 1 in Lisbon", e.Content)
	assert.Equal(t, Selected, c.State("t"))
}

func TestCancelTextDiscardsDraft(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.DoubleClick("t"))
	c.SetDraft("changed")
	require.NoError(t, c.KeyDown("Escape"))
	e, _ := b.Element("t")
	assert.Equal(t, "hello", e.Content)
	assert.Empty(t, b.intents)
	_, _, ok := c.Draft()
	assert.False(t, ok)
}

func TestCanvasClickHitTestsAndDeselects(t *testing.T) {
	b := newBoard()
	c := newController(b)

	// element "a" sits at 500,250 on a 1000x500 canvas
	require.NoError(t, c.PointerDown(TargetCanvas, "", ButtonPrimary, vector.Pt{X: 550, Y: 300}))
	assert.Equal(t, Dragging, c.State("a"))
	require.NoError(t, c.PointerUp(vector.Pt{X: 550, Y: 300}))

	require.NoError(t, c.DoubleClick("t"))
	require.NoError(t, c.PointerDown(TargetCanvas, "", ButtonPrimary, vector.Pt{X: 990, Y: 490}))
	_, ok := c.Selection()
	assert.False(t, ok)
	assert.Equal(t, Idle, c.State("t"))
}

func TestSelectingAnotherElementMovesSelection(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.PointerDown(TargetBody, "a", ButtonPrimary, vector.Pt{}))
	require.NoError(t, c.PointerUp(vector.Pt{}))
	require.NoError(t, c.PointerDown(TargetBody, "t", ButtonPrimary, vector.Pt{}))
	assert.Equal(t, Idle, c.State("a"))
	assert.Equal(t, Dragging, c.State("t"))
}

func TestSinkErrorIsReturned(t *testing.T) {
	b := newBoard()
	c := newController(b)
	b.fail = errors.New("closed")
	err := c.Rotate("a")
	assert.EqualError(t, err, "closed")
}

func TestHandleDispatches(t *testing.T) {
	b := newBoard()
	c := newController(b)
	require.NoError(t, c.Handle(Event{Type: EvPointerDown, Target: TargetBody, Element: "a", X: 0, Y: 0}))
	require.NoError(t, c.Handle(Event{Type: EvPointerMove, X: 100, Y: 0}))
	require.NoError(t, c.Handle(Event{Type: EvPointerUp, X: 100, Y: 0}))
	e, _ := b.Element("a")
	assert.InDelta(t, 60, e.X, 1e-9)
	assert.Error(t, c.Handle(Event{Type: "wheel"}))
}
