/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interact turns raw pointer and keyboard events on a page canvas into
// element mutation intents. It owns selection and gesture state only; element
// state lives with the Source and intents are handed to the Sink.
package interact

import (
	"log/slog"
	"strings"
	"sync"

	"tripbook/internal/domain"
	applog "tripbook/internal/log"
	"tripbook/internal/vector"
)

// State is the per-element interaction state.
type State int

const (
	Idle State = iota
	Selected
	Dragging
	Resizing
	// RotatePending is transient: a rotate click is applied immediately and
	// the element is back to Selected before the call returns.
	RotatePending
	EditingText
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case RotatePending:
		return "rotate-pending"
	case EditingText:
		return "editing-text"
	}
	return "unknown"
}

// Target is the part of the canvas a pointer-down landed on.
type Target int

const (
	TargetCanvas Target = iota
	TargetBody
	TargetResizeHandle
	TargetRotate
	TargetDelete
)

// Button identifies the pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// IntentKind distinguishes updates from deletes.
type IntentKind int

const (
	IntentUpdate IntentKind = iota
	IntentDelete
)

// Intent is a requested element mutation. Patches carry absolute values.
// Final marks the last intent of a gesture or a one-shot action; earlier
// intents of the same gesture may be coalesced by the sink.
type Intent struct {
	Kind      IntentKind
	ElementID string
	Patch     domain.ElementPatch
	Final     bool
}

// Source gives the controller read access to the page being edited.
type Source interface {
	Element(id string) (domain.Element, bool)
	// Elements returns the page's elements in stacking order.
	Elements() []domain.Element
	CanvasSize() vector.Size
}

// Sink receives intents, typically a canvas session applying them optimistically.
type Sink interface {
	Apply(in Intent) error
}

type gesture struct {
	kind     State // Dragging or Resizing
	id       string
	start    vector.Pt
	origPos  vector.Pt
	origSize vector.Size
	moved    bool
}

type textEdit struct {
	id       string
	original string
	draft    string
}

// Controller is the gesture state machine for one page. At most one element is
// selected and at most one exclusive gesture (drag, resize, text edit) runs at a time.
// It is safe for concurrent use.
type Controller struct {
	src  Source
	sink Sink
	log  *slog.Logger

	mu       sync.Mutex
	selected string
	g        *gesture
	edit     *textEdit
}

// New returns a controller reading from src and emitting into sink.
func New(src Source, sink Sink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = applog.WithComponent("interact")
	}
	return &Controller{src: src, sink: sink, log: logger}
}

// State reports the interaction state of an element.
func (c *Controller) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.g != nil && c.g.id == id:
		return c.g.kind
	case c.edit != nil && c.edit.id == id:
		return EditingText
	case c.selected != "" && c.selected == id:
		return Selected
	}
	return Idle
}

// Selection returns the selected element id, if any.
func (c *Controller) Selection() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.selected != ""
}

// Draft returns the in-progress text of the element being edited.
func (c *Controller) Draft() (id, text string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return "", "", false
	}
	return c.edit.id, c.edit.draft, true
}

// PointerDown starts a gesture or fires a control depending on target.
// A canvas target hit-tests the topmost element under pt and deselects on a miss.
func (c *Controller) PointerDown(target Target, id string, button Button, pt vector.Pt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch target {
	case TargetCanvas:
		e, ok := vector.TopmostAt(c.src.Elements(), c.src.CanvasSize(), pt)
		if !ok {
			c.deselectLocked()
			return nil
		}
		return c.beginDragLocked(e, button, pt)
	case TargetBody:
		e, ok := c.src.Element(id)
		if !ok {
			c.log.Debug("pointer-down on unknown element", slog.String("element", id))
			return nil
		}
		return c.beginDragLocked(e, button, pt)
	case TargetResizeHandle:
		return c.beginResizeLocked(id, button, pt)
	case TargetRotate:
		return c.rotateLocked(id)
	case TargetDelete:
		return c.deleteLocked(id)
	}
	c.log.Debug("pointer-down on unknown target", slog.Int("target", int(target)))
	return nil
}

func (c *Controller) beginDragLocked(e domain.Element, button Button, pt vector.Pt) error {
	if button != ButtonPrimary {
		return nil
	}
	if c.edit != nil {
		if c.edit.id == e.ID {
			// the text surface owns the pointer while editing
			return nil
		}
		c.edit = nil
	}
	if err := c.endGestureLocked(); err != nil {
		return err
	}
	c.selected = e.ID
	c.g = &gesture{kind: Dragging, id: e.ID, start: pt, origPos: vector.Pt{X: e.X, Y: e.Y}, origSize: vector.Size{W: e.Width, H: e.Height}}
	return nil
}

func (c *Controller) beginResizeLocked(id string, button Button, pt vector.Pt) error {
	if button != ButtonPrimary {
		return nil
	}
	if c.selected != id || c.edit != nil {
		// the handle is only offered on a selected element
		c.log.Debug("resize ignored for unselected element", slog.String("element", id))
		return nil
	}
	e, ok := c.src.Element(id)
	if !ok {
		return nil
	}
	if err := c.endGestureLocked(); err != nil {
		return err
	}
	c.g = &gesture{kind: Resizing, id: id, start: pt, origPos: vector.Pt{X: e.X, Y: e.Y}, origSize: vector.Size{W: e.Width, H: e.Height}}
	return nil
}

// PointerMove updates the running drag or resize.
func (c *Controller) PointerMove(pt vector.Pt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g == nil {
		return nil
	}
	p, ok := c.gesturePatchLocked(pt)
	if !ok {
		return c.abortLocked("malformed pointer move")
	}
	c.g.moved = true
	return c.emitLocked(Intent{Kind: IntentUpdate, ElementID: c.g.id, Patch: p})
}

// PointerUp ends the running gesture; the element stays selected.
func (c *Controller) PointerUp(pt vector.Pt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g == nil {
		return nil
	}
	p, ok := c.gesturePatchLocked(pt)
	if !ok {
		return c.abortLocked("malformed pointer up")
	}
	g := c.g
	c.g = nil
	if !g.moved && c.unchanged(g, p) {
		// a plain click selects without writing
		return nil
	}
	return c.emitLocked(Intent{Kind: IntentUpdate, ElementID: g.id, Patch: p, Final: true})
}

func (c *Controller) unchanged(g *gesture, p domain.ElementPatch) bool {
	if g.kind == Dragging {
		return p.X != nil && p.Y != nil && *p.X == g.origPos.X && *p.Y == g.origPos.Y
	}
	return p.Width != nil && p.Height != nil && *p.Width == g.origSize.W && *p.Height == g.origSize.H
}

func (c *Controller) gesturePatchLocked(pt vector.Pt) (domain.ElementPatch, bool) {
	g := c.g
	switch g.kind {
	case Dragging:
		d, err := vector.DragDelta(g.start, pt, c.src.CanvasSize())
		if err != nil {
			return domain.ElementPatch{}, false
		}
		np := vector.ApplyDrag(g.origPos, d)
		return domain.Move(np.X, np.Y), true
	case Resizing:
		d, err := vector.ResizeDelta(g.start, pt)
		if err != nil {
			return domain.ElementPatch{}, false
		}
		ns := vector.ApplyResize(g.origSize, d)
		return domain.Resize(ns.W, ns.H), true
	}
	return domain.ElementPatch{}, false
}

// restorePatch returns the geometry the gesture started from.
func (g *gesture) restorePatch() domain.ElementPatch {
	if g.kind == Resizing {
		return domain.Resize(g.origSize.W, g.origSize.H)
	}
	return domain.Move(g.origPos.X, g.origPos.Y)
}

// abortLocked drops the gesture after a malformed event, restoring its start geometry.
// The error is swallowed; only the gesture is affected.
func (c *Controller) abortLocked(reason string) error {
	g := c.g
	c.g = nil
	c.log.Debug("gesture aborted", slog.String("reason", reason), slog.String("element", g.id), slog.String("gesture", g.kind.String()))
	if !g.moved {
		return nil
	}
	if err := c.emitLocked(Intent{Kind: IntentUpdate, ElementID: g.id, Patch: g.restorePatch(), Final: true}); err != nil {
		c.log.Debug("restore after abort failed", slog.Any("err", err))
	}
	return nil
}

// endGestureLocked commits a gesture whose pointer-up never arrived.
func (c *Controller) endGestureLocked() error {
	if c.g == nil {
		return nil
	}
	g := c.g
	c.g = nil
	if !g.moved {
		return nil
	}
	e, ok := c.src.Element(g.id)
	if !ok {
		return nil
	}
	var p domain.ElementPatch
	if g.kind == Resizing {
		p = domain.Resize(e.Width, e.Height)
	} else {
		p = domain.Move(e.X, e.Y)
	}
	return c.emitLocked(Intent{Kind: IntentUpdate, ElementID: g.id, Patch: p, Final: true})
}

// Cancel aborts a running drag or resize, restoring the start geometry,
// or discards an active text edit.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g != nil {
		g := c.g
		c.g = nil
		if !g.moved {
			return nil
		}
		return c.emitLocked(Intent{Kind: IntentUpdate, ElementID: g.id, Patch: g.restorePatch(), Final: true})
	}
	if c.edit != nil {
		c.edit = nil
	}
	return nil
}

// KeyDown handles keyboard shortcuts. Escape cancels.
func (c *Controller) KeyDown(key string) error {
	if strings.EqualFold(key, "Escape") || strings.EqualFold(key, "Esc") {
		return c.Cancel()
	}
	return nil
}

// Rotate advances the element by one rotation step.
func (c *Controller) Rotate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotateLocked(id)
}

func (c *Controller) rotateLocked(id string) error {
	e, ok := c.src.Element(id)
	if !ok {
		return domain.NotFound("element", id)
	}
	if c.g != nil && c.g.id != id {
		if err := c.endGestureLocked(); err != nil {
			return err
		}
	}
	c.selected = id
	return c.emitLocked(Intent{Kind: IntentUpdate, ElementID: id, Patch: domain.Rotate(vector.RotateStep(e.Rotation)), Final: true})
}

// Delete removes the element regardless of its state.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(id)
}

func (c *Controller) deleteLocked(id string) error {
	if c.g != nil && c.g.id == id {
		c.g = nil
	}
	if c.edit != nil && c.edit.id == id {
		c.edit = nil
	}
	if c.selected == id {
		c.selected = ""
	}
	return c.emitLocked(Intent{Kind: IntentDelete, ElementID: id, Final: true})
}

// DoubleClick opens in-place editing on a text element.
func (c *Controller) DoubleClick(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.src.Element(id)
	if !ok || e.Kind != domain.KindText {
		return nil
	}
	if err := c.endGestureLocked(); err != nil {
		return err
	}
	c.selected = id
	c.edit = &textEdit{id: id, original: e.Content, draft: e.Content}
	return nil
}

// SetDraft replaces the text being edited.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		c.edit.draft = text
	}
}

// SaveText commits the draft. An empty draft is rejected and editing continues.
func (c *Controller) SaveText() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return nil
	}
	if strings.TrimSpace(c.edit.draft) == "" {
		return domain.Invalid("text must not be empty")
	}
	ed := c.edit
	c.edit = nil
	if ed.draft == ed.original {
		return nil
	}
	return c.emitLocked(Intent{Kind: IntentUpdate, ElementID: ed.id, Patch: domain.SetContent(ed.draft), Final: true})
}

// CancelText leaves editing without emitting anything.
func (c *Controller) CancelText() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = nil
}

// Deselect clears the selection; a running gesture is committed and an open text edit discarded.
func (c *Controller) Deselect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deselectLocked()
}

func (c *Controller) deselectLocked() error {
	err := c.endGestureLocked()
	c.edit = nil
	c.selected = ""
	return err
}

// Forget drops any state held for an element that disappeared from the page.
func (c *Controller) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g != nil && c.g.id == id {
		c.g = nil
	}
	if c.edit != nil && c.edit.id == id {
		c.edit = nil
	}
	if c.selected == id {
		c.selected = ""
	}
}

func (c *Controller) emitLocked(in Intent) error {
	if err := c.sink.Apply(in); err != nil {
		c.log.Debug("intent rejected", slog.String("element", in.ElementID), slog.Any("err", err))
		if c.g != nil && c.g.id == in.ElementID {
			c.g = nil
		}
		return err
	}
	return nil
}
