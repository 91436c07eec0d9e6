/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas holds the editing session of one scrapbook page.
//
// A Session owns the page's element collection. Mutations are applied to the
// local collection immediately and persisted in emission order by a single
// background worker. Geometry updates within a gesture are coalesced per
// element; a failed write is reconciled by re-reading the canonical row.
package canvas

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"tripbook/internal/domain"
	"tripbook/internal/interact"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
	"tripbook/internal/undo"
	"tripbook/internal/vector"
)

// ErrClosed is returned by mutations on a closed session.
var ErrClosed = errors.New("canvas: session closed")

// DefaultCanvasSize is used until the host reports its canvas dimensions.
var DefaultCanvasSize = vector.Size{W: 1200, H: 800}

// Backend is the part of the store a session needs.
type Backend interface {
	Pages() storage.PageRepository
	Elements() storage.ElementRepository
}

// ReconcileEvent reports that local state was replaced by canonical state
// after a failed write. ElementID is empty for page-level reconciliation.
type ReconcileEvent struct {
	PageID    string
	ElementID string
	// Removed is set when the element no longer exists in the store.
	Removed bool
	Element domain.Element
	Page    domain.Page
	Cause   error
}

// Options tunes a session. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// FlushInterval bounds how often in-gesture geometry is persisted.
	// Zero or negative persists only on gesture end.
	FlushInterval time.Duration
	CanvasSize    vector.Size
	// Undo is shared between sessions when set; otherwise each session keeps its own history.
	Undo *undo.Manager
	// UndoDepth caps the per-page history of a session-owned manager.
	UndoDepth int
	// OnReconcile and OnError are called from the persistence worker.
	OnReconcile func(ReconcileEvent)
	OnError     func(error)
	Now         func() time.Time
}

// Session is the editing state of one page. It is safe for concurrent use and
// satisfies both interact.Source and interact.Sink.
type Session struct {
	be     Backend
	pageID string
	log    *slog.Logger
	opts   Options
	now    func() time.Time
	hist   *undo.Manager

	mu     sync.Mutex
	page   domain.Page
	elems  map[string]domain.Element
	canvas vector.Size
	// topZ is the highest z-index handed out, including creates still in flight.
	topZ int
	// pending holds coalesced in-gesture patches not yet queued.
	pending   map[string]domain.ElementPatch
	before    map[string]domain.Element
	lastFlush map[string]time.Time
	// inflight counts queued writes per element.
	inflight map[string]int
	closed   bool

	q      *opQueue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	_ interact.Source = (*Session)(nil)
	_ interact.Sink   = (*Session)(nil)
)

// Open loads a page and its elements. A missing page is returned as a NotFound error.
func Open(ctx context.Context, be Backend, pageID string, opts Options) (*Session, error) {
	if strings.TrimSpace(pageID) == "" {
		return nil, domain.Invalid("page id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.WithComponent("canvas")
	}
	logger = applog.WithPage(logger, pageID)

	page, err := be.Pages().Get(ctx, pageID)
	if err != nil {
		return nil, domain.Persistence("load page", err)
	}
	list, err := be.Elements().List(ctx, pageID)
	if err != nil {
		return nil, domain.Persistence("load elements", err)
	}

	s := &Session{
		be:        be,
		pageID:    pageID,
		log:       logger,
		opts:      opts,
		now:       opts.Now,
		hist:      opts.Undo,
		page:      page,
		canvas:    opts.CanvasSize,
		pending:   make(map[string]domain.ElementPatch),
		before:    make(map[string]domain.Element),
		lastFlush: make(map[string]time.Time),
		inflight:  make(map[string]int),
		q:         newOpQueue(),
		done:      make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if !s.canvas.Valid() {
		s.canvas = DefaultCanvasSize
	}
	if s.hist == nil {
		s.hist = undo.NewManager(undo.Config{MaxPerPage: opts.UndoDepth})
	}
	s.setElementsLocked(list)
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go s.run()
	logger.Debug("page opened", slog.Int("elements", len(list)))
	return s, nil
}

func (s *Session) setElementsLocked(list []domain.Element) {
	s.elems = make(map[string]domain.Element, len(list))
	for _, e := range list {
		s.elems[e.ID] = e
		if e.ZIndex > s.topZ {
			s.topZ = e.ZIndex
		}
	}
}

// Page returns the page metadata.
func (s *Session) Page() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Elements returns the elements in stacking order, bottom first.
func (s *Session) Elements() []domain.Element {
	s.mu.Lock()
	out := make([]domain.Element, 0, len(s.elems))
	for _, e := range s.elems {
		out = append(out, e.Clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Element returns one element by id.
func (s *Session) Element(id string) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elems[id]
	if !ok {
		return domain.Element{}, false
	}
	return e.Clone(), true
}

// CanvasSize returns the current canvas dimensions in pixels.
func (s *Session) CanvasSize() vector.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas
}

// SetCanvasSize records new canvas dimensions. Element positions are percentages
// and keep their relative placement; sizes are absolute and do not scale.
func (s *Session) SetCanvasSize(sz vector.Size) error {
	if !sz.Valid() {
		return domain.Invalid("canvas size %vx%v", sz.W, sz.H)
	}
	s.mu.Lock()
	s.canvas = sz
	s.mu.Unlock()
	return nil
}

// AddElement creates an element above all siblings at the default position.
// It blocks until the store has assigned the identifier.
func (s *Session) AddElement(ctx context.Context, kind domain.ElementKind, content string, style domain.Style) (domain.Element, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Element{}, ErrClosed
	}
	w, h := domain.DefaultSize(kind)
	in := domain.NewElement{
		PageID: s.pageID, Kind: kind, Content: content,
		X: domain.DefaultPositionX, Y: domain.DefaultPositionY,
		Width: w, Height: h, Style: style.Clone(),
	}
	if err := in.Validate(); err != nil {
		s.mu.Unlock()
		return domain.Element{}, err
	}
	s.topZ++
	in.ZIndex = s.topZ
	done := make(chan opResult, 1)
	ok := s.q.push(op{kind: opCreate, create: in, done: done})
	s.mu.Unlock()
	if !ok {
		return domain.Element{}, ErrClosed
	}

	select {
	case r := <-done:
		return r.elem, r.err
	case <-ctx.Done():
		return domain.Element{}, ctx.Err()
	}
}

// ApplyMutation merges a partial update into an element and persists it.
func (s *Session) ApplyMutation(id string, p domain.ElementPatch) error {
	return s.Apply(interact.Intent{Kind: interact.IntentUpdate, ElementID: id, Patch: p, Final: true})
}

// Apply applies an intent to local state and schedules its persistence.
// Non-final updates are coalesced per element until the gesture ends.
func (s *Session) Apply(in interact.Intent) error {
	if in.Kind == interact.IntentDelete {
		return s.DeleteElement(in.ElementID)
	}
	if err := in.Patch.Validate(); err != nil {
		return err
	}
	p := in.Patch.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur, ok := s.elems[in.ElementID]
	if !ok {
		return domain.NotFound("element", in.ElementID)
	}
	if _, ok := s.before[in.ElementID]; !ok {
		s.before[in.ElementID] = cur.Clone()
	}
	s.elems[in.ElementID] = p.Apply(cur)
	s.pending[in.ElementID] = s.pending[in.ElementID].Merge(p)

	if in.Final {
		s.commitLocked(in.ElementID)
		return nil
	}
	if iv := s.opts.FlushInterval; iv > 0 {
		now := s.now()
		if now.Sub(s.lastFlush[in.ElementID]) >= iv {
			s.lastFlush[in.ElementID] = now
			s.enqueueUpdateLocked(in.ElementID)
		}
	}
	return nil
}

// commitLocked queues what is left of a gesture and records its undo step.
func (s *Session) commitLocked(id string) {
	s.enqueueUpdateLocked(id)
	delete(s.lastFlush, id)
	b, ok := s.before[id]
	delete(s.before, id)
	if !ok {
		return
	}
	blob, err := encodeSnapshot(b)
	if err != nil {
		s.log.Warn("undo snapshot skipped", slog.String("element", id), slog.Any("err", err))
		return
	}
	s.hist.PushSnapshot(undo.Snapshot{PageID: s.pageID, ElementID: id, Blob: blob, TS: s.now()})
}

func (s *Session) enqueueUpdateLocked(id string) {
	p, ok := s.pending[id]
	delete(s.pending, id)
	if !ok || p.IsEmpty() {
		return
	}
	if s.q.push(op{kind: opUpdate, id: id, patch: p}) {
		s.inflight[id]++
	}
}

// DeleteElement removes an element locally and schedules the delete.
func (s *Session) DeleteElement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.elems[id]; !ok {
		return domain.NotFound("element", id)
	}
	delete(s.elems, id)
	delete(s.pending, id)
	delete(s.before, id)
	delete(s.lastFlush, id)
	s.hist.DropElement(s.pageID, id)
	if s.q.push(op{kind: opDelete, id: id}) {
		s.inflight[id]++
	}
	return nil
}

// SetBackground changes the page background color.
func (s *Session) SetBackground(color string) error {
	p := domain.PagePatch{BackgroundColor: &color}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.page.BackgroundColor = color
	s.q.push(op{kind: opPage, page: p})
	return nil
}

// Flush queues all coalesced updates and waits until every write issued so far has completed.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.commitAllLocked()
	done := make(chan opResult, 1)
	ok := s.q.push(op{kind: opBarrier, done: done})
	s.mu.Unlock()
	if !ok {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) commitAllLocked() {
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.commitLocked(id)
	}
}

// Reload discards local state and reads the page again. Pending writes are flushed first.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	page, err := s.be.Pages().Get(ctx, s.pageID)
	if err != nil {
		return domain.Persistence("reload page", err)
	}
	list, err := s.be.Elements().List(ctx, page.ID)
	if err != nil {
		return domain.Persistence("reload elements", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	gone := make(map[string]struct{}, len(s.elems))
	for id := range s.elems {
		gone[id] = struct{}{}
	}
	s.page = page
	s.setElementsLocked(list)
	for id := range gone {
		if _, ok := s.elems[id]; !ok {
			s.hist.DropElement(s.pageID, id)
		}
	}
	return nil
}

// Close flushes coalesced updates, drains the worker and drops the page's undo history.
// If ctx ends first, outstanding writes are abandoned.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.commitAllLocked()
	s.closed = true
	s.mu.Unlock()
	s.q.close()

	defer s.hist.ClearPage(s.pageID)
	select {
	case <-s.done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return ctx.Err()
	}
}
