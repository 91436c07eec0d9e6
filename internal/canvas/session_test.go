/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripbook/internal/domain"
	"tripbook/internal/interact"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
	"tripbook/internal/vector"
)

var errUnavailable = errors.New("backend unavailable")

// flakyElements counts writes and fails the next failUpdates updates and failDeletes deletes.
type flakyElements struct {
	inner storage.ElementRepository

	mu          sync.Mutex
	updates     int
	failUpdates int
	failDeletes int
}

func (f *flakyElements) List(ctx context.Context, pageID string) ([]domain.Element, error) {
	return f.inner.List(ctx, pageID)
}

func (f *flakyElements) Get(ctx context.Context, id string) (domain.Element, error) {
	return f.inner.Get(ctx, id)
}

func (f *flakyElements) Create(ctx context.Context, in domain.NewElement) (domain.Element, error) {
	return f.inner.Create(ctx, in)
}

func (f *flakyElements) Update(ctx context.Context, id string, p domain.ElementPatch) (domain.Element, error) {
	f.mu.Lock()
	f.updates++
	fail := f.failUpdates > 0
	if fail {
		f.failUpdates--
	}
	f.mu.Unlock()
	if fail {
		return domain.Element{}, errUnavailable
	}
	return f.inner.Update(ctx, id, p)
}

func (f *flakyElements) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	fail := f.failDeletes > 0
	if fail {
		f.failDeletes--
	}
	f.mu.Unlock()
	if fail {
		return errUnavailable
	}
	return f.inner.Delete(ctx, id)
}

func (f *flakyElements) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

type flakyPages struct {
	inner storage.PageRepository
	fail  bool
}

func (f *flakyPages) List(ctx context.Context, sectionID string) ([]domain.Page, error) {
	return f.inner.List(ctx, sectionID)
}
func (f *flakyPages) Get(ctx context.Context, id string) (domain.Page, error) {
	return f.inner.Get(ctx, id)
}
func (f *flakyPages) Create(ctx context.Context, in domain.NewPage) (domain.Page, error) {
	return f.inner.Create(ctx, in)
}
func (f *flakyPages) Update(ctx context.Context, id string, p domain.PagePatch) (domain.Page, error) {
	if f.fail {
		return domain.Page{}, errUnavailable
	}
	return f.inner.Update(ctx, id, p)
}
func (f *flakyPages) Delete(ctx context.Context, id string) error { return f.inner.Delete(ctx, id) }

type testBackend struct {
	elems *flakyElements
	pages *flakyPages
}

func (b *testBackend) Pages() storage.PageRepository       { return b.pages }
func (b *testBackend) Elements() storage.ElementRepository { return b.elems }

type fixture struct {
	store *storage.SQLStore
	be    *testBackend
	page  domain.Page
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "tripbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	b, _, err := st.Books().GetOrCreate(ctx, domain.NewBook{TripID: "trip-1", Title: "Lisbon Scrapbook"})
	require.NoError(t, err)
	sec, err := st.Sections().Create(ctx, domain.NewSection{BookID: b.ID, Title: "Day 1"})
	require.NoError(t, err)
	p, err := st.Pages().Create(ctx, domain.NewPage{SectionID: sec.ID})
	require.NoError(t, err)
	return &fixture{
		store: st,
		be:    &testBackend{elems: &flakyElements{inner: st.Elements()}, pages: &flakyPages{inner: st.Pages()}},
		page:  p,
	}
}

func (f *fixture) open(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	s, err := Open(context.Background(), f.be, f.page.ID, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func (f *fixture) stored(t *testing.T, id string) domain.Element {
	t.Helper()
	e, err := f.store.Elements().Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

func TestOpenMissingPage(t *testing.T) {
	f := newFixture(t)
	_, err := Open(context.Background(), f.be, "nope", Options{Logger: applog.Discard()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = Open(context.Background(), f.be, " ", Options{Logger: applog.Discard()})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOpenLoadsElementsInStackingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, z := range []int{3, 1, 2} {
		_, err := f.store.Elements().Create(ctx, domain.NewElement{PageID: f.page.ID, Kind: domain.KindSticker, Content: "🌴", ZIndex: z})
		require.NoError(t, err)
	}
	s := f.open(t, Options{})
	var zs []int
	for _, e := range s.Elements() {
		zs = append(zs, e.ZIndex)
	}
	assert.Equal(t, []int{1, 2, 3}, zs)
	assert.Equal(t, DefaultCanvasSize, s.CanvasSize())
	assert.Equal(t, domain.DefaultBackground, s.Page().BackgroundColor)

	e, err := s.AddElement(ctx, domain.KindSticker, "🗺️", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, e.ZIndex)
}

func TestAddElementsStackInCreationOrder(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		e, err := s.AddElement(ctx, domain.KindImage, "https://example.com/p.jpg", nil)
		require.NoError(t, err)
		assert.Equal(t, i+1, e.ZIndex)
		ids = append(ids, e.ID)
	}
	els := s.Elements()
	require.Len(t, els, 5)
	assert.Equal(t, ids[4], els[4].ID, "last added is topmost")

	persisted, err := f.store.Elements().List(ctx, f.page.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 5)
	for i, e := range persisted {
		assert.Equal(t, ids[i], e.ID)
	}
}

func TestAddTextElementDefaults(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	e, err := s.AddElement(context.Background(), domain.KindText, "Hello",
		domain.Style{domain.StyleColor: "#ff0000", domain.StyleFontSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 50.0, e.X)
	assert.Equal(t, 50.0, e.Y)
	assert.Equal(t, 200.0, e.Width)
	assert.Equal(t, 50.0, e.Height)
	assert.Equal(t, 0, e.Rotation)
	assert.Equal(t, 1, e.ZIndex)

	got := f.stored(t, e.ID)
	assert.Equal(t, "#ff0000", got.Style.Color())
	assert.Equal(t, 20.0, got.Style.FontSize())
	assert.Equal(t, 400, got.Style.FontWeight())
}

func TestAddElementRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	_, err := s.AddElement(context.Background(), domain.KindText, "  ", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.AddElement(context.Background(), "video", "x", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	persisted, err := f.store.Elements().List(context.Background(), f.page.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted)
	assert.Empty(t, s.Elements())
}

func TestGestureIsPersistedOnce(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		require.NoError(t, s.Apply(interact.Intent{ElementID: e.ID, Patch: domain.Move(float64(50+i), 50)}))
	}
	local, _ := s.Element(e.ID)
	assert.Equal(t, 60.0, local.X, "optimistic local state")
	require.NoError(t, s.Apply(interact.Intent{ElementID: e.ID, Patch: domain.Move(70, 40), Final: true}))
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 1, f.be.elems.updateCount())
	got := f.stored(t, e.ID)
	assert.Equal(t, 70.0, got.X)
	assert.Equal(t, 40.0, got.Y)
}

func TestGestureThrottledByFlushInterval(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := f.open(t, Options{FlushInterval: 100 * time.Millisecond, Now: clock})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)

	step := func(d time.Duration, x float64) {
		now = now.Add(d)
		require.NoError(t, s.Apply(interact.Intent{ElementID: e.ID, Patch: domain.Move(x, 50)}))
	}
	step(0, 51)                   // first move flushes
	step(50*time.Millisecond, 52) // within interval
	step(70*time.Millisecond, 53) // 120ms since last flush
	step(10*time.Millisecond, 54) // within interval
	require.NoError(t, s.Apply(interact.Intent{ElementID: e.ID, Patch: domain.Move(55, 50), Final: true}))
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 3, f.be.elems.updateCount())
	assert.Equal(t, 55.0, f.stored(t, e.ID).X)
}

func TestIndependentElementsDoNotInterfere(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	a, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)
	b, err := s.AddElement(ctx, domain.KindSticker, "🎒", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = s.Apply(interact.Intent{ElementID: id, Patch: domain.Move(float64(i), 10)})
			}
		}(id)
	}
	wg.Wait()
	require.NoError(t, s.Apply(interact.Intent{ElementID: a.ID, Patch: domain.Resize(300, 300), Final: true}))
	require.NoError(t, s.Apply(interact.Intent{ElementID: b.ID, Patch: domain.Rotate(90), Final: true}))
	require.NoError(t, s.Flush(ctx))

	ga, gb := f.stored(t, a.ID), f.stored(t, b.ID)
	assert.Equal(t, 19.0, ga.X)
	assert.Equal(t, 300.0, ga.Width)
	assert.Equal(t, 0, ga.Rotation)
	assert.Equal(t, 19.0, gb.X)
	assert.Equal(t, 150.0, gb.Width)
	assert.Equal(t, 90, gb.Rotation)
}

func TestFailedUpdateReconcilesFromStore(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	var events []ReconcileEvent
	var errs []error
	s := f.open(t, Options{
		OnReconcile: func(ev ReconcileEvent) { mu.Lock(); events = append(events, ev); mu.Unlock() },
		OnError:     func(err error) { mu.Lock(); errs = append(errs, err); mu.Unlock() },
	})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)

	f.be.elems.mu.Lock()
	f.be.elems.failUpdates = 1
	f.be.elems.mu.Unlock()
	require.NoError(t, s.ApplyMutation(e.ID, domain.Move(10, 10)))
	require.NoError(t, s.Flush(ctx))

	local, ok := s.Element(e.ID)
	require.True(t, ok)
	assert.Equal(t, 50.0, local.X, "optimistic value replaced by canonical row")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrPersistence)
	assert.ErrorIs(t, errs[0], errUnavailable)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ElementID)
	assert.False(t, events[0].Removed)
}

func TestFailedUpdateDefersToNewerWrite(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)

	f.be.elems.mu.Lock()
	f.be.elems.failUpdates = 1
	f.be.elems.mu.Unlock()
	require.NoError(t, s.ApplyMutation(e.ID, domain.Move(10, 10)))
	require.NoError(t, s.ApplyMutation(e.ID, domain.Move(20, 20)))
	require.NoError(t, s.Flush(ctx))

	local, _ := s.Element(e.ID)
	assert.Equal(t, 20.0, local.X)
	assert.Equal(t, 20.0, f.stored(t, e.ID).X)
}

func TestUpdateOfVanishedElementRemovesIt(t *testing.T) {
	f := newFixture(t)
	var removed []string
	var mu sync.Mutex
	s := f.open(t, Options{OnReconcile: func(ev ReconcileEvent) {
		if ev.Removed {
			mu.Lock()
			removed = append(removed, ev.ElementID)
			mu.Unlock()
		}
	}})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)
	require.NoError(t, f.store.Elements().Delete(ctx, e.ID))

	require.NoError(t, s.ApplyMutation(e.ID, domain.Rotate(15)))
	require.NoError(t, s.Flush(ctx))

	_, ok := s.Element(e.ID)
	assert.False(t, ok)
	mu.Lock()
	assert.Equal(t, []string{e.ID}, removed)
	mu.Unlock()
}

func TestDeleteElement(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindSticker, "📸", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteElement(e.ID))
	_, ok := s.Element(e.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, s.DeleteElement(e.ID), domain.ErrNotFound)
	assert.ErrorIs(t, s.ApplyMutation(e.ID, domain.Rotate(15)), domain.ErrNotFound)

	require.NoError(t, s.Flush(ctx))
	_, err = f.store.Elements().Get(ctx, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFailedDeleteRestoresElement(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	var events []ReconcileEvent
	s := f.open(t, Options{
		OnReconcile: func(ev ReconcileEvent) { mu.Lock(); events = append(events, ev); mu.Unlock() },
	})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindSticker, "🎡", nil)
	require.NoError(t, err)

	f.be.elems.mu.Lock()
	f.be.elems.failDeletes = 1
	f.be.elems.mu.Unlock()
	require.NoError(t, s.DeleteElement(e.ID))
	require.NoError(t, s.Flush(ctx))

	f.stored(t, e.ID)
	local, ok := s.Element(e.ID)
	require.True(t, ok, "element still stored, so it is back in the local view")
	assert.Equal(t, "🎡", local.Content)

	mu.Lock()
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ElementID)
	assert.False(t, events[0].Removed)
	assert.ErrorIs(t, events[0].Cause, errUnavailable)
	mu.Unlock()

	// a second delete goes through
	require.NoError(t, s.DeleteElement(e.ID))
	require.NoError(t, s.Flush(ctx))
	_, ok = s.Element(e.ID)
	assert.False(t, ok)
	_, err = f.store.Elements().Get(ctx, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetBackground(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, s.SetBackground("not-a-color"), domain.ErrValidation)
	require.NoError(t, s.SetBackground("#fef3c7"))
	assert.Equal(t, "#fef3c7", s.Page().BackgroundColor)
	require.NoError(t, s.Flush(ctx))
	p, err := f.store.Pages().Get(ctx, f.page.ID)
	require.NoError(t, err)
	assert.Equal(t, "#fef3c7", p.BackgroundColor)

	f.be.pages.fail = true
	require.NoError(t, s.SetBackground("#dbeafe"))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, "#fef3c7", s.Page().BackgroundColor, "reconciled from store")
}

func TestUndoRedoGeometry(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)
	assert.False(t, s.CanUndo(), "creates are not undoable")

	require.NoError(t, s.ApplyMutation(e.ID, domain.Move(10, 20)))
	require.True(t, s.CanUndo())

	ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	local, _ := s.Element(e.ID)
	assert.Equal(t, 50.0, local.X)
	assert.Equal(t, 50.0, local.Y)
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 50.0, f.stored(t, e.ID).X)

	require.True(t, s.CanRedo())
	ok, err = s.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 10.0, f.stored(t, e.ID).X)
	assert.Equal(t, 20.0, f.stored(t, e.ID).Y)

	ok, err = s.Redo()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUndoRemovesAddedStyleKey(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindText, "Hi", domain.Style{domain.StyleColor: "#112233"})
	require.NoError(t, err)

	require.NoError(t, s.ApplyMutation(e.ID, domain.ElementPatch{Style: domain.Style{domain.StyleFontSize: 32}}))
	_, err = s.Undo()
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	got := f.stored(t, e.ID)
	_, has := got.Style[domain.StyleFontSize]
	assert.False(t, has)
	assert.Equal(t, "#112233", got.Style.Color())
}

func TestUndoSkipsDeletedElement(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMutation(e.ID, domain.Rotate(45)))
	require.NoError(t, s.DeleteElement(e.ID))
	assert.False(t, s.CanUndo())
}

func TestClosedSessionRejectsMutations(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)
	require.NoError(t, s.Apply(interact.Intent{ElementID: e.ID, Patch: domain.Move(5, 5)}))

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 5.0, f.stored(t, e.ID).X, "coalesced update flushed on close")

	assert.ErrorIs(t, s.ApplyMutation(e.ID, domain.Move(1, 1)), ErrClosed)
	_, err = s.AddElement(ctx, domain.KindImage, "b.jpg", nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Flush(ctx), ErrClosed)
}

func TestReloadPicksUpExternalChanges(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{})
	ctx := context.Background()
	_, err := f.store.Elements().Create(ctx, domain.NewElement{PageID: f.page.ID, Kind: domain.KindSticker, Content: "⛰️", ZIndex: 7})
	require.NoError(t, err)
	assert.Empty(t, s.Elements())
	require.NoError(t, s.Reload(ctx))
	require.Len(t, s.Elements(), 1)

	e, err := s.AddElement(ctx, domain.KindSticker, "🏖️", nil)
	require.NoError(t, err)
	assert.Equal(t, 8, e.ZIndex)
}

func TestSetCanvasSize(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{CanvasSize: vector.Size{W: 800, H: 600}})
	assert.Equal(t, vector.Size{W: 800, H: 600}, s.CanvasSize())
	assert.ErrorIs(t, s.SetCanvasSize(vector.Size{W: 0, H: 10}), domain.ErrValidation)
	require.NoError(t, s.SetCanvasSize(vector.Size{W: 1000, H: 500}))
	assert.Equal(t, vector.Size{W: 1000, H: 500}, s.CanvasSize())
}

func TestControllerDragThroughSession(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, Options{CanvasSize: vector.Size{W: 1000, H: 500}})
	ctx := context.Background()
	e, err := s.AddElement(ctx, domain.KindImage, "a.jpg", nil)
	require.NoError(t, err)

	c := interact.New(s, s, applog.Discard())
	require.NoError(t, c.PointerDown(interact.TargetBody, e.ID, interact.ButtonPrimary, vector.Pt{X: 100, Y: 100}))
	require.NoError(t, c.PointerMove(vector.Pt{X: 600, Y: 100}))
	require.NoError(t, c.PointerUp(vector.Pt{X: 1100, Y: 100}))
	require.NoError(t, s.Flush(ctx))

	got := f.stored(t, e.ID)
	assert.Equal(t, 100.0, got.X)
	assert.Equal(t, 50.0, got.Y)
	assert.Equal(t, 1, f.be.elems.updateCount())

	// resize the selected element by -200px
	require.NoError(t, c.PointerDown(interact.TargetResizeHandle, e.ID, interact.ButtonPrimary, vector.Pt{X: 500, Y: 500}))
	require.NoError(t, c.PointerUp(vector.Pt{X: 300, Y: 500}))
	require.NoError(t, c.Rotate(e.ID))
	require.NoError(t, s.Flush(ctx))
	got = f.stored(t, e.ID)
	assert.Equal(t, 20.0, got.Width)
	assert.Equal(t, 150.0, got.Height)
	assert.Equal(t, 15, got.Rotation)
}
