/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// Snapshot is the state of one element before an edit.
// Blob content is opaque to the manager; size is estimated as len(Blob).
// TS is when the snapshot was captured.
type Snapshot struct {
	PageID    string
	ElementID string
	Blob      []byte
	TS        time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerPage limits number of snapshots per page kept in memory (0 means unlimited).
	MaxPerPage int
	// MinInterval coalesces snapshots of the same element captured within the interval.
	// The older snapshot is kept so one undo reverts the whole burst.
	MinInterval time.Duration
}

// RestoreFunc applies s and returns a snapshot of the state it replaced.
type RestoreFunc func(s Snapshot) (Snapshot, error)

// Manager provides an in-memory undo/redo stack per page with performance safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-page stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting covers both stacks
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	// Set conservative defaults if not provided
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024 // 4 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 500 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// PushSnapshot records the before-state of an edit. A snapshot of the same element
// within MinInterval of the previous one is dropped. Clears the redo stack for that page.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearRedoLocked(s.PageID)
	stack := m.undo[s.PageID]
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if last.ElementID == s.ElementID && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			// Coalesce: keep the older before-state, extend its window
			last.TS = s.TS
			stack[n-1] = last
			return
		}
	}
	m.undo[s.PageID] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.PageID)
}

// CanUndo reports whether the page has undoable edits.
func (m *Manager) CanUndo(pageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[pageID]) > 0
}

// CanRedo reports whether the page has redoable edits.
func (m *Manager) CanRedo(pageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[pageID]) > 0
}

// Undo pops the newest snapshot of the page and hands it to restore. The state
// restore replaced goes onto the redo stack. If restore fails, the snapshot stays.
func (m *Manager) Undo(pageID string, restore RestoreFunc) (Snapshot, bool, error) {
	return m.step(pageID, restore, m.undo, m.redo)
}

// Redo is the mirror of Undo.
func (m *Manager) Redo(pageID string, restore RestoreFunc) (Snapshot, bool, error) {
	return m.step(pageID, restore, m.redo, m.undo)
}

func (m *Manager) step(pageID string, restore RestoreFunc, from, to map[string][]Snapshot) (Snapshot, bool, error) {
	m.mu.Lock()
	stack := from[pageID]
	if len(stack) == 0 {
		m.mu.Unlock()
		return Snapshot{}, false, nil
	}
	s := stack[len(stack)-1]
	from[pageID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.mu.Unlock()

	inverse, err := restore(s)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		from[pageID] = append(from[pageID], s)
		m.totalBytes += len(s.Blob)
		return s, true, err
	}
	if inverse.PageID == "" {
		inverse.PageID = pageID
	}
	to[pageID] = append(to[pageID], inverse)
	m.totalBytes += len(inverse.Blob)
	m.enforceCapsLocked(pageID)
	return s, true, nil
}

// DropElement forgets every snapshot of an element, e.g. after it was deleted.
func (m *Manager) DropElement(pageID, elementID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo[pageID] = m.filterLocked(m.undo[pageID], elementID)
	m.redo[pageID] = m.filterLocked(m.redo[pageID], elementID)
	if len(m.undo[pageID]) == 0 {
		delete(m.undo, pageID)
	}
	if len(m.redo[pageID]) == 0 {
		delete(m.redo, pageID)
	}
}

func (m *Manager) filterLocked(stack []Snapshot, elementID string) []Snapshot {
	out := stack[:0]
	for _, s := range stack {
		if s.ElementID == elementID {
			m.totalBytes -= len(s.Blob)
			continue
		}
		out = append(out, s)
	}
	return out
}

// ClearPage clears undo/redo stacks for a page to free memory.
func (m *Manager) ClearPage(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[pageID] {
		m.totalBytes -= len(s.Blob)
	}
	m.clearRedoLocked(pageID)
	delete(m.undo, pageID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

func (m *Manager) clearRedoLocked(pageID string) {
	for _, s := range m.redo[pageID] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.redo, pageID)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, pages int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, pages, totalSnapshots
}

func (m *Manager) enforceCapsLocked(pageID string) {
	// Per-page depth cap
	if m.cfg.MaxPerPage > 0 {
		for _, stacks := range []map[string][]Snapshot{m.undo, m.redo} {
			stack := stacks[pageID]
			if len(stack) > m.cfg.MaxPerPage {
				// drop the oldest extras
				toDrop := len(stack) - m.cfg.MaxPerPage
				for i := 0; i < toDrop; i++ {
					m.totalBytes -= len(stack[i].Blob)
				}
				stacks[pageID] = append([]Snapshot{}, stack[toDrop:]...)
			}
		}
	}
	// Global memory cap: prune oldest undo entries across all pages
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestPage := ""
		oldestIdx := -1
		var oldestTS time.Time
		for page, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldestIdx == -1 || stack[0].TS.Before(oldestTS) {
				oldestPage = page
				oldestIdx = 0
				oldestTS = stack[0].TS
			}
		}
		if oldestIdx == -1 {
			break
		}
		stack := m.undo[oldestPage]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestPage] = stack[1:]
		if len(m.undo[oldestPage]) == 0 {
			delete(m.undo, oldestPage)
		}
	}
}
