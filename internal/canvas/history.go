/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"encoding/json"
	"errors"

	"tripbook/internal/domain"
	"tripbook/internal/undo"
)

func encodeSnapshot(e domain.Element) ([]byte, error) { return json.Marshal(e) }

func decodeSnapshot(b []byte) (domain.Element, error) {
	var e domain.Element
	err := json.Unmarshal(b, &e)
	return e, err
}

// CanUndo reports whether a committed edit can be reverted.
func (s *Session) CanUndo() bool { return s.hist.CanUndo(s.pageID) }

// CanRedo reports whether a reverted edit can be reapplied.
func (s *Session) CanRedo() bool { return s.hist.CanRedo(s.pageID) }

// Undo reverts the newest committed element edit. It reports false when there is nothing to undo.
func (s *Session) Undo() (bool, error) {
	return s.step(s.hist.Undo)
}

// Redo reapplies the newest undone edit.
func (s *Session) Redo() (bool, error) {
	return s.step(s.hist.Redo)
}

func (s *Session) step(fn func(string, undo.RestoreFunc) (undo.Snapshot, bool, error)) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	s.commitAllLocked()
	s.mu.Unlock()

	snap, ok, err := fn(s.pageID, s.restore)
	if err != nil && errors.Is(err, domain.ErrNotFound) {
		s.hist.DropElement(s.pageID, snap.ElementID)
	}
	return ok, err
}

// restore puts an element back to a snapshot and returns the state it replaced.
func (s *Session) restore(snap undo.Snapshot) (undo.Snapshot, error) {
	target, err := decodeSnapshot(snap.Blob)
	if err != nil {
		return undo.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.elems[snap.ElementID]
	if !ok {
		return undo.Snapshot{}, domain.NotFound("element", snap.ElementID)
	}
	inverse, err := encodeSnapshot(cur)
	if err != nil {
		return undo.Snapshot{}, err
	}
	p := domain.RestorePatch(target, cur)
	s.elems[cur.ID] = p.Apply(cur)
	s.pending[cur.ID] = s.pending[cur.ID].Merge(p)
	s.enqueueUpdateLocked(cur.ID)
	return undo.Snapshot{PageID: s.pageID, ElementID: cur.ID, Blob: inverse, TS: s.now()}, nil
}
