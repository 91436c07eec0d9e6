/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"errors"
	"log/slog"

	"tripbook/internal/domain"
)

// run drains the op queue in emission order until it is closed.
func (s *Session) run() {
	defer close(s.done)
	for {
		o, ok := s.q.pop()
		if !ok {
			return
		}
		s.exec(o)
	}
}

func (s *Session) exec(o op) {
	if err := s.ctx.Err(); err != nil {
		s.finish(o, opResult{err: err})
		return
	}
	switch o.kind {
	case opCreate:
		e, err := s.be.Elements().Create(s.ctx, o.create)
		if err != nil {
			err = domain.Persistence("create element", err)
			s.fail(o, err)
			s.finish(o, opResult{err: err})
			return
		}
		s.mu.Lock()
		s.elems[e.ID] = e
		s.mu.Unlock()
		s.log.Debug("element created", slog.String("element", e.ID), slog.Int("z", e.ZIndex))
		s.finish(o, opResult{elem: e.Clone()})

	case opUpdate:
		_, err := s.be.Elements().Update(s.ctx, o.id, o.patch)
		s.settle(o.id)
		if err != nil {
			s.fail(o, domain.Persistence("update element", err))
			s.reconcileElement(o.id, err, false)
		}

	case opDelete:
		err := s.be.Elements().Delete(s.ctx, o.id)
		s.settle(o.id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.fail(o, domain.Persistence("delete element", err))
			s.reconcileElement(o.id, err, true)
		}

	case opPage:
		if _, err := s.be.Pages().Update(s.ctx, s.pageID, o.page); err != nil {
			s.fail(o, domain.Persistence("update page", err))
			s.reconcilePage(err)
		}

	case opBarrier:
		s.finish(o, opResult{})
	}
}

func (s *Session) finish(o op, r opResult) {
	if o.done != nil {
		o.done <- r
	}
}

func (s *Session) settle(id string) {
	s.mu.Lock()
	if s.inflight[id]--; s.inflight[id] <= 0 {
		delete(s.inflight, id)
	}
	s.mu.Unlock()
}

func (s *Session) fail(o op, err error) {
	s.log.Error("persist failed", slog.String("op", o.kind.String()), slog.String("element", o.id), slog.Any("err", err))
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// reconcileElement replaces the optimistic element with the stored one.
// It stands down while newer writes for the element are queued or a gesture is running.
// With restore set the element was removed locally by the failed delete and is put back.
func (s *Session) reconcileElement(id string, cause error, restore bool) {
	if errors.Is(cause, domain.ErrNotFound) {
		s.removeLocal(id, cause)
		return
	}
	s.mu.Lock()
	_, gesture := s.before[id]
	busy := s.inflight[id] > 0 || gesture
	s.mu.Unlock()
	if busy {
		s.log.Debug("reconcile deferred to newer write", slog.String("element", id))
		return
	}

	e, err := s.be.Elements().Get(s.ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.removeLocal(id, cause)
	case err != nil:
		s.log.Error("reconcile read failed, keeping local state", slog.String("element", id), slog.Any("err", err))
	default:
		s.mu.Lock()
		_, gesture = s.before[id]
		if s.inflight[id] > 0 || gesture {
			s.mu.Unlock()
			return
		}
		if _, ok := s.elems[id]; !ok && !restore {
			// deleted locally while the read was in flight
			s.mu.Unlock()
			return
		}
		s.elems[e.ID] = e
		s.mu.Unlock()
		s.log.Info("element reconciled", slog.String("element", id))
		s.notify(ReconcileEvent{PageID: s.pageID, ElementID: id, Element: e.Clone(), Cause: cause})
	}
}

func (s *Session) removeLocal(id string, cause error) {
	s.mu.Lock()
	delete(s.elems, id)
	delete(s.pending, id)
	delete(s.before, id)
	delete(s.lastFlush, id)
	s.mu.Unlock()
	s.hist.DropElement(s.pageID, id)
	s.log.Info("element gone from store, removed locally", slog.String("element", id))
	s.notify(ReconcileEvent{PageID: s.pageID, ElementID: id, Removed: true, Cause: cause})
}

func (s *Session) reconcilePage(cause error) {
	p, err := s.be.Pages().Get(s.ctx, s.pageID)
	if err != nil {
		s.log.Error("reconcile page read failed, keeping local state", slog.Any("err", err))
		return
	}
	s.mu.Lock()
	s.page = p
	s.mu.Unlock()
	s.notify(ReconcileEvent{PageID: s.pageID, Page: p, Cause: cause})
}

func (s *Session) notify(ev ReconcileEvent) {
	if s.opts.OnReconcile != nil {
		s.opts.OnReconcile(ev)
	}
}
