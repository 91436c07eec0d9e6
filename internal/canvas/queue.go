/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"sync"

	"tripbook/internal/domain"
)

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
	opPage
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create element"
	case opUpdate:
		return "update element"
	case opDelete:
		return "delete element"
	case opPage:
		return "update page"
	}
	return "barrier"
}

// op is one persistence request. Patches carry absolute values so a later op
// for the same element always supersedes an earlier one.
type op struct {
	kind   opKind
	id     string
	create domain.NewElement
	patch  domain.ElementPatch
	page   domain.PagePatch
	// done receives the outcome of create and barrier ops.
	done chan opResult
}

type opResult struct {
	elem domain.Element
	err  error
}

// opQueue is an unbounded FIFO drained by a single worker.
type opQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ops    []op
	closed bool
}

func newOpQueue() *opQueue {
	q := &opQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends o; it reports false once the queue is closed.
func (q *opQueue) push(o op) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.ops = append(q.ops, o)
	q.cond.Signal()
	return true
}

// pop blocks until an op is available. It returns false when the queue is closed and drained.
func (q *opQueue) pop() (op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.ops) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.ops) == 0 {
		return op{}, false
	}
	o := q.ops[0]
	q.ops[0] = op{}
	q.ops = q.ops[1:]
	return o, true
}

func (q *opQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
