/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"sync"
)

// ReadyState is the lifecycle of a readiness gate.
type ReadyState int

const (
	Unloaded ReadyState = iota
	Loading
	Ready
	Failed
)

func (s ReadyState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unloaded"
}

// Gate is resolved once, either to Ready or to Failed. Waiters block on a
// channel instead of polling.
type Gate struct {
	mu    sync.Mutex
	state ReadyState
	err   error
	done  chan struct{}
}

// NewGate returns an unloaded gate.
func NewGate() *Gate { return &Gate{done: make(chan struct{})} }

// Start moves an unloaded gate to Loading.
func (g *Gate) Start() {
	g.mu.Lock()
	if g.state == Unloaded {
		g.state = Loading
	}
	g.mu.Unlock()
}

// Resolve settles the gate; a nil err means Ready. Later calls are ignored.
func (g *Gate) Resolve(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Ready || g.state == Failed {
		return
	}
	if err != nil {
		g.state, g.err = Failed, err
	} else {
		g.state = Ready
	}
	close(g.done)
}

// State returns the current state.
func (g *Gate) State() ReadyState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Wait blocks until the gate resolves or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
