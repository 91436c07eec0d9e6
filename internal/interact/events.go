/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import (
	"fmt"

	"tripbook/internal/vector"
)

// EventType enumerates the input events a host surface forwards.
type EventType string

const (
	EvPointerDown EventType = "pointerdown"
	EvPointerMove EventType = "pointermove"
	EvPointerUp   EventType = "pointerup"
	EvDoubleClick EventType = "dblclick"
	EvKeyDown     EventType = "keydown"
)

// Event is a host input event in canvas pixel coordinates.
type Event struct {
	Type    EventType `json:"type"`
	Target  Target    `json:"target,omitempty"`
	Element string    `json:"element,omitempty"`
	Button  Button    `json:"button,omitempty"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Key     string    `json:"key,omitempty"`
}

// Point returns the event position.
func (e Event) Point() vector.Pt { return vector.Pt{X: e.X, Y: e.Y} }

// Handle dispatches ev to the matching controller method.
func (c *Controller) Handle(ev Event) error {
	switch ev.Type {
	case EvPointerDown:
		return c.PointerDown(ev.Target, ev.Element, ev.Button, ev.Point())
	case EvPointerMove:
		return c.PointerMove(ev.Point())
	case EvPointerUp:
		return c.PointerUp(ev.Point())
	case EvDoubleClick:
		return c.DoubleClick(ev.Element)
	case EvKeyDown:
		return c.KeyDown(ev.Key)
	}
	return fmt.Errorf("interact: unknown event type %q", ev.Type)
}
