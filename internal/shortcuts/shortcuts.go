/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package shortcuts routes keyboard input to the active editor. A single bus
// serves the whole process; registering a new editor replaces the previous
// handlers so only one editor responds at a time.
package shortcuts

import (
	"strings"
	"sync"
)

// Key is a keyboard event as seen by the bus.
type Key struct {
	Code  string // e.g. "z", "y", "Backspace", "Delete"
	Ctrl  bool
	Meta  bool
	Shift bool
	// InputFocused is set while a text input has focus; such events are ignored.
	InputFocused bool
}

// Action is what a key resolved to.
type Action int

const (
	NoAction Action = iota
	Undo
	Redo
	Delete
)

// Resolve maps a key to an action. Ctrl and Meta are interchangeable.
func Resolve(k Key) Action {
	if k.InputFocused {
		return NoAction
	}
	code := strings.ToLower(k.Code)
	if k.Ctrl || k.Meta {
		switch {
		case code == "z" && k.Shift:
			return Redo
		case code == "z":
			return Undo
		case code == "y":
			return Redo
		}
		return NoAction
	}
	switch code {
	case "backspace", "delete":
		return Delete
	}
	return NoAction
}

// Bus dispatches resolved actions to the registered handlers.
type Bus struct {
	mu       sync.Mutex
	undo     func()
	redo     func()
	del      func()
	undoGen  uint64
	delGen   uint64
	disabled bool
}

var (
	defaultBus  *Bus
	defaultOnce sync.Once
)

// Default returns the process-wide bus.
func Default() *Bus {
	defaultOnce.Do(func() { defaultBus = &Bus{} })
	return defaultBus
}

// RegisterUndoRedo installs undo/redo handlers. The returned func removes
// them unless another editor registered since.
func (b *Bus) RegisterUndoRedo(undo, redo func()) (unregister func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.undo, b.redo = undo, redo
	b.undoGen++
	gen := b.undoGen
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.undoGen == gen {
			b.undo, b.redo = nil, nil
		}
	}
}

// RegisterDelete installs the delete handler.
func (b *Bus) RegisterDelete(del func()) (unregister func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.del = del
	b.delGen++
	gen := b.delGen
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.delGen == gen {
			b.del = nil
		}
	}
}

// SetEnabled turns dispatch on or off, e.g. while a modal dialog is open.
func (b *Bus) SetEnabled(on bool) {
	b.mu.Lock()
	b.disabled = !on
	b.mu.Unlock()
}

// Dispatch runs the handler for k and reports whether one ran.
func (b *Bus) Dispatch(k Key) bool {
	b.mu.Lock()
	if b.disabled {
		b.mu.Unlock()
		return false
	}
	var fn func()
	switch Resolve(k) {
	case Undo:
		fn = b.undo
	case Redo:
		fn = b.redo
	case Delete:
		fn = b.del
	}
	b.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
