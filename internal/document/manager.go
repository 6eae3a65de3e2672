/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package document owns the canonical metadata document. Every change goes
// through Manager, which records undo history, persists to the host field and
// notifies subscribers.
//
// Mutations follow one rule: call BeginChange once per user action before the
// first edit, then Commit after each edit. A drag therefore produces many
// commits but a single undo step. All mutators are no-ops until a document is
// loaded.
package document

import (
	"context"
	"errors"
	"log/slog"

	"goshoppable/internal/domain"
	"goshoppable/internal/history"
	"goshoppable/internal/host"
	applog "goshoppable/internal/log"
)

// Manager is driven from the UI event loop and is not safe for concurrent use.
type Manager struct {
	doc   *domain.Document
	hist  *history.Manager
	field host.Field
	ctx   context.Context
	log   *slog.Logger

	subs []func(*domain.Document)
}

// New returns a manager persisting to field. A nil hist gets default caps.
func New(field host.Field, hist *history.Manager) *Manager {
	if hist == nil {
		hist = history.NewManager(history.Config{})
	}
	return &Manager{hist: hist, field: field, ctx: context.Background(), log: applog.WithComponent("document")}
}

// Load reads the document from the field. An empty field yields an empty document.
func (m *Manager) Load(ctx context.Context) error {
	m.ctx = ctx
	if m.field == nil {
		m.setDoc(domain.New(nil))
		return nil
	}
	d, err := m.field.Read(ctx)
	if errors.Is(err, host.ErrEmpty) {
		d, err = domain.New(nil), nil
	}
	if err != nil {
		return err
	}
	m.setDoc(d)
	m.log.InfoContext(ctx, "document loaded", slog.Int("hotspots", len(d.Hotspots)), slog.Int("polygons", len(d.Polygons)))
	return nil
}

// Replace installs a document pushed by the host. History is untouched and
// nothing is written back.
func (m *Manager) Replace(d domain.Document) {
	m.setDoc(d)
}

func (m *Manager) setDoc(d domain.Document) {
	c := d.Clone()
	m.doc = &c
	m.notify()
}

// Loaded reports whether a document is available.
func (m *Manager) Loaded() bool { return m.doc != nil }

// Document returns the live document for reading, or nil before Load.
// Callers must not modify it; use Mutate.
func (m *Manager) Document() *domain.Document { return m.doc }

// Snapshot returns a deep copy of the current document.
func (m *Manager) Snapshot() (domain.Document, bool) {
	if m.doc == nil {
		return domain.Document{}, false
	}
	return m.doc.Clone(), true
}

// Subscribe registers fn to run after every document change.
func (m *Manager) Subscribe(fn func(*domain.Document)) { m.subs = append(m.subs, fn) }

func (m *Manager) notify() {
	for _, fn := range m.subs {
		fn(m.doc)
	}
}

// BeginChange records the current document as an undo step and clears redo.
func (m *Manager) BeginChange() bool {
	if m.doc == nil {
		return false
	}
	s, err := history.Capture(*m.doc)
	if err != nil {
		m.log.Warn("undo snapshot skipped", slog.Any("err", err))
		return false
	}
	m.hist.Push(s)
	return true
}

// Commit persists the current document and notifies subscribers.
func (m *Manager) Commit() {
	if m.doc == nil {
		return
	}
	m.persist()
	m.notify()
}

// CommitDocument replaces the canonical document with d and persists it.
func (m *Manager) CommitDocument(d domain.Document) {
	c := d.Clone()
	m.doc = &c
	m.persist()
	m.notify()
}

// Mutate runs fn on the live document. With record set, an undo step is
// taken first. fn reports whether it changed anything; only then is the
// result committed. A recorded step is kept even if fn changes nothing.
func (m *Manager) Mutate(record bool, fn func(d *domain.Document) bool) bool {
	if m.doc == nil {
		return false
	}
	if record {
		m.BeginChange()
	}
	if !fn(m.doc) {
		return false
	}
	m.Commit()
	return true
}

func (m *Manager) persist() {
	if m.field == nil {
		return
	}
	if err := m.field.Write(m.ctx, m.doc.Clone()); err != nil {
		m.log.WarnContext(m.ctx, "persist failed", slog.Any("err", err))
	}
}

// Undo restores the previous undo step. It reports false on an empty stack.
func (m *Manager) Undo() bool { return m.step(m.hist.Undo, "undo") }

// Redo re-applies the last undone step. It reports false on an empty stack.
func (m *Manager) Redo() bool { return m.step(m.hist.Redo, "redo") }

func (m *Manager) step(pop func(history.Snapshot) (history.Snapshot, bool), op string) bool {
	if m.doc == nil {
		return false
	}
	cur, err := history.Capture(*m.doc)
	if err != nil {
		m.log.Warn(op+" skipped", slog.Any("err", err))
		return false
	}
	s, ok := pop(cur)
	if !ok {
		return false
	}
	d, err := s.Document()
	if err != nil {
		m.log.Error(op+" restore failed", slog.Any("err", err))
		return false
	}
	m.doc = &d
	m.log.Debug(op)
	m.persist()
	m.notify()
	return true
}

// ClearHistory empties both stacks.
func (m *Manager) ClearHistory() { m.hist.Clear() }

func (m *Manager) CanUndo() bool { return m.hist.CanUndo() }
func (m *Manager) CanRedo() bool { return m.hist.CanRedo() }

// History exposes the underlying stacks for diagnostics.
func (m *Manager) History() *history.Manager { return m.hist }
