/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"log/slog"

	"goshoppable/internal/domain"
	applog "goshoppable/internal/log"
)

// Machine tracks the editing mode and current selection.
// It is driven from the UI event loop and is not safe for concurrent use.
type Machine struct {
	mode Mode
	sel  *Selection
	log  *slog.Logger

	// OnModeChange, when set, observes every resting mode transition.
	OnModeChange func(from, to Mode)
}

// NewMachine returns a machine in Initial with no selection.
func NewMachine() *Machine {
	return &Machine{mode: Initial, log: applog.WithComponent("editor")}
}

func (m *Machine) Mode() Mode { return m.mode }

// Selection returns the current selection, or nil.
func (m *Machine) Selection() *Selection { return m.sel }

// SelectedPolygonID returns the id of the selected polygon, or "".
func (m *Machine) SelectedPolygonID() string {
	if m.sel != nil && m.sel.Target.Kind == PolygonShape {
		return m.sel.Target.ID
	}
	return ""
}

// ChangeMode switches tool and always drops the selection. Command modes
// are not resting states; callers run the command and then land in the
// mode the command leads to.
func (m *Machine) ChangeMode(to Mode) {
	from := m.mode
	m.sel = nil
	if to.Command() {
		to = Initial
	}
	m.mode = to
	if from != to {
		m.log.Debug("mode change", slog.String("from", from.String()), slog.String("to", to.String()))
		if m.OnModeChange != nil {
			m.OnModeChange(from, to)
		}
	}
}

// Select installs s as the selection. In FocalPoint mode the machine routes
// to the tool matching the selected shape: Hotspot for hotspots, FreeGrab
// for polygons.
func (m *Machine) Select(s Selection) {
	if m.mode == FocalPoint {
		switch s.Target.Kind {
		case HotspotShape:
			m.ChangeMode(Hotspot)
		case PolygonShape:
			m.ChangeMode(FreeGrab)
		}
	}
	sel := s
	m.sel = &sel
}

// Deselect clears the selection.
func (m *Machine) Deselect() { m.sel = nil }

// Resolve re-validates the selection against a fresh document. A target
// whose id disappeared is dropped; otherwise the selection is kept, since
// targets resolve by id on each use.
func (m *Machine) Resolve(d *domain.Document) {
	if m.sel == nil {
		return
	}
	if d == nil || !m.sel.Target.Exists(d) {
		m.log.Debug("selection dropped", slog.String("kind", m.sel.Target.Kind.String()), slog.String("id", m.sel.Target.ID))
		m.sel = nil
	}
}
