/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
	"log/slog"

	"goshoppable/internal/domain"
	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	applog "goshoppable/internal/log"
	"goshoppable/internal/session"
)

// ErrNoSelection is returned by a meta step with nothing selected.
var ErrNoSelection = errors.New("no shape selected")

// Result summarises a replay.
type Result struct {
	Steps    int
	Changed  int // steps after which the document differed
	Hotspots int
	Polygons int
}

// Run replays sc against s. Pointer steps are converted to pixels through
// the session's current layout so they take the same path as live input.
// Keys only reach s if it is attached to its shortcut bus.
func Run(s *session.Session, sc Script) (Result, error) {
	l := applog.WithComponent("script")
	var res Result
	for _, sec := range sc.Sections {
		l.Debug("section", slog.String("title", sec.Title), slog.Int("steps", len(sec.Steps)))
		for _, st := range sec.Steps {
			before := fingerprint(s)
			if err := apply(s, st); err != nil {
				return res, fmt.Errorf("line %d (%s): %w", st.LineNo, st.Op, err)
			}
			res.Steps++
			if fingerprint(s) != before {
				res.Changed++
			}
		}
	}
	if d := s.Doc.Document(); d != nil {
		res.Hotspots, res.Polygons = len(d.Hotspots), len(d.Polygons)
	}
	l.Info("replay finished", slog.Int("steps", res.Steps), slog.Int("changed", res.Changed))
	return res, nil
}

func apply(s *session.Session, st Step) error {
	px := func() geometry.Pt { return geometry.NormalizedToPointer(st.At, s.Origin(), s.Layout()) }
	switch st.Op {
	case OpMode:
		s.ChangeMode(st.Mode)
	case OpDown:
		s.PointerDown(px())
	case OpMove:
		s.PointerMove(px())
	case OpUp:
		s.PointerUp(px())
	case OpKey:
		s.HandleKey(st.Key)
	case OpMeta:
		sel := s.Machine.Selection()
		if sel == nil {
			return ErrNoSelection
		}
		if sel.Target.Kind == editor.HotspotShape {
			s.UpdateHotspot(sel.Target.ID, st.Target, st.Selector)
		} else {
			s.UpdatePolygon(sel.Target.ID, st.Target, st.Selector)
		}
	case OpUndo:
		s.Undo()
	case OpRedo:
		s.Redo()
	case OpDelete:
		s.DeleteSelection()
	default:
		return fmt.Errorf("unsupported step %d", st.Op)
	}
	return nil
}

// fingerprint is the serialized document, or "" when none is loaded.
func fingerprint(s *session.Session) string {
	d, ok := s.Doc.Snapshot()
	if !ok {
		return ""
	}
	b, err := domain.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}
