/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script parses and replays editor gesture scripts: mode changes,
// pointer presses and drags in image space, shortcut keys and metadata edits.
package script

import (
	"fmt"

	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/shortcuts"
)

// Script is a parsed gesture script, split into titled sections.
type Script struct {
	Sections []Section
}

type Section struct {
	Title string
	Steps []Step
}

// Op is the kind of a step.
type Op int

const (
	OpUnknown Op = iota
	OpMode
	OpDown
	OpMove
	OpUp
	OpKey
	OpMeta
	OpUndo
	OpRedo
	OpDelete
)

var opNames = map[Op]string{
	OpMode:   "mode",
	OpDown:   "down",
	OpMove:   "move",
	OpUp:     "up",
	OpKey:    "key",
	OpMeta:   "meta",
	OpUndo:   "undo",
	OpRedo:   "redo",
	OpDelete: "delete",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// Step is one replayed event. At is in normalized image coordinates.
type Step struct {
	Op       Op
	Mode     editor.Mode
	At       geometry.Pt
	Key      shortcuts.Key
	Target   string
	Selector string
	LineNo   int // 1-based line in the source
}

// Steps flattens all sections.
func (s Script) Steps() []Step {
	var out []Step
	for _, sec := range s.Sections {
		out = append(out, sec.Steps...)
	}
	return out
}

// Error is a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message) }
