/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/shortcuts"
)

var (
	reSection = regexp.MustCompile(`^(#+)\s*(.*)$`)
	reCommand = regexp.MustCompile(`^([A-Za-z]+)\s*(.*)$`)
)

// Parse parses the line form of a script:
//
//	# section title
//	mode hotspot
//	down 0.5 0.5
//	move 0.6 0.5
//	up 0.6 0.5
//	meta /products/sofa .sofa-card
//	key ctrl+shift+z
//	undo | redo | delete
//
// Lines starting with ';' are comments. Steps before the first heading go
// into an "Untitled" section. Bad lines are reported and skipped.
func Parse(input string) (Script, []Error) {
	s := Script{Sections: []Section{}}
	var errs []Error

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	current := Section{}

	flush := func() {
		if strings.TrimSpace(current.Title) != "" || len(current.Steps) > 0 {
			s.Sections = append(s.Sections, current)
		}
	}

	for scanner.Scan() {
		lineNo++
		trim := strings.TrimSpace(scanner.Text())
		if trim == "" || strings.HasPrefix(trim, ";") {
			continue
		}
		if m := reSection.FindStringSubmatch(trim); m != nil {
			flush()
			current = Section{Title: strings.TrimSpace(m[2])}
			continue
		}
		m := reCommand.FindStringSubmatch(trim)
		if m == nil {
			errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("cannot parse %q", trim)})
			continue
		}
		st, err := parseStep(strings.ToLower(m[1]), strings.TrimSpace(m[2]))
		if err != nil {
			errs = append(errs, Error{Line: lineNo, Column: len(m[1]) + 2, Message: err.Error()})
			continue
		}
		st.LineNo = lineNo
		if current.Title == "" && len(current.Steps) == 0 && len(s.Sections) == 0 {
			current.Title = "Untitled"
		}
		current.Steps = append(current.Steps, st)
	}
	flush()

	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return s, errs
}

func parseStep(cmd, rest string) (Step, error) {
	switch cmd {
	case "mode":
		m, err := editor.ParseMode(rest)
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpMode, Mode: m}, nil
	case "down", "move", "up":
		p, err := parsePoint(strings.Fields(rest))
		if err != nil {
			return Step{}, err
		}
		op := map[string]Op{"down": OpDown, "move": OpMove, "up": OpUp}[cmd]
		return Step{Op: op, At: p}, nil
	case "key":
		k, err := ParseKey(rest)
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpKey, Key: k}, nil
	case "meta":
		target, selector, _ := strings.Cut(rest, " ")
		if target == "" {
			return Step{}, fmt.Errorf("meta needs a target")
		}
		return Step{Op: OpMeta, Target: target, Selector: strings.TrimSpace(selector)}, nil
	case "undo":
		return Step{Op: OpUndo}, nil
	case "redo":
		return Step{Op: OpRedo}, nil
	case "delete":
		return Step{Op: OpDelete}, nil
	}
	return Step{}, fmt.Errorf("unknown command %q", cmd)
}

func parsePoint(f []string) (geometry.Pt, error) {
	if len(f) != 2 {
		return geometry.Pt{}, fmt.Errorf("want x y, got %d values", len(f))
	}
	x, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return geometry.Pt{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return geometry.Pt{}, fmt.Errorf("y: %w", err)
	}
	return geometry.Pt{X: x, Y: y}, nil
}

// ParseKey reads chords like "ctrl+z", "meta+shift+z" or "backspace".
func ParseKey(s string) (shortcuts.Key, error) {
	var k shortcuts.Key
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == len(parts)-1 {
			switch p {
			case "":
				return k, fmt.Errorf("empty key in %q", s)
			case "backspace":
				k.Code = "Backspace"
			case "delete", "del":
				k.Code = "Delete"
			default:
				k.Code = p
			}
			continue
		}
		switch p {
		case "ctrl", "control":
			k.Ctrl = true
		case "cmd", "meta":
			k.Meta = true
		case "shift":
			k.Shift = true
		default:
			return k, fmt.Errorf("unknown modifier %q", p)
		}
	}
	return k, nil
}
