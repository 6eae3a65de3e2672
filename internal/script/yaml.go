/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"goshoppable/internal/editor"
)

type yamlScript struct {
	Sections []yamlSection `yaml:"sections"`
	Steps    []yaml.Node   `yaml:"steps"`
}

type yamlSection struct {
	Title string      `yaml:"title"`
	Steps []yaml.Node `yaml:"steps"`
}

type yamlStep struct {
	Mode string    `yaml:"mode"`
	Down []float64 `yaml:"down"`
	Move []float64 `yaml:"move"`
	Up   []float64 `yaml:"up"`
	Key  string    `yaml:"key"`
	Meta *struct {
		Target   string `yaml:"target"`
		Selector string `yaml:"selector"`
	} `yaml:"meta"`
	// Do is undo, redo or delete.
	Do string `yaml:"do"`
}

// ParseYAML reads the YAML form of a script:
//
//	sections:
//	  - title: place sofa
//	    steps:
//	      - mode: hotspot
//	      - down: [0.5, 0.5]
//	      - up: [0.5, 0.5]
//	      - meta: {target: /products/sofa, selector: .sofa-card}
//	      - key: ctrl+z
//	      - do: redo
//
// A top-level steps list is accepted as a single "Untitled" section. Each
// step sets exactly one field.
func ParseYAML(data []byte) (Script, []Error) {
	var raw yamlScript
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Script{}, []Error{{Line: 1, Column: 1, Message: err.Error()}}
	}
	s := Script{Sections: []Section{}}
	var errs []Error
	if len(raw.Steps) > 0 {
		raw.Sections = append([]yamlSection{{Title: "Untitled", Steps: raw.Steps}}, raw.Sections...)
	}
	for _, sec := range raw.Sections {
		out := Section{Title: sec.Title}
		for i := range sec.Steps {
			n := &sec.Steps[i]
			st, err := decodeStep(n)
			if err != nil {
				errs = append(errs, Error{Line: n.Line, Column: n.Column, Message: err.Error()})
				continue
			}
			st.LineNo = n.Line
			out.Steps = append(out.Steps, st)
		}
		s.Sections = append(s.Sections, out)
	}
	return s, errs
}

func decodeStep(n *yaml.Node) (Step, error) {
	var ys yamlStep
	if err := n.Decode(&ys); err != nil {
		return Step{}, err
	}
	var steps []Step
	var errs []error
	point := func(op Op, v []float64) {
		if v == nil {
			return
		}
		if len(v) != 2 {
			errs = append(errs, fmt.Errorf("%s wants [x, y]", op))
			return
		}
		st := Step{Op: op}
		st.At.X, st.At.Y = v[0], v[1]
		steps = append(steps, st)
	}
	if ys.Mode != "" {
		m, err := editor.ParseMode(ys.Mode)
		if err != nil {
			errs = append(errs, err)
		}
		steps = append(steps, Step{Op: OpMode, Mode: m})
	}
	point(OpDown, ys.Down)
	point(OpMove, ys.Move)
	point(OpUp, ys.Up)
	if ys.Key != "" {
		k, err := ParseKey(ys.Key)
		if err != nil {
			errs = append(errs, err)
		}
		steps = append(steps, Step{Op: OpKey, Key: k})
	}
	if ys.Meta != nil {
		if ys.Meta.Target == "" {
			errs = append(errs, fmt.Errorf("meta needs a target"))
		}
		steps = append(steps, Step{Op: OpMeta, Target: ys.Meta.Target, Selector: ys.Meta.Selector})
	}
	if ys.Do != "" {
		switch strings.ToLower(ys.Do) {
		case "undo":
			steps = append(steps, Step{Op: OpUndo})
		case "redo":
			steps = append(steps, Step{Op: OpRedo})
		case "delete":
			steps = append(steps, Step{Op: OpDelete})
		default:
			errs = append(errs, fmt.Errorf("unknown action %q", ys.Do))
		}
	}
	if len(errs) > 0 {
		return Step{}, errs[0]
	}
	if len(steps) != 1 {
		return Step{}, fmt.Errorf("a step sets exactly one of mode, down, move, up, key, meta, do (got %d)", len(steps))
	}
	return steps[0], nil
}
