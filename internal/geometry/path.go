/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"strconv"
	"strings"
)

// Path commands for drawing polygon outlines.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	Close
)

type PathCmd struct {
	Op PathOp
	P  Pt
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) { p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, P: Pt{X: x, Y: y}}) }
func (p *Path) LineTo(x, y float64) { p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, P: Pt{X: x, Y: y}}) }
func (p *Path) Close()              { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// PointsToPath builds a closed path visiting pts in order. The path keeps
// every point unchanged, so Points recovers the input.
func PointsToPath(pts []Pt) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
			continue
		}
		p.LineTo(pt.X, pt.Y)
	}
	if len(pts) > 0 {
		p.Close()
	}
	return p
}

// Points returns the vertices of the path in order.
func (p Path) Points() []Pt {
	out := make([]Pt, 0, len(p.Cmds))
	for _, c := range p.Cmds {
		if c.Op == MoveTo || c.Op == LineTo {
			out = append(out, c.P)
		}
	}
	return out
}

// Transform returns a copy of the path mapped through m.
func (p Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		if c.Op != Close {
			c.P = m.Apply(c.P)
		}
		out.Cmds[i] = c
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the path.
func (p Path) Bounds() Rect { return PolygonBounds(p.Points()) }

// SVGData renders the path as an SVG "d" attribute, scaled by (sx,sy).
func (p Path) SVGData(sx, sy float64) string {
	var b strings.Builder
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			b.WriteString("M")
		case LineTo:
			b.WriteString(" L")
		case Close:
			b.WriteString(" Z")
			continue
		}
		b.WriteString(fmtNum(c.P.X * sx))
		b.WriteByte(' ')
		b.WriteString(fmtNum(c.P.Y * sy))
	}
	return b.String()
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(FloatRound(v, 3), 'f', -1, 64)
}
