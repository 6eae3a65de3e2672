/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"strings"

	"goshoppable/internal/editor"
	"goshoppable/internal/hittest"
	"goshoppable/internal/shortcuts"
)

// KeyFromName converts a toolkit key name ("Z", "BackSpace", "Delete") and
// modifier state into a shortcut bus key.
func KeyFromName(name string, ctrl, meta, shift, inputFocused bool) shortcuts.Key {
	code := name
	switch strings.ToLower(name) {
	case "backspace":
		code = "Backspace"
	case "delete":
		code = "Delete"
	default:
		if len(name) == 1 {
			code = strings.ToLower(name)
		}
	}
	return shortcuts.Key{Code: code, Ctrl: ctrl, Meta: meta, Shift: shift, InputFocused: inputFocused}
}

// ToolModes lists the tools shown in the toolbar, in order.
var ToolModes = []editor.Mode{
	editor.FocalPoint,
	editor.Hotspot,
	editor.FreeGrab,
	editor.PolygonRect,
	editor.PolygonCircle,
}

// ToolLabel is the toolbar caption for m.
func ToolLabel(m editor.Mode) string {
	switch m {
	case editor.FocalPoint:
		return "Focal point"
	case editor.Hotspot:
		return "Hotspot"
	case editor.FreeGrab:
		return "Select"
	case editor.PolygonRect:
		return "Rectangle"
	case editor.PolygonCircle:
		return "Circle"
	case editor.Swap:
		return "Swap image"
	case editor.Delete:
		return "Delete image"
	}
	return "Start"
}

// CursorShape is the toolkit-independent cursor family for c.
type CursorShape int

const (
	ShapeDefault CursorShape = iota
	ShapePointer
	ShapeCrosshair
	ShapeHResize
	ShapeVResize
)

// CursorShapeFor folds the CSS-style cursor into the handful of system
// cursors desktop toolkits offer. Diagonal resizes fall back to a crosshair.
func CursorShapeFor(c hittest.Cursor) CursorShape {
	switch c {
	case hittest.CursorGrab, hittest.CursorGrabbing:
		return ShapePointer
	case hittest.CursorCopy, hittest.CursorNESW, hittest.CursorNWSE:
		return ShapeCrosshair
	case hittest.CursorEW:
		return ShapeHResize
	case hittest.CursorNS:
		return ShapeVResize
	}
	return ShapeDefault
}
