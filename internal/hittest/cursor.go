/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package hittest

import "goshoppable/internal/geometry"

// Cursor is a CSS-style cursor name shown as pointer feedback.
type Cursor string

const (
	CursorDefault  Cursor = "default"
	CursorGrab     Cursor = "grab"
	CursorGrabbing Cursor = "grabbing"
	CursorCopy     Cursor = "copy"
	CursorEW       Cursor = "ew-resize"
	CursorNS       Cursor = "ns-resize"
	CursorNESW     Cursor = "nesw-resize"
	CursorNWSE     Cursor = "nwse-resize"
)

// CursorFor maps an interaction to its hover cursor. For diagonal resizes the
// anchor decides the diagonal: a top-right or bottom-left anchor gives NE-SW.
func CursorFor(i Interaction, anchor geometry.Pt) Cursor {
	switch i {
	case ResizeX:
		return CursorEW
	case ResizeY:
		return CursorNS
	case ResizeBoth:
		if anchor.X != anchor.Y {
			return CursorNESW
		}
		return CursorNWSE
	default:
		return CursorGrab
	}
}

// DragCursor is the cursor while a grabbed shape is being dragged.
func DragCursor(i Interaction, anchor geometry.Pt) Cursor {
	if i == Default {
		return CursorGrabbing
	}
	return CursorFor(i, anchor)
}
