/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui hosts the desktop editor. The fyne window is compiled only with
// -tags fyne; scene projection and key mapping are toolkit independent.
package ui

import (
	"goshoppable/internal/session"
	"goshoppable/internal/storage"
)

// Options configures Run.
type Options struct {
	// Session is opened by the caller and closed by Run.
	Session *session.Session
	Title   string
	// CrashFile receives an autosave if the UI panics; may be nil.
	CrashFile *storage.File
	// Theme is "light", "dark" or "system".
	Theme string
}
