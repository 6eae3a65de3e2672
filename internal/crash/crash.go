/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics in CLI and UI entrypoints into a report file and
// a best-effort autosave of the open document.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"goshoppable/internal/domain"
	applog "goshoppable/internal/log"
	"goshoppable/internal/storage"
	"goshoppable/internal/telemetry"
	"goshoppable/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// reportDirFn resolves the fallback report directory; tests replace it.
var reportDirFn = defaultReportDir

// Snapshot returns the document to autosave, or false when none is open.
// document.Manager.Snapshot has this shape.
type Snapshot func() (domain.Document, bool)

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe autosave
// of the current document next to the file's backups (if both are provided).
//
// Usage: defer crash.Recover(file, mgr.Snapshot)
func Recover(f *storage.File, snap Snapshot) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(f, r, stack)
		if err != nil {
			l.Error("crash report not written", slog.Any("err", err))
		}
		autosave(l, f, snap)

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

func autosave(l *slog.Logger, f *storage.File, snap Snapshot) {
	if f == nil || snap == nil {
		return
	}
	// the snapshot itself may be what panicked
	defer func() {
		if r := recover(); r != nil {
			l.Error("autosave crash snapshot panicked", slog.Any("panic", r))
		}
	}()
	d, ok := snap()
	if !ok {
		return
	}
	if path, err := f.AutosaveCrashSnapshot(d); err != nil {
		l.Error("autosave crash snapshot failed", slog.Any("err", err))
	} else {
		l.Info("autosave crash snapshot written", slog.String("path", path))
	}
}

func defaultReportDir() string {
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, "goshoppable", "crash")
	}
	return os.TempDir()
}

func writeReport(f *storage.File, panicVal any, stack []byte) (string, error) {
	dir := reportDirFn()
	if f != nil && f.Path != "" {
		dir = f.BackupDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = os.TempDir()
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "goshoppable Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if f != nil {
		_, _ = fmt.Fprintf(&buf, "Document: %s\n", f.Path)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := out.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := out.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = out.Sync()

	// optionally upload the crash report (opt-in via env)
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
