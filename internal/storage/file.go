/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"goshoppable/internal/domain"
	"goshoppable/internal/host"
	applog "goshoppable/internal/log"
)

const (
	BackupsDirName = "backups"

	// DefaultMaxBackups bounds how many timestamped copies a File keeps.
	DefaultMaxBackups = 20

	backupStamp = "20060102-150405.000000000"
)

// ErrNoDocument is returned by File.Read when neither the file nor a backup
// exists. It matches host.ErrEmpty so a document manager treats it as a new field.
var ErrNoDocument = fmt.Errorf("%w: no document file", host.ErrEmpty)

// File is a host.Field persisted as a JSON file. Every write replaces the
// file transactionally and keeps a timestamped copy of the previous content
// in a backups folder next to it.
type File struct {
	Path       string
	MaxBackups int

	mu  sync.Mutex
	log *slog.Logger
}

var _ host.Field = (*File)(nil)

// OpenFile returns a File for path. The file need not exist yet.
func OpenFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	return &File{
		Path:       path,
		MaxBackups: DefaultMaxBackups,
		log:        applog.WithComponent("storage").With(slog.String("path", path)),
	}, nil
}

// InitFile creates a new document file at path. It fails if the file exists.
func InitFile(path string, d domain.Document) (*File, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("document %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	if err := f.Write(context.Background(), d); err != nil {
		return nil, err
	}
	return f, nil
}

// BackupDir is the folder holding the file's backups and crash snapshots.
func (f *File) BackupDir() string {
	return filepath.Join(filepath.Dir(f.Path), BackupsDirName)
}

// Read loads the document. If the file is missing or unreadable the latest
// backup is used instead.
func (f *File) Read(_ context.Context) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.Path)
	if err != nil {
		d, berr := f.latestBackup()
		if berr == nil {
			f.logger().Warn("document unreadable, using backup", slog.Any("err", err))
			return d, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, ErrNoDocument
		}
		return domain.Document{}, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	d, uerr := domain.Unmarshal(b)
	if uerr != nil {
		bd, berr := f.latestBackup()
		if berr != nil {
			return domain.Document{}, fmt.Errorf("parse document: %w; backup attempt: %v", uerr, berr)
		}
		f.logger().Warn("document corrupt, using backup", slog.Any("err", uerr))
		return bd, nil
	}
	return d, nil
}

// Write stores d with transactional semantics and a timestamped backup of
// the previous content (if any).
func (f *File) Write(_ context.Context, d domain.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := domain.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	bdir := f.BackupDir()
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(f.Path); statErr == nil {
		bpath := filepath.Join(bdir, f.backupName(time.Now()))
		if cerr := copyFile(f.Path, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	dir := filepath.Dir(f.Path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(f.Path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// Windows cannot rename over an existing file.
	if _, err := os.Stat(f.Path); err == nil {
		_ = os.Remove(f.Path)
	}
	if rerr := os.Rename(temp, f.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	if n, perr := f.pruneBackups(); perr != nil {
		f.logger().Warn("prune backups failed", slog.Any("err", perr))
	} else if n > 0 {
		f.logger().Debug("pruned backups", slog.Int("removed", n))
	}
	return nil
}

// Backups lists backup files oldest first.
func (f *File) Backups() ([]string, error) {
	ents, err := os.ReadDir(f.BackupDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(f.Path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(f.BackupDir(), name))
		}
	}
	// the timestamp in the name yields lexicographic order
	sort.Strings(out)
	return out, nil
}

// AutosaveCrashSnapshot writes d next to the backups without touching the
// document file itself. It returns the snapshot path.
func (f *File) AutosaveCrashSnapshot(d domain.Document) (string, error) {
	data, err := domain.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(f.BackupDir(), 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	name := fmt.Sprintf("%s.crash-%s.json", filepath.Base(f.Path), time.Now().Format(backupStamp))
	path := filepath.Join(f.BackupDir(), name)
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

func (f *File) backupName(ts time.Time) string {
	return fmt.Sprintf("%s.%s.bak", filepath.Base(f.Path), ts.Format(backupStamp))
}

func (f *File) pruneBackups() (int, error) {
	if f.MaxBackups <= 0 {
		return 0, nil
	}
	all, err := f.Backups()
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(all) > f.MaxBackups {
		if err := os.Remove(all[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		all = all[1:]
		removed++
	}
	return removed, nil
}

func (f *File) latestBackup() (domain.Document, error) {
	all, err := f.Backups()
	if err != nil {
		return domain.Document{}, err
	}
	if len(all) == 0 {
		return domain.Document{}, errors.New("no backups found")
	}
	latest := all[len(all)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read latest backup: %w", err)
	}
	d, err := domain.Unmarshal(b)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse latest backup: %w", err)
	}
	return d, nil
}

func (f *File) logger() *slog.Logger {
	if f.log == nil {
		f.log = applog.WithComponent("storage").With(slog.String("path", f.Path))
	}
	return f.log
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
