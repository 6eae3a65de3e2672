/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"goshoppable/internal/detect"
	"goshoppable/internal/domain"
	"goshoppable/internal/host"
	applog "goshoppable/internal/log"
)

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(field, ts, hotspots, polygons, doc) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestRevisionSQL = `SELECT id, ts, hotspots, polygons, doc FROM revisions WHERE field = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectRevisionSQL = `SELECT id, ts, hotspots, polygons, doc FROM revisions WHERE id = ?`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, ts, hotspots, polygons, doc FROM revisions WHERE field = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE field = ? AND id NOT IN (
	SELECT id FROM revisions WHERE field = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const upsertCandidatesSQL = `INSERT INTO candidates(image_url, updated_at, data) VALUES (?, ?, ?)
	ON CONFLICT(image_url) DO UPDATE SET updated_at = excluded.updated_at, data = excluded.data`

// language=SQL
// dialect=SQLite
const selectCandidatesSQL = `SELECT data FROM candidates WHERE image_url = ?`

// tsLayout is fixed width so timestamps order lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Revision is one committed document in the log.
type Revision struct {
	ID       int64
	Field    string
	At       time.Time
	Hotspots int
	Polygons int
	Document domain.Document
}

// RevisionLog records committed documents per field.
type RevisionLog interface {
	AppendRevision(ctx context.Context, field string, d domain.Document, ts time.Time) (int64, error)
	LatestRevision(ctx context.Context, field string) (Revision, bool, error)
	ListRevisions(ctx context.Context, field string, limit int) ([]Revision, error)
	PruneRevisions(ctx context.Context, field string, keep int) (int64, error)
}

var (
	_ RevisionLog  = (*Index)(nil)
	_ detect.Cache = (*Index)(nil)
)

// AppendRevision stores d under field and returns the new revision id.
func (ix *Index) AppendRevision(ctx context.Context, field string, d domain.Document, ts time.Time) (int64, error) {
	blob, err := json.Marshal(d)
	if err != nil {
		return 0, fmt.Errorf("marshal revision: %w", err)
	}
	res, err := ix.db.ExecContext(ctx, insertRevisionSQL, field, ts.UTC().Format(tsLayout), len(d.Hotspots), len(d.Polygons), blob)
	if err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	return res.LastInsertId()
}

// LatestRevision returns the newest revision of field.
func (ix *Index) LatestRevision(ctx context.Context, field string) (Revision, bool, error) {
	r, err := scanRevision(ix.db.QueryRowContext(ctx, selectLatestRevisionSQL, field))
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, false, nil
	}
	if err != nil {
		return Revision{}, false, err
	}
	r.Field = field
	return r, true, nil
}

// Revision returns the revision with id.
func (ix *Index) Revision(ctx context.Context, id int64) (Revision, error) {
	r, err := scanRevision(ix.db.QueryRowContext(ctx, selectRevisionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, fmt.Errorf("revision %d: %w", id, ErrNoDocument)
	}
	return r, err
}

// ListRevisions returns up to limit revisions of field, newest first.
func (ix *Index) ListRevisions(ctx context.Context, field string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx, listRevisionsSQL, field, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		r.Field = field
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRevisions keeps only the newest keep revisions of field and returns
// how many were removed.
func (ix *Index) PruneRevisions(ctx context.Context, field string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := ix.db.ExecContext(ctx, pruneRevisionsSQL, field, field, keep)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(s rowScanner) (Revision, error) {
	var (
		r    Revision
		ts   string
		blob []byte
	)
	if err := s.Scan(&r.ID, &ts, &r.Hotspots, &r.Polygons, &blob); err != nil {
		return Revision{}, err
	}
	if t, err := time.Parse(tsLayout, ts); err == nil {
		r.At = t
	}
	d, err := domain.Unmarshal(blob)
	if err != nil {
		return Revision{}, fmt.Errorf("revision %d: %w", r.ID, err)
	}
	r.Document = d
	return r, nil
}

// LoadCandidates returns the cached detection batch for imageURL.
func (ix *Index) LoadCandidates(ctx context.Context, imageURL string) ([]detect.Candidate, bool, error) {
	var blob []byte
	err := ix.db.QueryRowContext(ctx, selectCandidatesSQL, imageURL).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load candidates: %w", err)
	}
	var cs []detect.Candidate
	if err := json.Unmarshal(blob, &cs); err != nil {
		return nil, false, fmt.Errorf("decode candidates: %w", err)
	}
	return cs, true, nil
}

// SaveCandidates replaces the cached batch for imageURL.
func (ix *Index) SaveCandidates(ctx context.Context, imageURL string, cs []detect.Candidate) error {
	if cs == nil {
		cs = []detect.Candidate{}
	}
	blob, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	if _, err := ix.db.ExecContext(ctx, upsertCandidatesSQL, imageURL, time.Now().UTC().Format(tsLayout), blob); err != nil {
		return fmt.Errorf("save candidates: %w", err)
	}
	return nil
}

// LoggedField wraps a field and appends every successful write to a
// revision log. Log failures are reported but do not fail the write.
type LoggedField struct {
	Next  host.Field
	Log   RevisionLog
	Name  string
	Clock func() time.Time
}

var _ host.Field = (*LoggedField)(nil)

func (f *LoggedField) Read(ctx context.Context) (domain.Document, error) { return f.Next.Read(ctx) }

func (f *LoggedField) Write(ctx context.Context, d domain.Document) error {
	if err := f.Next.Write(ctx, d); err != nil {
		return err
	}
	now := time.Now
	if f.Clock != nil {
		now = f.Clock
	}
	if _, err := f.Log.AppendRevision(ctx, f.Name, d, now()); err != nil {
		applog.WithComponent("storage").Warn("append revision failed", slog.String("field", f.Name), slog.Any("err", err))
	}
	return nil
}

// SQLiteField stores a field directly in the index: the latest revision is
// the field's value.
type SQLiteField struct {
	Index *Index
	Name  string
}

var _ host.Field = (*SQLiteField)(nil)

func (f *SQLiteField) Read(ctx context.Context) (domain.Document, error) {
	r, ok, err := f.Index.LatestRevision(ctx, f.Name)
	if err != nil {
		return domain.Document{}, err
	}
	if !ok {
		return domain.Document{}, ErrNoDocument
	}
	return r.Document, nil
}

func (f *SQLiteField) Write(ctx context.Context, d domain.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	_, err := f.Index.AppendRevision(ctx, f.Name, d, time.Now())
	return err
}
