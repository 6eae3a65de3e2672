/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"goshoppable/internal/domain"
	applog "goshoppable/internal/log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dialect=PostgreSQL
const (
	selectFieldSQL = `SELECT version, updated_at, doc FROM fields WHERE id = $1`
	upsertFieldSQL = `INSERT INTO fields (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, version = fields.version + 1, updated_at = now()
		RETURNING version, updated_at`
	deleteFieldSQL = `DELETE FROM fields WHERE id = $1`
	listFieldsSQL  = `SELECT id, version, updated_at,
		COALESCE(jsonb_array_length(doc->'hotspots'), 0),
		COALESCE(jsonb_array_length(doc->'polygons'), 0)
		FROM fields ORDER BY updated_at DESC, id`
)

// PGStore is a Store on a Postgres table fields(id, doc, version, updated_at).
type PGStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*PGStore)(nil)

// OpenPG connects through the pgx stdlib driver, pings and applies the
// embedded migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{db: db, log: applog.WithComponent("backend")}, nil
}

// Close releases the pool.
func (s *PGStore) Close() error { return s.db.Close() }

// Ping reports database reachability.
func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGStore) Get(ctx context.Context, id string) (Record, error) {
	var (
		r   = Record{ID: id}
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, selectFieldSQL, id).Scan(&r.Version, &r.UpdatedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("select field: %w", err)
	}
	d, err := domain.Unmarshal(raw)
	if err != nil {
		return Record{}, err
	}
	r.Document = d
	return r, nil
}

func (s *PGStore) Put(ctx context.Context, id string, d domain.Document) (Record, error) {
	if err := d.Validate(); err != nil {
		return Record{}, err
	}
	raw, err := domain.Marshal(d)
	if err != nil {
		return Record{}, fmt.Errorf("marshal document: %w", err)
	}
	r := Record{ID: id, Document: d}
	if err := s.db.QueryRowContext(ctx, upsertFieldSQL, id, string(raw)).Scan(&r.Version, &r.UpdatedAt); err != nil {
		return Record{}, fmt.Errorf("upsert field: %w", err)
	}
	s.log.Debug("field stored", slog.String("field", id), slog.Int64("version", r.Version))
	return r, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteFieldSQL, id)
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]FieldInfo, error) {
	rows, err := s.db.QueryContext(ctx, listFieldsSQL)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []FieldInfo
	for rows.Next() {
		var fi FieldInfo
		if err := rows.Scan(&fi.ID, &fi.Version, &fi.UpdatedAt, &fi.Hotspots, &fi.Polygons); err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "migrate")
	files, err := migrationFiles()
	if err != nil {
		return err
	}

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
