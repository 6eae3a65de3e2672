/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend hosts metadata documents for remote editors: a Postgres
// field store, an HTTP server exposing it and a client implementing host.Field.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"goshoppable/internal/domain"
	"goshoppable/internal/host"
)

// ErrNotFound is returned for field ids that were never written.
var ErrNotFound = errors.New("field not found")

// Record is a stored document with its bookkeeping.
type Record struct {
	ID        string          `json:"id"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Document  domain.Document `json:"document"`
}

// FieldInfo is the listing projection of a record.
type FieldInfo struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Hotspots  int       `json:"hotspots"`
	Polygons  int       `json:"polygons"`
}

// Store persists documents by field id. Put increments the version.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, id string, d domain.Document) (Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]FieldInfo, error)
}

// MemoryStore keeps records in process. Used by tests and `serve --memory`.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Document = r.Document.Clone()
	return r, nil
}

func (m *MemoryStore) Put(_ context.Context, id string, d domain.Document) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[id]
	r.ID = id
	r.Version++
	r.UpdatedAt = m.now().UTC()
	r.Document = d.Clone()
	m.records[id] = r
	r.Document = d.Clone()
	return r, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]FieldInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FieldInfo, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, infoOf(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func infoOf(r Record) FieldInfo {
	return FieldInfo{
		ID:        r.ID,
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
		Hotspots:  len(r.Document.Hotspots),
		Polygons:  len(r.Document.Polygons),
	}
}

// StoreField exposes one record of a store as a host.Field.
type StoreField struct {
	Store Store
	ID    string
}

var _ host.Field = (*StoreField)(nil)

func (f *StoreField) Read(ctx context.Context) (domain.Document, error) {
	r, err := f.Store.Get(ctx, f.ID)
	if errors.Is(err, ErrNotFound) {
		return domain.Document{}, fmt.Errorf("%w: %w", host.ErrEmpty, err)
	}
	if err != nil {
		return domain.Document{}, err
	}
	return r.Document, nil
}

func (f *StoreField) Write(ctx context.Context, d domain.Document) error {
	_, err := f.Store.Put(ctx, f.ID, d)
	return err
}
