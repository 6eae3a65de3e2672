/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package host defines the boundary to the application hosting the editor:
// a field that holds the metadata document. Implementations live in storage
// (files, SQLite) and backend (Postgres, HTTP).
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"goshoppable/internal/domain"
	applog "goshoppable/internal/log"
)

// ErrEmpty is returned by Read when the field has never been written.
var ErrEmpty = errors.New("field is empty")

// Field reads and writes the document stored by the host.
type Field interface {
	Read(ctx context.Context) (domain.Document, error)
	Write(ctx context.Context, d domain.Document) error
}

// Memory is an in-process Field, used by tests and headless tools.
type Memory struct {
	mu     sync.Mutex
	doc    domain.Document
	has    bool
	writes int
}

// NewMemory returns a Memory field seeded with d.
func NewMemory(d domain.Document) *Memory {
	return &Memory{doc: d.Clone(), has: true}
}

func (m *Memory) Read(_ context.Context) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has {
		return domain.Document{}, ErrEmpty
	}
	return m.doc.Clone(), nil
}

func (m *Memory) Write(_ context.Context, d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = d.Clone()
	m.has = true
	m.writes++
	return nil
}

// Writes returns how many times Write was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// AsyncWriter makes writes fire-and-forget. Pending writes coalesce: only the
// latest document is delivered when the background writer catches up.
// Reads go straight to the wrapped field.
type AsyncWriter struct {
	next    Field
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending *domain.Document
	busy    bool
	idle    *sync.Cond
	lastErr error
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewAsyncWriter starts a background writer for next. timeout bounds each
// write; zero means 10s.
func NewAsyncWriter(next Field, timeout time.Duration) *AsyncWriter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &AsyncWriter{
		next:    next,
		log:     applog.WithComponent("host"),
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.idle = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

func (w *AsyncWriter) Read(ctx context.Context) (domain.Document, error) { return w.next.Read(ctx) }

// Write queues d and returns immediately.
func (w *AsyncWriter) Write(_ context.Context, d domain.Document) error {
	c := d.Clone()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("async writer closed")
	}
	w.pending = &c
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until queued writes are delivered and returns the last write error.
func (w *AsyncWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.pending != nil || w.busy {
		w.idle.Wait()
	}
	return w.lastErr
}

// Close flushes and stops the background writer.
func (w *AsyncWriter) Close() error {
	err := w.Flush()
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	w.mu.Unlock()
	return err
}

func (w *AsyncWriter) loop() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		for {
			w.mu.Lock()
			d := w.pending
			w.pending = nil
			w.busy = d != nil
			w.mu.Unlock()
			if d == nil {
				break
			}
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			err := w.next.Write(ctx, *d)
			cancel()
			if err != nil {
				w.log.Warn("field write failed", slog.Any("err", err))
			}
			w.mu.Lock()
			w.lastErr = err
			w.busy = false
			w.mu.Unlock()
		}
		w.mu.Lock()
		w.idle.Broadcast()
		w.mu.Unlock()
	}
}
