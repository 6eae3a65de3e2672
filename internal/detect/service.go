/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"goshoppable/internal/domain"
	applog "goshoppable/internal/log"
)

// DefaultTimeout bounds one detection call.
const DefaultTimeout = 31 * time.Second

// Cache persists candidate batches per image URL across runs.
type Cache interface {
	LoadCandidates(ctx context.Context, imageURL string) ([]Candidate, bool, error)
	SaveCandidates(ctx context.Context, imageURL string, cs []Candidate) error
}

type Option func(*Service)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCache adds a persistent cache behind the in-memory one.
func WithCache(c Cache) Option { return func(s *Service) { s.store = c } }

// Service runs detections with at most one request outstanding. Starting a
// request cancels the previous one, which then returns ErrCancelled.
type Service struct {
	det     Detector
	timeout time.Duration
	store   Cache
	log     *slog.Logger

	mu      sync.Mutex
	cache   map[string][]Candidate
	pending context.CancelCauseFunc
	seq     uint64
}

func NewService(det Detector, opts ...Option) *Service {
	s := &Service{
		det:     det,
		timeout: DefaultTimeout,
		log:     applog.WithComponent("detect"),
		cache:   map[string][]Candidate{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the candidates for imageURL. With useCache set a cached batch
// is returned without contacting the detector.
func (s *Service) Get(ctx context.Context, imageURL string, useCache bool) ([]Candidate, error) {
	return s.Run(ctx, Request{ImageURL: imageURL}, useCache)
}

// Run is Get with hints or a find list. Batches narrowed by Find are never
// cached.
func (s *Service) Run(ctx context.Context, req Request, useCache bool) ([]Candidate, error) {
	cacheable := len(req.Find) == 0
	if useCache && cacheable {
		if cs, ok := s.cached(ctx, req.ImageURL); ok {
			return cs, nil
		}
	}

	rctx, id, done := s.begin(ctx)
	defer done()

	tctx, cancel := context.WithTimeoutCause(rctx, s.timeout, ErrTimeout)
	defer cancel()

	type result struct {
		cs  []Candidate
		err error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		cs, err := s.det.Detect(tctx, req)
		ch <- result{cs, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-tctx.Done():
		r.err = tctx.Err()
	}

	if cause := context.Cause(tctx); cause != nil {
		switch {
		case errors.Is(cause, ErrCancelled):
			s.log.Debug("detection superseded", slog.Uint64("req", id))
			return nil, ErrCancelled
		case errors.Is(cause, ErrTimeout):
			s.log.Warn("detection timed out", slog.Uint64("req", id), slog.Duration("after", s.timeout))
			return nil, fmt.Errorf("%w: %w", ErrFailed, ErrTimeout)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		s.log.Warn("detection failed", slog.Uint64("req", id), slog.Any("err", r.err))
		if errors.Is(r.err, ErrInsufficientCredits) || errors.Is(r.err, ErrFailed) {
			return nil, r.err
		}
		return nil, fmt.Errorf("%w: %w", ErrFailed, r.err)
	}

	cs, err := normalizeCandidates(r.cs)
	if err != nil {
		return nil, err
	}
	cs = GenerateSelectors(cs)
	s.log.Info("detection done", slog.Uint64("req", id), slog.Int("objects", len(cs)), slog.Duration("took", time.Since(start)))
	if cacheable {
		s.remember(ctx, req.ImageURL, cs)
	}
	return clone(cs), nil
}

// begin cancels the outstanding request and registers a new one.
func (s *Service) begin(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	s.mu.Lock()
	if s.pending != nil {
		s.pending(ErrCancelled)
	}
	s.seq++
	id := s.seq
	s.pending = cancel
	s.mu.Unlock()
	return ctx, id, func() {
		s.mu.Lock()
		if s.seq == id {
			s.pending = nil
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

// Cancel aborts the outstanding request, if any.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending(ErrCancelled)
		s.pending = nil
	}
}

func (s *Service) cached(ctx context.Context, url string) ([]Candidate, bool) {
	s.mu.Lock()
	cs, ok := s.cache[url]
	s.mu.Unlock()
	if ok {
		return clone(cs), true
	}
	if s.store == nil {
		return nil, false
	}
	cs, ok, err := s.store.LoadCandidates(ctx, url)
	if err != nil {
		s.log.Warn("candidate cache read failed", slog.Any("err", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.cache[url] = cs
	s.mu.Unlock()
	return clone(cs), true
}

func (s *Service) remember(ctx context.Context, url string, cs []Candidate) {
	s.mu.Lock()
	s.cache[url] = clone(cs)
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.SaveCandidates(ctx, url, cs); err != nil {
			s.log.Warn("candidate cache write failed", slog.Any("err", err))
		}
	}
}

func clone(cs []Candidate) []Candidate {
	out := make([]Candidate, len(cs))
	for i, c := range cs {
		if c.Bounds != nil {
			b := *c.Bounds
			c.Bounds = &b
		}
		c.Outline = append([]domain.Point(nil), c.Outline...)
		if len(c.Outline) == 0 {
			c.Outline = nil
		}
		out[i] = c
	}
	return out
}
