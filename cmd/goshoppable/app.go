/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"goshoppable/internal/asset"
	"goshoppable/internal/backend"
	"goshoppable/internal/config"
	"goshoppable/internal/detect"
	"goshoppable/internal/geometry"
	"goshoppable/internal/host"
	"goshoppable/internal/session"
	"goshoppable/internal/storage"
	"goshoppable/internal/telemetry"
)

// writeTimeout bounds each background write to the host field.
const writeTimeout = 15 * time.Second

type app struct {
	cfg   config.AppConfig
	token string
	out   io.Writer
	log   *slog.Logger
}

// openDoc is a host field opened from the config plus what must be closed
// with it. file and index are nil for kinds that do not use them.
type openDoc struct {
	kind    string
	name    string
	field   host.Field
	file    *storage.File
	index   *storage.Index
	closers []func() error
}

func (d *openDoc) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// openField resolves the configured host kind. For "file" and "sqlite" arg is
// a path (the document file, or the index directory); for "postgres" and
// "http" it overrides the field id.
func (a *app) openField(ctx context.Context, arg string) (*openDoc, error) {
	h := a.cfg.Host
	d := &openDoc{kind: h.Kind, name: h.Field}
	switch h.Kind {
	case "", "file":
		d.kind = "file"
		path := firstNonEmpty(arg, h.Path)
		if path == "" {
			return nil, fmt.Errorf("%w: a document file is required", errUsage)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		f, err := storage.OpenFile(abs)
		if err != nil {
			return nil, err
		}
		f.MaxBackups = a.cfg.Backups.Max
		d.file = f
		d.name = filepath.Base(abs)
		ix, rebuilt, err := storage.OpenOrRebuildIndex(ctx, filepath.Dir(abs))
		if err != nil {
			// no revision log; the document itself is still usable
			a.log.Warn("index unavailable", slog.Any("err", err))
			d.field = f
			return d, nil
		}
		if rebuilt {
			a.log.Warn("index was rebuilt", slog.String("path", ix.Path()))
		}
		d.index = ix
		d.closers = append(d.closers, ix.Close)
		d.field = &storage.LoggedField{Next: f, Log: ix, Name: d.name}
	case "sqlite":
		dir := firstNonEmpty(arg, h.Path, ".")
		ix, _, err := storage.OpenOrRebuildIndex(ctx, dir)
		if err != nil {
			return nil, err
		}
		d.index = ix
		d.closers = append(d.closers, ix.Close)
		d.field = &storage.SQLiteField{Index: ix, Name: h.Field}
	case "postgres":
		if h.DSN == "" {
			return nil, errors.New("host.dsn is required for postgres")
		}
		pg, err := backend.OpenPG(ctx, h.DSN)
		if err != nil {
			return nil, err
		}
		d.name = firstNonEmpty(arg, h.Field)
		d.closers = append(d.closers, pg.Close)
		d.field = &backend.StoreField{Store: pg, ID: d.name}
	case "http":
		if h.URL == "" {
			return nil, errors.New("host.url is required for http")
		}
		d.name = firstNonEmpty(arg, h.Field)
		d.field = backend.NewClient(h.URL, a.token).Field(d.name)
	default:
		return nil, fmt.Errorf("unknown host kind %q", h.Kind)
	}
	return d, nil
}

// newDetector builds the configured detection service, or nil for "none".
func (a *app) newDetector(cache detect.Cache) (*detect.Service, error) {
	c := a.cfg.Detect
	var det detect.Detector
	switch c.Backend {
	case "", "none":
		return nil, nil
	case "ollama":
		o, err := detect.NewOllama(detect.OllamaConfig{BaseURL: c.Endpoint, Model: c.Model})
		if err != nil {
			return nil, err
		}
		det = o
	case "graphql":
		gc := detect.GraphQLConfig{Endpoint: c.Endpoint, Token: a.token, OrganizationID: c.OrganizationID}
		if a.cfg.Asset.Endpoint != "" {
			gc.Uploader = asset.NewClient(a.cfg.Asset.Endpoint, a.token, a.cfg.Asset.HubID)
		}
		det = detect.NewGraphQL(gc)
	default:
		return nil, fmt.Errorf("unknown detect backend %q", c.Backend)
	}
	opts := []detect.Option{detect.WithTimeout(c.Timeout())}
	if cache != nil {
		opts = append(opts, detect.WithCache(cache))
	}
	return detect.NewService(det, opts...), nil
}

// openSession opens the document behind arg in an editor session. Writes go
// through an AsyncWriter that the returned doc flushes on Close.
func (a *app) openSession(ctx context.Context, arg string) (*session.Session, *openDoc, error) {
	d, err := a.openField(ctx, arg)
	if err != nil {
		return nil, nil, err
	}
	var cache detect.Cache
	if d.index != nil {
		cache = d.index
	}
	det, err := a.newDetector(cache)
	if err != nil {
		_ = d.Close()
		return nil, nil, err
	}
	w := host.NewAsyncWriter(d.field, writeTimeout)
	d.closers = append(d.closers, w.Close)
	s := session.New(session.Options{
		Field:     w,
		History:   a.cfg.Editor.History(),
		Detector:  det,
		Telemetry: telemetry.Default(),
		Viewport:  geometry.Size{H: a.cfg.UI.ViewportHeight},
	})
	if err := s.Open(ctx); err != nil {
		_ = d.Close()
		return nil, nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	return s, d, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
