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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goshoppable/internal/domain"
	"goshoppable/internal/host"
)

func testDoc() domain.Document {
	d := domain.New(&domain.ImageRef{ID: "a1", Name: "room.jpg", Endpoint: "shop", DefaultHost: "cdn.example"})
	d.Hotspots = append(d.Hotspots, domain.Hotspot{ID: "h1", Target: "sofa", Selector: ".sofa", Point: domain.Point{X: 0.5, Y: 0.5}})
	d.Polygons = append(d.Polygons, domain.Polygon{ID: "p1", Target: "lamp", Selector: ".lamp",
		Points: []domain.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.1}, {X: 0.2, Y: 0.2}}})
	return d
}

func newTestServer(t *testing.T, secret string) (*httptest.Server, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	srv := httptest.NewServer(NewServer(store, ServerConfig{Secret: secret}).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := NewClient(srv.URL+"/", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	if _, err := c.GetField(ctx, "hero"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	rec, err := c.PutField(ctx, "hero", testDoc())
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("first put version = %d", rec.Version)
	}
	rec, err = c.PutField(ctx, "hero", testDoc())
	if err != nil || rec.Version != 2 {
		t.Fatalf("second put: version=%d err=%v", rec.Version, err)
	}
	got, err := c.GetField(ctx, "hero")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Document.Hotspots) != 1 || got.Document.Polygons[0].ID != "p1" {
		t.Fatalf("unexpected document: %+v", got.Document)
	}
	list, err := c.ListFields(ctx)
	if err != nil || len(list) != 1 || list[0].Hotspots != 1 || list[0].Polygons != 1 {
		t.Fatalf("list: %+v err=%v", list, err)
	}
	if err := c.DeleteField(ctx, "hero"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteField(ctx, "hero"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestPutRejectsInvalidDocument(t *testing.T) {
	srv, store := newTestServer(t, "")
	body := `{"hotspots":[{"id":"h1","target":"t","selector":".s","point":{"x":0.1,"y":0.1}},{"id":"h1","target":"t","selector":".s","point":{"x":0.2,"y":0.2}}],"polygons":[]}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/fields/hero", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if _, err := store.Get(context.Background(), "hero"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("invalid document was stored")
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")
	ctx := context.Background()
	c := NewClient(srv.URL, "")
	if _, err := c.ListFields(ctx); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 without token, got %v", err)
	}
	c.Token = "garbage.token"
	if _, err := c.ListFields(ctx); err == nil {
		t.Fatalf("expected rejection of a forged token")
	}
	if err := c.Login(ctx, "tester"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.ListFields(ctx); err != nil {
		t.Fatalf("list with token: %v", err)
	}
	// healthz stays public
	if err := NewClient(srv.URL, "").Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	tok, err := signToken("k", "me", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifyToken("k", tok); err == nil {
		t.Fatalf("expired token accepted")
	}
	tok, _ = signToken("k", "me", time.Now().Add(time.Minute))
	if sub, err := verifyToken("k", tok); err != nil || sub != "me" {
		t.Fatalf("verify: sub=%q err=%v", sub, err)
	}
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatalf("token accepted with wrong secret")
	}
}

func TestHTTPFieldAsHostField(t *testing.T) {
	srv, _ := newTestServer(t, "")
	f := NewClient(srv.URL, "").Field("hero")
	ctx := context.Background()
	if _, err := f.Read(ctx); !errors.Is(err, host.ErrEmpty) {
		t.Fatalf("want host.ErrEmpty, got %v", err)
	}
	if err := f.Write(ctx, testDoc()); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := f.Read(ctx)
	if err != nil || d.Image == nil || d.Image.Name != "room.jpg" {
		t.Fatalf("read: %+v err=%v", d, err)
	}
}

func TestStoreField(t *testing.T) {
	store := NewMemoryStore()
	f := &StoreField{Store: store, ID: "x"}
	ctx := context.Background()
	if _, err := f.Read(ctx); !errors.Is(err, host.ErrEmpty) {
		t.Fatalf("want host.ErrEmpty, got %v", err)
	}
	if err := f.Write(ctx, testDoc()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if d, err := f.Read(ctx); err != nil || len(d.Hotspots) != 1 {
		t.Fatalf("read: %+v err=%v", d, err)
	}
}

func TestParseVersionAndEmbeddedMigrations(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no embedded migrations")
	}
	var last int64
	for _, f := range files {
		v, err := parseVersion(f)
		if err != nil {
			t.Fatalf("parseVersion(%s): %v", f, err)
		}
		if v <= last {
			t.Fatalf("migration versions not increasing at %s", f)
		}
		last = v
	}
	if _, err := parseVersion("nounderscore.sql"); err == nil {
		t.Fatalf("expected error for malformed name")
	}
}
