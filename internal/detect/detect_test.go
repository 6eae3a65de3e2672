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
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ollama/ollama/api"

	"goshoppable/internal/domain"
)

type fakeDetector struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req Request) ([]Candidate, error)
}

func (f *fakeDetector) Detect(ctx context.Context, req Request) ([]Candidate, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

func sofa(id string) Candidate {
	return Candidate{ID: id, Label: "sofa", Center: domain.Point{X: 0.5, Y: 0.5}}
}

func TestGenerateSelectors(t *testing.T) {
	in := []Candidate{sofa("a"), {ID: "b", Label: "lamp"}, sofa("c"), sofa("d")}
	got := GenerateSelectors(in)
	want := []string{".sofa", ".lamp", ".sofa-1", ".sofa-2"}
	for i, c := range got {
		if c.Selector != want[i] || c.Target != in[i].Label {
			t.Fatalf("%d: selector %q target %q", i, c.Selector, c.Target)
		}
	}
	if in[0].Selector != "" {
		t.Fatalf("input mutated")
	}
}

func TestNormalizeCandidates(t *testing.T) {
	if _, err := normalizeCandidates([]Candidate{{ID: "x"}}); !errors.Is(err, ErrFailed) {
		t.Fatalf("missing label accepted: %v", err)
	}
	cs, err := normalizeCandidates([]Candidate{{ID: "x", Label: "l", Outline: []domain.Point{{X: 0}, {X: 1}}}})
	if err != nil || cs[0].Outline != nil {
		t.Fatalf("short outline should be dropped: %+v %v", cs, err)
	}
}

func TestFocusPrefersBounds(t *testing.T) {
	c := Candidate{Center: domain.Point{X: 0.1, Y: 0.1}, Bounds: &Bounds{TopLeft: domain.Point{X: 0.2, Y: 0.2}, Width: 0.2, Height: 0.4}}
	if f := c.Focus(); f.X != 0.3 || f.Y != 0.4 {
		t.Fatalf("focus: %+v", f)
	}
	c.Bounds = nil
	if f := c.Focus(); f.X != 0.1 {
		t.Fatalf("focus without bounds: %+v", f)
	}
}

func TestServiceCaches(t *testing.T) {
	f := &fakeDetector{fn: func(context.Context, Request) ([]Candidate, error) {
		return []Candidate{sofa("a"), sofa("b")}, nil
	}}
	s := NewService(f)
	ctx := context.Background()

	cs, err := s.Get(ctx, "https://img/1", true)
	if err != nil || len(cs) != 2 || cs[1].Selector != ".sofa-1" {
		t.Fatalf("first get: %+v %v", cs, err)
	}
	cs[0].Label = "mutated"
	again, _ := s.Get(ctx, "https://img/1", true)
	if f.calls.Load() != 1 || again[0].Label != "sofa" {
		t.Fatalf("cache miss or shared slice: calls=%d label=%q", f.calls.Load(), again[0].Label)
	}
	if _, err := s.Get(ctx, "https://img/1", false); err != nil || f.calls.Load() != 2 {
		t.Fatalf("useCache=false should refetch: calls=%d err=%v", f.calls.Load(), err)
	}
	if _, err := s.Run(ctx, Request{ImageURL: "https://img/1", Find: []string{"lamp"}}, true); err != nil || f.calls.Load() != 3 {
		t.Fatalf("find requests bypass the cache: calls=%d", f.calls.Load())
	}
}

type memCache struct {
	mu sync.Mutex
	m  map[string][]Candidate
}

func (c *memCache) LoadCandidates(_ context.Context, u string) ([]Candidate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.m[u]
	return cs, ok, nil
}

func (c *memCache) SaveCandidates(_ context.Context, u string, cs []Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[u] = cs
	return nil
}

func TestServicePersistentCache(t *testing.T) {
	store := &memCache{m: map[string][]Candidate{}}
	f := &fakeDetector{fn: func(context.Context, Request) ([]Candidate, error) { return []Candidate{sofa("a")}, nil }}
	if _, err := NewService(f, WithCache(store)).Get(context.Background(), "u", true); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(store.m["u"]) != 1 {
		t.Fatalf("batch not persisted")
	}
	cs, err := NewService(f, WithCache(store)).Get(context.Background(), "u", true)
	if err != nil || len(cs) != 1 || f.calls.Load() != 1 {
		t.Fatalf("second service should hit the store: calls=%d err=%v", f.calls.Load(), err)
	}
}

func TestServiceSupersedes(t *testing.T) {
	started := make(chan struct{})
	f := &fakeDetector{fn: func(ctx context.Context, req Request) ([]Candidate, error) {
		if req.ImageURL == "slow" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []Candidate{sofa("fast")}, nil
	}}
	s := NewService(f)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Get(context.Background(), "slow", true)
		errc <- err
	}()
	<-started

	cs, err := s.Get(context.Background(), "fast", true)
	if err != nil || len(cs) != 1 {
		t.Fatalf("newer request: %+v %v", cs, err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("superseded request: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded request never returned")
	}
	if _, ok := s.cache["slow"]; ok {
		t.Fatalf("cancelled batch cached")
	}
}

func TestServiceTimeout(t *testing.T) {
	f := &fakeDetector{fn: func(ctx context.Context, _ Request) ([]Candidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := NewService(f, WithTimeout(20*time.Millisecond)).Get(context.Background(), "u", true)
	if !errors.Is(err, ErrFailed) || !errors.Is(err, ErrTimeout) || errors.Is(err, ErrCancelled) {
		t.Fatalf("timeout error: %v", err)
	}
}

func TestServiceErrorKinds(t *testing.T) {
	cases := []struct {
		err     error
		credits bool
	}{
		{ErrInsufficientCredits, true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		f := &fakeDetector{fn: func(context.Context, Request) ([]Candidate, error) { return nil, tc.err }}
		_, err := NewService(f).Get(context.Background(), "u", true)
		if errors.Is(err, ErrInsufficientCredits) != tc.credits {
			t.Fatalf("%v: credits mismatch: %v", tc.err, err)
		}
		if !tc.credits && !errors.Is(err, ErrFailed) {
			t.Fatalf("%v: want ErrFailed, got %v", tc.err, err)
		}
	}
}

type stubUploader struct{ got string }

func (u *stubUploader) UploadTemp(_ context.Context, imageURL string) (string, error) {
	u.got = imageURL
	return "https://tmp/download", nil
}

func TestGraphQLDetect(t *testing.T) {
	var seen gqlRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = io.WriteString(w, `{"data":{"detectPointsOfInterestInImage":{"objects":[
			{"id":"o1","label":"sofa","center":{"x":0.5,"y":0.6},"bounds":{"topLeft":{"x":0.3,"y":0.4},"width":0.4,"height":0.4},"outline":[{"x":0.3,"y":0.4},{"x":0.7,"y":0.4},{"x":0.7,"y":0.8}]}
		]}}}`)
	}))
	defer srv.Close()

	up := &stubUploader{}
	g := NewGraphQL(GraphQLConfig{Endpoint: srv.URL, Token: "tok", OrganizationID: "org-1", Uploader: up})
	cs, err := g.Detect(context.Background(), Request{ImageURL: "https://cdn/img.jpg", Hints: []string{"sofa"}})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(cs) != 1 || cs[0].Bounds == nil || len(cs[0].Outline) != 3 || cs[0].Center.Y != 0.6 {
		t.Fatalf("candidates: %+v", cs)
	}
	if auth != "Bearer tok" || up.got != "https://cdn/img.jpg" {
		t.Fatalf("auth %q upload %q", auth, up.got)
	}
	if !strings.Contains(seen.Query, "detectPointsOfInterestInImage") {
		t.Fatalf("query: %s", seen.Query)
	}
	input := seen.Variables["input"].(map[string]any)
	if input["imageUrl"] != "https://tmp/download" || input["organizationId"] != OrganizationRef("org-1") || input["hints"] == nil {
		t.Fatalf("input: %v", input)
	}
}

func TestGraphQLFind(t *testing.T) {
	var seen gqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = io.WriteString(w, `{"data":{"findPointsOfInterestInImage":{"objects":[]}}}`)
	}))
	defer srv.Close()

	cs, err := NewGraphQL(GraphQLConfig{Endpoint: srv.URL}).Detect(context.Background(), Request{ImageURL: "u", Find: []string{"lamp"}})
	if err != nil || len(cs) != 0 {
		t.Fatalf("find: %+v %v", cs, err)
	}
	if !strings.Contains(seen.Query, "findPointsOfInterestInImage") {
		t.Fatalf("query: %s", seen.Query)
	}
	if seen.Variables["input"].(map[string]any)["thingsToFind"] == nil {
		t.Fatalf("thingsToFind missing")
	}
}

func TestGraphQLErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{200, `{"errors":[{"message":"no credits","extensions":{"code":"INSUFFICIENT_CREDITS"}}]}`, ErrInsufficientCredits},
		{200, `{"errors":[{"message":"boom"}]}`, ErrFailed},
		{200, `{"data":{}}`, ErrFailed},
		{502, `bad gateway`, ErrFailed},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		}))
		_, err := NewGraphQL(GraphQLConfig{Endpoint: srv.URL}).Detect(context.Background(), Request{ImageURL: "u"})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.body, err, tc.want)
		}
	}
}

func TestOllamaDetect(t *testing.T) {
	imgBytes := []byte("\x89PNG fake")
	var chat api.ChatRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(imgBytes)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&chat)
		answer := "```json\n{\"objects\":[\n" +
			"// the couch\n" +
			"{\"label\":\"Red Sofa\",\"bounds\":{\"topLeft\":{\"x\":0.1,\"y\":0.2},\"width\":0.4,\"height\":0.2}},\n" +
			"{\"label\":\"lamp\",\"center\":{\"x\":0.8,\"y\":0.3}},\n" +
			"{\"label\":\"ghost\"},\n" +
			"]}\n```"
		resp := api.ChatResponse{Model: "llava", Message: api.Message{Role: "assistant", Content: answer}, Done: true}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o, err := NewOllama(OllamaConfig{BaseURL: srv.URL + "/api/chat"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	n := 0
	o.newID = func() string { n++; return "id" + string(rune('0'+n)) }

	cs, err := o.Detect(context.Background(), Request{ImageURL: srv.URL + "/img.png", Find: []string{"sofa"}})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(cs) != 2 {
		t.Fatalf("want 2 candidates, got %+v", cs)
	}
	if cs[0].Label != "red-sofa" || math.Abs(cs[0].Center.X-0.3) > 1e-9 {
		t.Fatalf("first: %+v", cs[0])
	}
	if cs[1].ID != "id2" || cs[1].Center.X != 0.8 {
		t.Fatalf("second: %+v", cs[1])
	}
	if chat.Model != DefaultOllamaModel || len(chat.Messages) != 1 || string(chat.Messages[0].Images[0]) != string(imgBytes) {
		t.Fatalf("chat request: %+v", chat)
	}
	if !strings.Contains(chat.Messages[0].Content, "Only report these things: sofa") {
		t.Fatalf("prompt: %s", chat.Messages[0].Content)
	}
}

func TestOllamaBadURL(t *testing.T) {
	if _, err := NewOllama(OllamaConfig{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	in := "Here you go:\n```json\n{\"a\": [1, 2,], /* note */ \"b\": 3,}\n```"
	got := sanitizeModelJSON(in)
	var v map[string]any
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("sanitized %q: %v", got, err)
	}
}
