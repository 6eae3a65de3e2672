/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventAndCrashUpload(t *testing.T) {
	var mu sync.Mutex
	var events, crashes [][]byte

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		events = append(events, b)
		mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		crashes = append(crashes, b)
		mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected enabled client")
	}

	c.Event(EventModeChange, map[string]any{"to": "hotspot"})
	c.Flush(context.Background())
	c.UploadCrash([]byte("STACK"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(events) > 0 && len(crashes) > 0
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 || len(crashes) == 0 {
		t.Fatalf("events=%d crashes=%d", len(events), len(crashes))
	}
	var m map[string]any
	if err := json.Unmarshal(events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != EventModeChange || m["to"] != "hotspot" {
		t.Fatalf("event: %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GSI_TELEMETRY_OPT_IN", "yes")
	t.Setenv("GSI_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("GSI_CRASH_UPLOAD_URL", "")
	t.Setenv("GSI_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv: %+v", cfg)
	}
	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default client should be enabled")
	}
	Default().Close()
}

func TestDisabledStillCounts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.Event(EventUndo, nil)
	c.Event(EventUndo, nil)
	c.Event("", nil)
	c.UploadCrash([]byte("x"))
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("disabled client sent requests")
	}
	if got := c.Counts(); got[EventUndo] != 2 || len(got) != 1 {
		t.Fatalf("counts: %v", got)
	}
}

func TestSendFailureIsQuiet(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	time.Sleep(50 * time.Millisecond)
}

func TestNilClientAndNop(t *testing.T) {
	var c *Client
	c.Event("x", nil)
	c.UploadCrash(nil)
	if c.Enabled() {
		t.Fatalf("nil client enabled")
	}
	var r Recorder = Nop{}
	r.Event("x", nil)
}
