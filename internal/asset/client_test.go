/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package asset

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"goshoppable/internal/domain"
)

func TestFetchThumbnail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/a1" || r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Asset{ID: "a1", ThumbURL: "https://thumbs/a1.jpg"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", "hub")
	th, err := c.FetchThumbnail(context.Background(), "a1")
	if err != nil || th.URL != "https://thumbs/a1.jpg" {
		t.Fatalf("thumbnail: %+v %v", th, err)
	}
	if _, err := c.FetchThumbnail(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing asset")
	}
}

func TestUpload(t *testing.T) {
	var put putPayload
	mux := http.NewServeMux()
	mux.HandleFunc("/edited.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	})
	mux.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&put)
		_, _ = io.WriteString(w, `{"content":[{"id":"new"}]}`)
	})
	mux.HandleFunc("/assets/new", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Asset{ID: "new", Name: "room-edit", MimeType: "image/png"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "", "hub-1")
	a, err := c.Upload(context.Background(), srv.URL+"/edited.png", "room-edit", Asset{FolderID: "f", BucketID: "b"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if a.ID != "new" || put.HubID != "hub-1" || put.Mode != "renameUnique" {
		t.Fatalf("asset %+v payload %+v", a, put)
	}
	if got := put.Assets[0]; got.SrcName != "room-edit.png" || got.FolderID != "f" || got.BucketID != "b" {
		t.Fatalf("asset payload: %+v", got)
	}

	ref := ImageRef(domain.ImageRef{ID: "old", Endpoint: "ep", DefaultHost: "cdn"}, a)
	if ref.ID != "new" || ref.Name != "room-edit" || ref.Endpoint != "ep" || ref.DefaultHost != "cdn" {
		t.Fatalf("image ref: %+v", ref)
	}
}

func TestUploadRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "", "").Upload(context.Background(), srv.URL, "x", Asset{}); err == nil {
		t.Fatalf("missing hub id accepted")
	}
	_, err := NewClient(srv.URL, "", "hub").Upload(context.Background(), srv.URL, "x", Asset{})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
}

func TestExtensionFor(t *testing.T) {
	if ext, ok := ExtensionFor("image/JPEG; charset=binary"); !ok || ext != "jpg" {
		t.Fatalf("jpeg: %q %v", ext, ok)
	}
	if _, ok := ExtensionFor("text/plain"); ok {
		t.Fatalf("text accepted")
	}
}

func TestUploadTemp(t *testing.T) {
	var stored []byte
	var storedType string
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/src.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpegdata"))
	})
	mux.HandleFunc("/temp-files", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tempURLs{UploadURL: srv.URL + "/put", DownloadURL: srv.URL + "/get"})
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		stored, _ = io.ReadAll(r.Body)
		storedType = r.Header.Get("Content-Type")
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})

	c := NewClient(srv.URL, "", "")
	got, err := c.UploadTemp(context.Background(), srv.URL+"/src.jpg")
	if err != nil || got != srv.URL+"/get" {
		t.Fatalf("upload temp: %q %v", got, err)
	}
	if string(stored) != "jpegdata" || storedType != "image/jpeg" {
		t.Fatalf("stored %q as %q", stored, storedType)
	}
	if _, err := c.UploadTemp(context.Background(), srv.URL+"/page.html"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("html accepted: %v", err)
	}
}
