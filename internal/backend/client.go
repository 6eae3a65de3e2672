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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"goshoppable/internal/domain"
	"goshoppable/internal/host"
)

// Client is a minimal HTTP client for the field server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			rd = bytes.NewReader(b)
		default:
			buf, err := json.Marshal(body)
			if err != nil {
				return err
			}
			rd = bytes.NewReader(buf)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, u.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(msg, &e) == nil && e.Error != "" {
			return fmt.Errorf("server %s %s: %s: %s", method, u.Path, resp.Status, e.Error)
		}
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Login obtains a bearer token for subject and keeps it on the client.
func (c *Client) Login(ctx context.Context, subject string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", map[string]any{"subject": subject}, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.New("server returned no token")
	}
	c.Token = out.Token
	return nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	u := c.BaseURL + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: %s", resp.Status)
	}
	return nil
}

// ListFields returns the stored fields, most recently updated first.
func (c *Client) ListFields(ctx context.Context) ([]FieldInfo, error) {
	var list []FieldInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/fields", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetField fetches one field.
func (c *Client) GetField(ctx context.Context, id string) (Record, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/fields/"+url.PathEscape(id), nil, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// PutField stores d under id.
func (c *Client) PutField(ctx context.Context, id string, d domain.Document) (Record, error) {
	body, err := domain.Marshal(d)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := c.doJSON(ctx, http.MethodPut, "/api/fields/"+url.PathEscape(id), body, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DeleteField removes id.
func (c *Client) DeleteField(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/fields/"+url.PathEscape(id), nil, nil)
}

// Field returns a host.Field for id served by c.
func (c *Client) Field(id string) host.Field { return &httpField{c: c, id: id} }

type httpField struct {
	c  *Client
	id string
}

func (f *httpField) Read(ctx context.Context) (domain.Document, error) {
	rec, err := f.c.GetField(ctx, f.id)
	if errors.Is(err, ErrNotFound) {
		return domain.Document{}, fmt.Errorf("%w: %w", host.ErrEmpty, err)
	}
	if err != nil {
		return domain.Document{}, err
	}
	return rec.Document, nil
}

func (f *httpField) Write(ctx context.Context, d domain.Document) error {
	_, err := f.c.PutField(ctx, f.id, d)
	return err
}
