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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"goshoppable/internal/domain"
)

// DefaultOllamaModel is used when OllamaConfig.Model is empty.
const DefaultOllamaModel = "llava"

const ollamaPrompt = `List the distinct products visible in this image that a shopper could buy.
Answer with JSON only, no prose, in this exact shape:
{"objects":[{"label":"sofa","center":{"x":0.5,"y":0.5},"bounds":{"topLeft":{"x":0.3,"y":0.4},"width":0.4,"height":0.3}}]}
Coordinates are fractions of the image width and height between 0 and 1.
Labels are short lowercase nouns using only letters, digits and hyphens.`

// OllamaConfig configures a local vision model backend.
type OllamaConfig struct {
	// BaseURL is the server root, e.g. http://localhost:11434. A path such as
	// /api/chat is ignored.
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Ollama asks a vision model served by Ollama to locate products.
type Ollama struct {
	client *api.Client
	http   *http.Client
	model  string
	newID  func() string
}

func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama url %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return &Ollama{client: api.NewClient(base, hc), http: hc, model: model, newID: uuid.NewString}, nil
}

type modelObject struct {
	Label   string         `json:"label"`
	Center  *domain.Point  `json:"center"`
	Bounds  *Bounds        `json:"bounds"`
	Outline []domain.Point `json:"outline"`
}

func (o *Ollama) Detect(ctx context.Context, req Request) ([]Candidate, error) {
	img, err := o.fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch image: %w", ErrFailed, err)
	}

	prompt := ollamaPrompt
	if len(req.Find) > 0 {
		prompt += "\nOnly report these things: " + strings.Join(req.Find, ", ") + "."
	} else if len(req.Hints) > 0 {
		prompt += "\nThe image likely contains: " + strings.Join(req.Hints, ", ") + "."
	}

	stream := false
	chat := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: prompt,
			Images:  []api.ImageData{api.ImageData(img)},
		}},
		Stream: &stream,
	}
	var content string
	err = o.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty response from ollama", ErrFailed)
	}
	return o.parse(content)
}

func (o *Ollama) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}

func (o *Ollama) parse(raw string) ([]Candidate, error) {
	var out struct {
		Objects []modelObject `json:"objects"`
	}
	if err := json.Unmarshal([]byte(sanitizeModelJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: model answer is not json: %w", ErrFailed, err)
	}
	cs := make([]Candidate, 0, len(out.Objects))
	for _, obj := range out.Objects {
		label := normalizeLabel(obj.Label)
		if label == "" {
			continue
		}
		c := Candidate{ID: o.newID(), Label: label, Bounds: obj.Bounds, Outline: obj.Outline}
		switch {
		case obj.Center != nil:
			c.Center = *obj.Center
		case obj.Bounds != nil:
			c.Center = obj.Bounds.Rect().Center()
		default:
			continue
		}
		cs = append(cs, c)
	}
	return cs, nil
}

var labelJunk = regexp.MustCompile(`[^a-z0-9-]+`)

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = labelJunk.ReplaceAllString(strings.ReplaceAll(s, " ", "-"), "")
	return strings.Trim(s, "-")
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas, then
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
