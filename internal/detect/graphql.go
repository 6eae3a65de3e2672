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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const candidateFields = `objects {
			id
			label
			center { x y }
			bounds { topLeft { x y } height width }
			outline { x y }
		}`

const detectMutation = `mutation detectPointsOfInterestInImage($input: PointsOfInterestInImageInput!) {
	detectPointsOfInterestInImage(input: $input) {
		` + candidateFields + `
	}
}`

const findMutation = `mutation findPointsOfInterestInImage($input: FindPointsOfInterestInImageInput!) {
	findPointsOfInterestInImage(input: $input) {
		` + candidateFields + `
	}
}`

// CodeInsufficientCredits is the GraphQL error extension code for an
// exhausted account.
const CodeInsufficientCredits = "INSUFFICIENT_CREDITS"

// Uploader copies an image somewhere the detection service can read it and
// returns that URL.
type Uploader interface {
	UploadTemp(ctx context.Context, imageURL string) (string, error)
}

// GraphQLConfig configures the hosted detection backend.
type GraphQLConfig struct {
	Endpoint       string
	Token          string
	OrganizationID string
	// Uploader is optional; without it the image URL is sent as-is.
	Uploader   Uploader
	HTTPClient *http.Client
}

// GraphQL calls a hosted points-of-interest mutation.
type GraphQL struct {
	cfg GraphQLConfig
	cli *http.Client
}

func NewGraphQL(cfg GraphQLConfig) *GraphQL {
	cli := cfg.HTTPClient
	if cli == nil {
		cli = http.DefaultClient
	}
	return &GraphQL{cfg: cfg, cli: cli}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type gqlObjects struct {
	Objects []Candidate `json:"objects"`
}

type gqlResponse struct {
	Data struct {
		Detect *gqlObjects `json:"detectPointsOfInterestInImage"`
		Find   *gqlObjects `json:"findPointsOfInterestInImage"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// OrganizationRef encodes an organization id the way the service expects.
func OrganizationRef(id string) string {
	return base64.StdEncoding.EncodeToString([]byte("Organization:" + id))
}

func (g *GraphQL) Detect(ctx context.Context, req Request) ([]Candidate, error) {
	imageURL := req.ImageURL
	if g.cfg.Uploader != nil {
		u, err := g.cfg.Uploader.UploadTemp(ctx, imageURL)
		if err != nil {
			return nil, fmt.Errorf("%w: upload: %w", ErrFailed, err)
		}
		imageURL = u
	}

	input := map[string]any{
		"organizationId": OrganizationRef(g.cfg.OrganizationID),
		"imageUrl":       imageURL,
	}
	query := detectMutation
	if len(req.Find) > 0 {
		query = findMutation
		input["thingsToFind"] = req.Find
	} else if len(req.Hints) > 0 {
		input["hints"] = req.Hints
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: map[string]any{"input": input}})
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if tok := strings.TrimSpace(g.cfg.Token); tok != "" {
		hreq.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := g.cli.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	var out gqlResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: status %d", ErrFailed, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decode: %w", ErrFailed, err)
	}
	if len(out.Errors) > 0 {
		if out.Errors[0].Extensions.Code == CodeInsufficientCredits {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("%w: %s", ErrFailed, out.Errors[0].Message)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFailed, resp.StatusCode)
	}
	objs := out.Data.Detect
	if len(req.Find) > 0 {
		objs = out.Data.Find
	}
	if objs == nil {
		return nil, fmt.Errorf("%w: empty response", ErrFailed)
	}
	return objs.Objects, nil
}
