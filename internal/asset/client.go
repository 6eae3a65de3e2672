/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package asset talks to the media asset service: thumbnails, uploading an
// edited image as a new asset, and staging images for detection.
package asset

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
)

var ErrUnsupportedType = errors.New("unsupported image content type")

// Asset is the subset of the service's asset record the editor uses.
type Asset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	SrcName  string `json:"srcName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	BucketID string `json:"bucketID,omitempty"`
	FolderID string `json:"folderID,omitempty"`
	ThumbURL string `json:"thumbURL,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Thumbnail is the result of FetchThumbnail.
type Thumbnail struct {
	URL string `json:"url"`
}

// Client calls the asset API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HubID   string
	client  *http.Client
}

// NewClient normalizes baseURL and sets a 30s timeout.
func NewClient(baseURL, token, hubID string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HubID:   hubID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
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
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("asset %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// GetAsset loads one asset record.
func (c *Client) GetAsset(ctx context.Context, id string) (Asset, error) {
	var a Asset
	if err := c.doJSON(ctx, http.MethodGet, "/assets/"+url.PathEscape(id), nil, &a); err != nil {
		return Asset{}, err
	}
	if a.ID == "" {
		return Asset{}, fmt.Errorf("asset %q does not exist", id)
	}
	return a, nil
}

// FetchThumbnail returns the thumbnail URL of an asset.
func (c *Client) FetchThumbnail(ctx context.Context, assetID string) (Thumbnail, error) {
	a, err := c.GetAsset(ctx, assetID)
	if err != nil {
		return Thumbnail{}, err
	}
	return Thumbnail{URL: a.ThumbURL}, nil
}

var mimeExt = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/bmp":  "bmp",
	"image/gif":  "gif",
	"image/tiff": "tif",
	"image/webp": "webp",
	"image/jp2":  "jp2",
	"image/avif": "avif",
}

// ExtensionFor maps an image MIME type to a file extension.
func ExtensionFor(mime string) (string, bool) {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	ext, ok := mimeExt[strings.TrimSpace(strings.ToLower(mime))]
	return ext, ok
}

type putPayload struct {
	HubID  string     `json:"hubId"`
	Mode   string     `json:"mode"`
	Assets []putAsset `json:"assets"`
}

type putAsset struct {
	Src      string `json:"src"`
	Name     string `json:"name"`
	SrcName  string `json:"srcName,omitempty"`
	Label    string `json:"label,omitempty"`
	BucketID string `json:"bucketID,omitempty"`
	FolderID string `json:"folderID"`
}

// Upload stores the image at srcURL as a new asset named name, next to src
// in the library. Name clashes are renamed by the service.
func (c *Client) Upload(ctx context.Context, srcURL, name string, src Asset) (Asset, error) {
	if c.HubID == "" {
		return Asset{}, errors.New("asset upload: no hub id")
	}
	mime, err := c.contentType(ctx, srcURL)
	if err != nil {
		return Asset{}, fmt.Errorf("asset upload: %w", err)
	}
	ext, ok := ExtensionFor(mime)
	if !ok {
		return Asset{}, fmt.Errorf("asset upload: %w: %s", ErrUnsupportedType, mime)
	}
	file := name + "." + ext
	payload := putPayload{
		HubID: c.HubID,
		Mode:  "renameUnique",
		Assets: []putAsset{{
			Src: srcURL, Name: name, SrcName: file, Label: file,
			FolderID: src.FolderID, BucketID: src.BucketID,
		}},
	}
	var out struct {
		Content []Asset `json:"content"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/assets", payload, &out); err != nil {
		return Asset{}, fmt.Errorf("asset upload: %w", err)
	}
	if len(out.Content) == 0 {
		return Asset{}, errors.New("asset upload: unexpected response")
	}
	return c.GetAsset(ctx, out.Content[0].ID)
}

func (c *Client) contentType(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || ct == "" {
		return "", fmt.Errorf("unable to determine content type of %s", u)
	}
	return ct, nil
}

// ImageRef points img at the uploaded asset, keeping its host settings.
func ImageRef(img domain.ImageRef, a Asset) domain.ImageRef {
	return domain.ImageRef{
		ID:          a.ID,
		Name:        a.Name,
		Endpoint:    img.Endpoint,
		DefaultHost: img.DefaultHost,
	}
}

// tempTypes are the content types accepted for staging.
var tempTypes = map[string]bool{
	"image/jpeg": true, "image/jpg": true, "image/png": true, "image/gif": true,
	"image/bmp": true, "image/jp2": true, "image/tiff": true, "image/webp": true,
	"application/force-download": true,
}

type tempURLs struct {
	UploadURL   string `json:"uploadUrl"`
	DownloadURL string `json:"downloadUrl"`
}

// UploadTemp copies the image at imageURL into temporary storage and returns
// a download URL readable by the detection service.
func (c *Client) UploadTemp(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !tempTypes[ct] {
		return "", fmt.Errorf("%w: %q (status %d)", ErrUnsupportedType, ct, resp.StatusCode)
	}
	img, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	var urls tempURLs
	if err := c.doJSON(ctx, http.MethodPost, "/temp-files", struct{}{}, &urls); err != nil {
		return "", fmt.Errorf("temp file urls: %w", err)
	}
	if urls.UploadURL == "" || urls.DownloadURL == "" {
		return "", errors.New("temp file urls: incomplete response")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, urls.UploadURL, bytes.NewReader(img))
	if err != nil {
		return "", err
	}
	put.Header.Set("Content-Type", ct)
	presp, err := c.client.Do(put)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	_ = presp.Body.Close()
	if presp.StatusCode < 200 || presp.StatusCode >= 300 {
		return "", fmt.Errorf("upload image: %s", presp.Status)
	}
	return urls.DownloadURL, nil
}
