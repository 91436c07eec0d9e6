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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripbook/internal/domain"
	"tripbook/internal/storage"
)

// Client talks to a tripbook server. It implements storage.Store so a canvas
// session or directory can run against a remote collaborator.
type Client struct {
	BaseURL string
	client  *http.Client
}

var _ storage.Store = (*Client)(nil)

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
// A non-positive timeout defaults to 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// doJSON sends body (if any) as JSON and decodes a 2xx response into dest (if any).
// Transport failures are reported as persistence errors.
func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return domain.Invalid("bad url: %v", err)
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
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Persistence(method+" "+u.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		return errorFromResponse(method, u.Path, resp.StatusCode, b)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return domain.Persistence("decode "+u.Path, err)
	}
	return nil
}

// Ping checks the server's readiness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/readyz", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Persistence("ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server not ready: %s: %w", resp.Status, domain.ErrPersistence)
	}
	return nil
}

func (c *Client) Books() storage.BookRepository {
	return &remoteBooks{remoteRepo: remoteRepo[domain.Book, domain.NewBook, domain.BookPatch]{c: c, name: "books", parent: "trip_id"}}
}

func (c *Client) Sections() storage.SectionRepository {
	return &remoteRepo[domain.Section, domain.NewSection, domain.SectionPatch]{c: c, name: "sections", parent: "book_id"}
}

func (c *Client) Pages() storage.PageRepository {
	return &remoteRepo[domain.Page, domain.NewPage, domain.PagePatch]{c: c, name: "pages", parent: "section_id"}
}

func (c *Client) Elements() storage.ElementRepository {
	return &remoteRepo[domain.Element, domain.NewElement, domain.ElementPatch]{c: c, name: "elements", parent: "page_id"}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type remoteRepo[T, N, P any] struct {
	c      *Client
	name   string
	parent string
}

func (r *remoteRepo[T, N, P]) path(id string) string {
	if id == "" {
		return "/api/" + r.name
	}
	return "/api/" + r.name + "/" + url.PathEscape(id)
}

func (r *remoteRepo[T, N, P]) List(ctx context.Context, parentID string) ([]T, error) {
	var out []T
	q := url.Values{r.parent: {parentID}}
	err := r.c.doJSON(ctx, http.MethodGet, r.path("")+"?"+q.Encode(), nil, &out)
	return out, err
}

func (r *remoteRepo[T, N, P]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.c.doJSON(ctx, http.MethodGet, r.path(id), nil, &out)
	return out, err
}

func (r *remoteRepo[T, N, P]) Create(ctx context.Context, in N) (T, error) {
	var out T
	err := r.c.doJSON(ctx, http.MethodPost, r.path(""), in, &out)
	return out, err
}

func (r *remoteRepo[T, N, P]) Update(ctx context.Context, id string, p P) (T, error) {
	var out T
	err := r.c.doJSON(ctx, http.MethodPatch, r.path(id), p, &out)
	return out, err
}

func (r *remoteRepo[T, N, P]) Delete(ctx context.Context, id string) error {
	return r.c.doJSON(ctx, http.MethodDelete, r.path(id), nil, nil)
}

type remoteBooks struct {
	remoteRepo[domain.Book, domain.NewBook, domain.BookPatch]
}

func (r *remoteBooks) FindByTrip(ctx context.Context, tripID string) (domain.Book, error) {
	var b domain.Book
	err := r.c.doJSON(ctx, http.MethodGet, "/api/trips/"+url.PathEscape(tripID)+"/book", nil, &b)
	return b, err
}

func (r *remoteBooks) GetOrCreate(ctx context.Context, in domain.NewBook) (domain.Book, bool, error) {
	u, err := url.Parse(r.c.BaseURL + "/api/trips/" + url.PathEscape(in.TripID) + "/book")
	if err != nil {
		return domain.Book{}, false, domain.Invalid("bad url: %v", err)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return domain.Book{}, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), bytes.NewReader(b))
	if err != nil {
		return domain.Book{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.c.client.Do(req)
	if err != nil {
		return domain.Book{}, false, domain.Persistence("PUT "+u.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		return domain.Book{}, false, errorFromResponse(http.MethodPut, u.Path, resp.StatusCode, body)
	}
	var book domain.Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return domain.Book{}, false, domain.Persistence("decode "+u.Path, err)
	}
	return book, resp.StatusCode == http.StatusCreated, nil
}
