/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"tripbook/internal/domain"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
)

const keyPrefix = "tripbook:elements:"

func elementsKey(pageID string) string { return keyPrefix + pageID }

// Store decorates an inner store with the element-list cache.
// Cache errors never fail an operation; they are logged and the inner store answers.
type Store struct {
	inner storage.Store
	kv    KV
	ttl   time.Duration
	log   *slog.Logger

	elements *cachedElements
	pages    *cachedPages
	sections *cachedSections
	books    *cachedBooks
}

var _ storage.Store = (*Store)(nil)

// New wraps inner. A non-positive ttl defaults to five minutes.
func New(inner storage.Store, kv KV, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &Store{inner: inner, kv: kv, ttl: ttl, log: applog.WithComponent("rediscache")}
	s.elements = &cachedElements{ElementRepository: inner.Elements(), s: s}
	s.pages = &cachedPages{PageRepository: inner.Pages(), s: s}
	s.sections = &cachedSections{SectionRepository: inner.Sections(), s: s}
	s.books = &cachedBooks{BookRepository: inner.Books(), s: s}
	return s
}

func (s *Store) Books() storage.BookRepository       { return s.books }
func (s *Store) Sections() storage.SectionRepository { return s.sections }
func (s *Store) Pages() storage.PageRepository       { return s.pages }
func (s *Store) Elements() storage.ElementRepository { return s.elements }

// Close closes both the cache connection and the inner store.
func (s *Store) Close() error {
	return errors.Join(s.kv.Close(), s.inner.Close())
}

func (s *Store) invalidate(ctx context.Context, pageIDs ...string) {
	if len(pageIDs) == 0 {
		return
	}
	keys := make([]string, len(pageIDs))
	for i, id := range pageIDs {
		keys[i] = elementsKey(id)
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache invalidation failed", slog.Int("keys", len(keys)), slog.Any("err", err))
	}
}

type cachedElements struct {
	storage.ElementRepository
	s *Store
}

func (c *cachedElements) List(ctx context.Context, pageID string) ([]domain.Element, error) {
	key := elementsKey(pageID)
	if raw, ok, err := c.s.kv.Get(ctx, key); err != nil {
		c.s.log.Warn("cache read failed", slog.String("page", pageID), slog.Any("err", err))
	} else if ok {
		var els []domain.Element
		if err := json.Unmarshal([]byte(raw), &els); err == nil {
			return els, nil
		}
		c.s.log.Warn("cache entry corrupt; refetching", slog.String("page", pageID))
	}
	els, err := c.ElementRepository.List(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(els); err == nil {
		if err := c.s.kv.Set(ctx, key, string(b), c.s.ttl); err != nil {
			c.s.log.Warn("cache write failed", slog.String("page", pageID), slog.Any("err", err))
		}
	}
	return els, nil
}

func (c *cachedElements) Create(ctx context.Context, in domain.NewElement) (domain.Element, error) {
	e, err := c.ElementRepository.Create(ctx, in)
	if err == nil {
		c.s.invalidate(ctx, e.PageID)
	}
	return e, err
}

func (c *cachedElements) Update(ctx context.Context, id string, p domain.ElementPatch) (domain.Element, error) {
	e, err := c.ElementRepository.Update(ctx, id, p)
	if err == nil {
		c.s.invalidate(ctx, e.PageID)
	}
	return e, err
}

func (c *cachedElements) Delete(ctx context.Context, id string) error {
	cur, gerr := c.ElementRepository.Get(ctx, id)
	if err := c.ElementRepository.Delete(ctx, id); err != nil {
		return err
	}
	if gerr == nil {
		c.s.invalidate(ctx, cur.PageID)
	}
	return nil
}

type cachedPages struct {
	storage.PageRepository
	s *Store
}

func (c *cachedPages) Delete(ctx context.Context, id string) error {
	if err := c.PageRepository.Delete(ctx, id); err != nil {
		return err
	}
	c.s.invalidate(ctx, id)
	return nil
}

type cachedSections struct {
	storage.SectionRepository
	s *Store
}

// pagesOf collects the page ids of a section before a cascading delete.
func (s *Store) pagesOf(ctx context.Context, sectionID string) []string {
	pages, err := s.inner.Pages().List(ctx, sectionID)
	if err != nil {
		s.log.Warn("list pages for invalidation failed", slog.String("section", sectionID), slog.Any("err", err))
		return nil
	}
	ids := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ids
}

func (c *cachedSections) Delete(ctx context.Context, id string) error {
	ids := c.s.pagesOf(ctx, id)
	if err := c.SectionRepository.Delete(ctx, id); err != nil {
		return err
	}
	c.s.invalidate(ctx, ids...)
	return nil
}

type cachedBooks struct {
	storage.BookRepository
	s *Store
}

func (c *cachedBooks) Delete(ctx context.Context, id string) error {
	var ids []string
	if secs, err := c.s.inner.Sections().List(ctx, id); err == nil {
		for _, sec := range secs {
			ids = append(ids, c.s.pagesOf(ctx, sec.ID)...)
		}
	}
	if err := c.BookRepository.Delete(ctx, id); err != nil {
		return err
	}
	c.s.invalidate(ctx, ids...)
	return nil
}
