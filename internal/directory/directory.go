/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package directory is the book, section and page hierarchy a canvas session is opened against.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tripbook/internal/domain"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
)

// Store is the part of storage.Store the directory needs.
type Store interface {
	Books() storage.BookRepository
	Sections() storage.SectionRepository
	Pages() storage.PageRepository
}

// Directory wraps the container repositories with the scrapbook's lifecycle rules.
type Directory struct {
	st  Store
	log *slog.Logger
	sf  singleflight.Group
}

// New returns a directory over st.
func New(st Store, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = applog.WithComponent("directory")
	}
	return &Directory{st: st, log: logger}
}

// GetOrCreateBook returns the trip's book, creating it on first access.
// Concurrent calls for the same trip share one store round trip and the store's
// unique trip constraint guarantees a single book across processes.
func (d *Directory) GetOrCreateBook(ctx context.Context, tripID, tripName string) (domain.Book, error) {
	tripID = strings.TrimSpace(tripID)
	if tripID == "" {
		return domain.Book{}, domain.Invalid("trip id is required")
	}
	// the shared lookup outlives any single caller; each caller waits on its own ctx
	fctx := context.WithoutCancel(ctx)
	ch := d.sf.DoChan(tripID, func() (any, error) {
		b, err := d.st.Books().FindByTrip(fctx, tripID)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Book{}, err
		}
		b, created, err := d.st.Books().GetOrCreate(fctx, domain.NewBook{
			TripID:      tripID,
			Title:       domain.BookTitleFor(tripName),
			Description: domain.DefaultBookDescription,
		})
		if err != nil {
			return domain.Book{}, err
		}
		if created {
			d.log.Info("book created", slog.String("trip", tripID), slog.String("book", b.ID))
		}
		return b, nil
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return domain.Book{}, ctx.Err()
	}
	if r.Err != nil {
		d.log.Error("get or create book failed", slog.String("trip", tripID), slog.Any("err", r.Err))
		return domain.Book{}, domain.Persistence("get or create book", r.Err)
	}
	if r.Shared {
		d.log.Debug("book lookup shared", slog.String("trip", tripID))
	}
	return r.Val.(domain.Book), nil
}

// UpdateBook changes title, description or cover image.
func (d *Directory) UpdateBook(ctx context.Context, id string, p domain.BookPatch) (domain.Book, error) {
	if err := p.Validate(); err != nil {
		return domain.Book{}, err
	}
	b, err := d.st.Books().Update(ctx, id, p)
	return b, domain.Persistence("update book", err)
}

// DeleteBook removes a book with all its sections, pages and elements.
func (d *Directory) DeleteBook(ctx context.Context, id string) error {
	return domain.Persistence("delete book", d.st.Books().Delete(ctx, id))
}

// Sections lists a book's sections in order.
func (d *Directory) Sections(ctx context.Context, bookID string) ([]domain.Section, error) {
	s, err := d.st.Sections().List(ctx, bookID)
	return s, domain.Persistence("list sections", err)
}

// AddSection appends a section to the end of the book.
func (d *Directory) AddSection(ctx context.Context, bookID, title string) (domain.Section, error) {
	in := domain.NewSection{BookID: bookID, Title: strings.TrimSpace(title)}
	if err := in.Validate(); err != nil {
		return domain.Section{}, err
	}
	s, err := d.st.Sections().Create(ctx, in)
	if err != nil {
		return domain.Section{}, domain.Persistence("add section", err)
	}
	d.log.Debug("section added", slog.String("book", bookID), slog.String("section", s.ID), slog.Int("order", s.OrderIndex))
	return s, nil
}

// RenameSection changes a section title.
func (d *Directory) RenameSection(ctx context.Context, id, title string) (domain.Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Section{}, domain.Invalid("section title must not be empty")
	}
	s, err := d.st.Sections().Update(ctx, id, domain.SectionPatch{Title: &title})
	return s, domain.Persistence("rename section", err)
}

// DeleteSection removes a section and everything below it.
func (d *Directory) DeleteSection(ctx context.Context, id string) error {
	return domain.Persistence("delete section", d.st.Sections().Delete(ctx, id))
}

// Pages lists a section's pages in order.
func (d *Directory) Pages(ctx context.Context, sectionID string) ([]domain.Page, error) {
	p, err := d.st.Pages().List(ctx, sectionID)
	return p, domain.Persistence("list pages", err)
}

// AddPage appends a page to the end of the section. An empty background means white.
func (d *Directory) AddPage(ctx context.Context, sectionID, background string) (domain.Page, error) {
	if strings.TrimSpace(sectionID) == "" {
		return domain.Page{}, domain.Invalid("section id is required")
	}
	p, err := d.st.Pages().Create(ctx, domain.NewPage{SectionID: sectionID, BackgroundColor: background})
	if err != nil {
		return domain.Page{}, domain.Persistence("add page", err)
	}
	d.log.Debug("page added", slog.String("section", sectionID), slog.String("page", p.ID), slog.Int("order", p.OrderIndex))
	return p, nil
}

// DeletePage removes a page and its elements.
func (d *Directory) DeletePage(ctx context.Context, id string) error {
	return domain.Persistence("delete page", d.st.Pages().Delete(ctx, id))
}

// SectionNode is a section with its pages.
type SectionNode struct {
	Section domain.Section `json:"section"`
	Pages   []domain.Page  `json:"pages"`
}

// Tree is a whole book in reading order.
type Tree struct {
	Book     domain.Book   `json:"book"`
	Sections []SectionNode `json:"sections"`
}

// PageIDs returns every page of the book in reading order.
func (t Tree) PageIDs() []string {
	var ids []string
	for _, s := range t.Sections {
		for _, p := range s.Pages {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Tree loads a book with all sections and pages. Sections load their pages concurrently.
func (d *Directory) Tree(ctx context.Context, bookID string) (Tree, error) {
	b, err := d.st.Books().Get(ctx, bookID)
	if err != nil {
		return Tree{}, domain.Persistence("load book", err)
	}
	secs, err := d.Sections(ctx, bookID)
	if err != nil {
		return Tree{}, err
	}
	nodes := make([]SectionNode, len(secs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, s := range secs {
		nodes[i].Section = s
		g.Go(func() error {
			pages, err := d.Pages(gctx, s.ID)
			nodes[i].Pages = pages
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Tree{}, err
	}
	return Tree{Book: b, Sections: nodes}, nil
}
