/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"

	"tripbook/internal/domain"
)

// Repository is the record-CRUD contract offered for every entity.
// T is the row type, N the creation input and P the partial update.
// Errors are classified with the domain error sentinels.
type Repository[T, N, P any] interface {
	// List returns the children of parentID in their canonical order.
	List(ctx context.Context, parentID string) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	// Create assigns the identifier and creation timestamp.
	Create(ctx context.Context, in N) (T, error)
	Update(ctx context.Context, id string, p P) (T, error)
	Delete(ctx context.Context, id string) error
}

// BookRepository adds the per-trip lookups to the book CRUD.
type BookRepository interface {
	Repository[domain.Book, domain.NewBook, domain.BookPatch]
	// FindByTrip returns the book of a trip or a NotFound error.
	FindByTrip(ctx context.Context, tripID string) (domain.Book, error)
	// GetOrCreate inserts in unless the trip already has a book, then returns the trip's book.
	// created reports whether this call inserted it.
	GetOrCreate(ctx context.Context, in domain.NewBook) (b domain.Book, created bool, err error)
}

type (
	SectionRepository = Repository[domain.Section, domain.NewSection, domain.SectionPatch]
	PageRepository    = Repository[domain.Page, domain.NewPage, domain.PagePatch]
	ElementRepository = Repository[domain.Element, domain.NewElement, domain.ElementPatch]
)

// Store groups the repositories of one backing store.
type Store interface {
	Books() BookRepository
	Sections() SectionRepository
	Pages() PageRepository
	Elements() ElementRepository
	Close() error
}
