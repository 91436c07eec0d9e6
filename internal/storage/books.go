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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tripbook/internal/domain"
)

type bookRepo struct{ s *SQLStore }

const bookCols = `id, trip_id, title, description, cover_image, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (domain.Book, error) {
	var b domain.Book
	err := row.Scan(&b.ID, &b.TripID, &b.Title, &b.Description, &b.CoverImage, timestamp{&b.CreatedAt}, timestamp{&b.UpdatedAt})
	return b, err
}

func (r *bookRepo) get(ctx context.Context, db dbtx, where string, arg string) (domain.Book, error) {
	b, err := scanBook(db.QueryRowContext(ctx, r.s.q(`SELECT `+bookCols+` FROM books WHERE `+where+`=?`), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, domain.NotFound("book", arg)
	}
	if err != nil {
		return domain.Book{}, r.s.classify("get book", err)
	}
	return b, nil
}

// List returns the books of a trip; at most one exists.
func (r *bookRepo) List(ctx context.Context, tripID string) ([]domain.Book, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`SELECT `+bookCols+` FROM books WHERE trip_id=? ORDER BY created_at, id`), tripID)
	if err != nil {
		return nil, r.s.classify("list books", err)
	}
	defer rows.Close()
	var out []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, r.s.classify("scan book", err)
		}
		out = append(out, b)
	}
	return out, r.s.classify("list books", rows.Err())
}

func (r *bookRepo) Get(ctx context.Context, id string) (domain.Book, error) {
	return r.get(ctx, r.s.db, "id", id)
}

func (r *bookRepo) FindByTrip(ctx context.Context, tripID string) (domain.Book, error) {
	return r.get(ctx, r.s.db, "trip_id", tripID)
}

// insertIfAbsent relies on the unique trip_id; it reports whether a row was written.
func (r *bookRepo) insertIfAbsent(ctx context.Context, in domain.NewBook) (bool, error) {
	if strings.TrimSpace(in.TripID) == "" {
		return false, domain.Invalid("trip id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return false, domain.Invalid("book title is required")
	}
	now := r.s.now()
	res, err := r.s.db.ExecContext(ctx, r.s.q(`INSERT INTO books (`+bookCols+`) VALUES (?, ?, ?, ?, '', ?, ?) ON CONFLICT (trip_id) DO NOTHING`),
		newID(), in.TripID, in.Title, in.Description, r.s.d.timeArg(now), r.s.d.timeArg(now))
	if err != nil {
		return false, r.s.classify("insert book", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.s.classify("insert book", err)
	}
	return n == 1, nil
}

// Create inserts a book; a second book for the same trip is a conflict.
func (r *bookRepo) Create(ctx context.Context, in domain.NewBook) (domain.Book, error) {
	created, err := r.insertIfAbsent(ctx, in)
	if err != nil {
		return domain.Book{}, err
	}
	if !created {
		return domain.Book{}, fmt.Errorf("trip %q already has a book: %w", in.TripID, domain.ErrConflict)
	}
	return r.FindByTrip(ctx, in.TripID)
}

func (r *bookRepo) GetOrCreate(ctx context.Context, in domain.NewBook) (domain.Book, bool, error) {
	created, err := r.insertIfAbsent(ctx, in)
	if err != nil {
		return domain.Book{}, false, err
	}
	b, err := r.FindByTrip(ctx, in.TripID)
	return b, created, err
}

func (r *bookRepo) Update(ctx context.Context, id string, p domain.BookPatch) (domain.Book, error) {
	if err := p.Validate(); err != nil {
		return domain.Book{}, err
	}
	var out domain.Book
	err := r.s.withTx(ctx, func(tx dbtx) error {
		b, err := r.get(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if p.Title != nil {
			b.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			b.Description = *p.Description
		}
		if p.CoverImage != nil {
			b.CoverImage = *p.CoverImage
		}
		b.UpdatedAt = r.s.now().UTC()
		if _, err := tx.ExecContext(ctx, r.s.q(`UPDATE books SET title=?, description=?, cover_image=?, updated_at=? WHERE id=?`),
			b.Title, b.Description, b.CoverImage, r.s.d.timeArg(b.UpdatedAt), id); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Book{}, r.s.classify("update book", err)
	}
	return out, nil
}

func (r *bookRepo) Delete(ctx context.Context, id string) error {
	return r.s.deleteByID(ctx, "books", "book", id)
}
