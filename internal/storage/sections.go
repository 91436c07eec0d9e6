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
	"strings"

	"tripbook/internal/domain"
)

type sectionRepo struct{ s *SQLStore }

const sectionCols = `id, book_id, title, order_index, created_at`

func scanSection(row interface{ Scan(...any) error }) (domain.Section, error) {
	var v domain.Section
	err := row.Scan(&v.ID, &v.BookID, &v.Title, &v.OrderIndex, timestamp{&v.CreatedAt})
	return v, err
}

func (r *sectionRepo) get(ctx context.Context, db dbtx, id string) (domain.Section, error) {
	v, err := scanSection(db.QueryRowContext(ctx, r.s.q(`SELECT `+sectionCols+` FROM sections WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Section{}, domain.NotFound("section", id)
	}
	return v, err
}

// nextOrder returns max(order_index)+1 among the children of parent, 0 for none.
func (s *SQLStore) nextOrder(ctx context.Context, db dbtx, table, parentCol, parentID string) (int, error) {
	var next int
	err := db.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(order_index), -1) + 1 FROM `+table+` WHERE `+parentCol+`=?`), parentID).Scan(&next)
	return next, err
}

func (r *sectionRepo) List(ctx context.Context, bookID string) ([]domain.Section, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`SELECT `+sectionCols+` FROM sections WHERE book_id=? ORDER BY order_index, created_at, id`), bookID)
	if err != nil {
		return nil, r.s.classify("list sections", err)
	}
	defer rows.Close()
	var out []domain.Section
	for rows.Next() {
		v, err := scanSection(rows)
		if err != nil {
			return nil, r.s.classify("scan section", err)
		}
		out = append(out, v)
	}
	return out, r.s.classify("list sections", rows.Err())
}

func (r *sectionRepo) Get(ctx context.Context, id string) (domain.Section, error) {
	v, err := r.get(ctx, r.s.db, id)
	if err != nil {
		return domain.Section{}, r.s.classify("get section", err)
	}
	return v, nil
}

// Create appends a section at the end of its book.
func (r *sectionRepo) Create(ctx context.Context, in domain.NewSection) (domain.Section, error) {
	if err := in.Validate(); err != nil {
		return domain.Section{}, err
	}
	v := domain.Section{ID: newID(), BookID: in.BookID, Title: strings.TrimSpace(in.Title), CreatedAt: r.s.now().UTC()}
	err := r.s.withTx(ctx, func(tx dbtx) error {
		ok, err := r.s.exists(ctx, tx, "books", in.BookID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("book", in.BookID)
		}
		if v.OrderIndex, err = r.s.nextOrder(ctx, tx, "sections", "book_id", in.BookID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.s.q(`INSERT INTO sections (`+sectionCols+`) VALUES (?, ?, ?, ?, ?)`),
			v.ID, v.BookID, v.Title, v.OrderIndex, r.s.d.timeArg(v.CreatedAt))
		return err
	})
	if err != nil {
		return domain.Section{}, r.s.classify("create section", err)
	}
	return v, nil
}

func (r *sectionRepo) Update(ctx context.Context, id string, p domain.SectionPatch) (domain.Section, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return domain.Section{}, domain.Invalid("section title is required")
	}
	var out domain.Section
	err := r.s.withTx(ctx, func(tx dbtx) error {
		v, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Title != nil {
			v.Title = strings.TrimSpace(*p.Title)
		}
		if _, err := tx.ExecContext(ctx, r.s.q(`UPDATE sections SET title=? WHERE id=?`), v.Title, id); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return domain.Section{}, r.s.classify("update section", err)
	}
	return out, nil
}

// Delete removes the section with its pages and their elements.
func (r *sectionRepo) Delete(ctx context.Context, id string) error {
	return r.s.deleteByID(ctx, "sections", "section", id)
}
