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

type pageRepo struct{ s *SQLStore }

const pageCols = `id, section_id, order_index, background_color, created_at`

func scanPage(row interface{ Scan(...any) error }) (domain.Page, error) {
	var v domain.Page
	err := row.Scan(&v.ID, &v.SectionID, &v.OrderIndex, &v.BackgroundColor, timestamp{&v.CreatedAt})
	return v, err
}

func (r *pageRepo) get(ctx context.Context, db dbtx, id string) (domain.Page, error) {
	v, err := scanPage(db.QueryRowContext(ctx, r.s.q(`SELECT `+pageCols+` FROM pages WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Page{}, domain.NotFound("page", id)
	}
	return v, err
}

func (r *pageRepo) List(ctx context.Context, sectionID string) ([]domain.Page, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`SELECT `+pageCols+` FROM pages WHERE section_id=? ORDER BY order_index, created_at, id`), sectionID)
	if err != nil {
		return nil, r.s.classify("list pages", err)
	}
	defer rows.Close()
	var out []domain.Page
	for rows.Next() {
		v, err := scanPage(rows)
		if err != nil {
			return nil, r.s.classify("scan page", err)
		}
		out = append(out, v)
	}
	return out, r.s.classify("list pages", rows.Err())
}

func (r *pageRepo) Get(ctx context.Context, id string) (domain.Page, error) {
	v, err := r.get(ctx, r.s.db, id)
	if err != nil {
		return domain.Page{}, r.s.classify("get page", err)
	}
	return v, nil
}

// Create appends a page with a white background unless one is given.
func (r *pageRepo) Create(ctx context.Context, in domain.NewPage) (domain.Page, error) {
	if strings.TrimSpace(in.SectionID) == "" {
		return domain.Page{}, domain.Invalid("section id is required")
	}
	bg := strings.TrimSpace(in.BackgroundColor)
	if bg == "" {
		bg = domain.DefaultBackground
	}
	if err := (domain.PagePatch{BackgroundColor: &bg}).Validate(); err != nil {
		return domain.Page{}, err
	}
	v := domain.Page{ID: newID(), SectionID: in.SectionID, BackgroundColor: bg, CreatedAt: r.s.now().UTC()}
	err := r.s.withTx(ctx, func(tx dbtx) error {
		ok, err := r.s.exists(ctx, tx, "sections", in.SectionID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("section", in.SectionID)
		}
		if v.OrderIndex, err = r.s.nextOrder(ctx, tx, "pages", "section_id", in.SectionID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.s.q(`INSERT INTO pages (`+pageCols+`) VALUES (?, ?, ?, ?, ?)`),
			v.ID, v.SectionID, v.OrderIndex, v.BackgroundColor, r.s.d.timeArg(v.CreatedAt))
		return err
	})
	if err != nil {
		return domain.Page{}, r.s.classify("create page", err)
	}
	return v, nil
}

func (r *pageRepo) Update(ctx context.Context, id string, p domain.PagePatch) (domain.Page, error) {
	if err := p.Validate(); err != nil {
		return domain.Page{}, err
	}
	var out domain.Page
	err := r.s.withTx(ctx, func(tx dbtx) error {
		v, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.BackgroundColor != nil {
			v.BackgroundColor = strings.TrimSpace(*p.BackgroundColor)
		}
		if _, err := tx.ExecContext(ctx, r.s.q(`UPDATE pages SET background_color=? WHERE id=?`), v.BackgroundColor, id); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return domain.Page{}, r.s.classify("update page", err)
	}
	return out, nil
}

// Delete removes the page and, by cascade, its elements.
func (r *pageRepo) Delete(ctx context.Context, id string) error {
	return r.s.deleteByID(ctx, "pages", "page", id)
}
