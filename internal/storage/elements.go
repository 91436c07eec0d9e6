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

	"tripbook/internal/domain"
)

type elementRepo struct{ s *SQLStore }

const elementCols = `id, page_id, element_type, content, position_x, position_y, width, height, rotation, z_index, style_data, created_at`

func scanElement(row interface{ Scan(...any) error }) (domain.Element, error) {
	var e domain.Element
	var kind string
	err := row.Scan(&e.ID, &e.PageID, &kind, &e.Content, &e.X, &e.Y, &e.Width, &e.Height, &e.Rotation, &e.ZIndex,
		styleColumn{&e.Style}, timestamp{&e.CreatedAt})
	e.Kind = domain.ElementKind(kind)
	return e, err
}

func (r *elementRepo) get(ctx context.Context, db dbtx, id string) (domain.Element, error) {
	e, err := scanElement(db.QueryRowContext(ctx, r.s.q(`SELECT `+elementCols+` FROM page_elements WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Element{}, domain.NotFound("element", id)
	}
	return e, err
}

// List returns the elements of a page in stacking order.
func (r *elementRepo) List(ctx context.Context, pageID string) ([]domain.Element, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`SELECT `+elementCols+` FROM page_elements WHERE page_id=? ORDER BY z_index, created_at, id`), pageID)
	if err != nil {
		return nil, r.s.classify("list elements", err)
	}
	defer rows.Close()
	var out []domain.Element
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, r.s.classify("scan element", err)
		}
		out = append(out, e)
	}
	return out, r.s.classify("list elements", rows.Err())
}

func (r *elementRepo) Get(ctx context.Context, id string) (domain.Element, error) {
	e, err := r.get(ctx, r.s.db, id)
	if err != nil {
		return domain.Element{}, r.s.classify("get element", err)
	}
	return e, nil
}

// Create stores a new element. Geometry is clamped into the model's ranges and
// a missing size falls back to the kind's default footprint.
func (r *elementRepo) Create(ctx context.Context, in domain.NewElement) (domain.Element, error) {
	if err := in.Validate(); err != nil {
		return domain.Element{}, err
	}
	w, h := in.Width, in.Height
	if w == 0 && h == 0 {
		w, h = domain.DefaultSize(in.Kind)
	}
	e := domain.Element{
		ID: newID(), PageID: in.PageID, Kind: in.Kind, Content: in.Content,
		X: domain.ClampPosition(in.X), Y: domain.ClampPosition(in.Y),
		Width: domain.ClampSize(w), Height: domain.ClampSize(h),
		Rotation: domain.WrapRotation(in.Rotation), ZIndex: in.ZIndex,
		Style: in.Style.Clone(), CreatedAt: r.s.now().UTC(),
	}
	style, err := styleArg(e.Style)
	if err != nil {
		return domain.Element{}, err
	}
	err = r.s.withTx(ctx, func(tx dbtx) error {
		ok, err := r.s.exists(ctx, tx, "pages", in.PageID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("page", in.PageID)
		}
		_, err = tx.ExecContext(ctx, r.s.q(`INSERT INTO page_elements (`+elementCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.PageID, string(e.Kind), e.Content, e.X, e.Y, e.Width, e.Height, e.Rotation, e.ZIndex, style, r.s.d.timeArg(e.CreatedAt))
		return err
	})
	if err != nil {
		return domain.Element{}, r.s.classify("create element", err)
	}
	return e, nil
}

// Update merges p into the stored element. Style keys merge; a nil style value removes the key.
func (r *elementRepo) Update(ctx context.Context, id string, p domain.ElementPatch) (domain.Element, error) {
	if err := p.Validate(); err != nil {
		return domain.Element{}, err
	}
	p = p.Normalize()
	var out domain.Element
	err := r.s.withTx(ctx, func(tx dbtx) error {
		cur, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		next := p.Apply(cur)
		style, err := styleArg(next.Style)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.s.q(`UPDATE page_elements SET content=?, position_x=?, position_y=?, width=?, height=?, rotation=?, style_data=? WHERE id=?`),
			next.Content, next.X, next.Y, next.Width, next.Height, next.Rotation, style, id); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.Element{}, r.s.classify("update element", err)
	}
	return out, nil
}

func (r *elementRepo) Delete(ctx context.Context, id string) error {
	return r.s.deleteByID(ctx, "page_elements", "element", id)
}
