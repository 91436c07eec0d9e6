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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tripbook/internal/domain"
	applog "tripbook/internal/log"
)

// dialect captures the few differences between SQLite and PostgreSQL.
type dialect struct {
	name        string
	placeholder byte
	// native time values (postgres) vs RFC3339 text (sqlite)
	nativeTime bool
}

var (
	sqliteDialect   = dialect{name: "sqlite", placeholder: '?'}
	postgresDialect = dialect{name: "postgres", placeholder: '$', nativeTime: true}
)

func (d dialect) timeArg(t time.Time) any {
	if d.nativeTime {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// dbtx is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db  *sql.DB
	d   dialect
	log *slog.Logger
	now func() time.Time

	books    *bookRepo
	sections *sectionRepo
	pages    *pageRepo
	elements *elementRepo
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	s := &SQLStore{db: db, d: d, log: applog.WithComponent("storage").With(slog.String("dialect", d.name)), now: time.Now}
	s.books = &bookRepo{s}
	s.sections = &sectionRepo{s}
	s.pages = &pageRepo{s}
	s.elements = &elementRepo{s}
	return s
}

func (s *SQLStore) Books() BookRepository       { return s.books }
func (s *SQLStore) Sections() SectionRepository { return s.sections }
func (s *SQLStore) Pages() PageRepository       { return s.pages }
func (s *SQLStore) Elements() ElementRepository { return s.elements }

// DB exposes the underlying handle for diagnostics and tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// Ping checks connectivity; used by readiness probes.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) q(query string) string { return rebind(query, s.d.placeholder) }

func newID() string { return uuid.NewString() }

// withTx runs fn inside a transaction, committing on success and rolling back on error or panic.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx dbtx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// classify maps driver errors onto the domain error classes.
func (s *SQLStore) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Persistence(op, err)
	}
	if !domain.IsClassified(err) {
		s.log.Error("storage operation failed", slog.String("op", op), slog.Any("err", err))
	}
	return domain.Persistence(op, err)
}

// exists reports whether a row with id exists in table.
func (s *SQLStore) exists(ctx context.Context, db dbtx, table, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, s.q(`SELECT 1 FROM `+table+` WHERE id=?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// deleteByID removes one row; a missing row is NotFound.
func (s *SQLStore) deleteByID(ctx context.Context, table, entity, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE id=?`), id)
	if err != nil {
		return s.classify("delete "+entity, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}

// timestamp scans both native time values and the text form written for SQLite.
type timestamp struct{ t *time.Time }

func (ts timestamp) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*ts.t = time.Time{}
	case time.Time:
		*ts.t = x.UTC()
	case string:
		return ts.parse(x)
	case []byte:
		return ts.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
	return nil
}

func (ts timestamp) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// styleColumn scans a JSON object column into a Style.
type styleColumn struct{ s *domain.Style }

func (c styleColumn) Scan(v any) error {
	var raw []byte
	switch x := v.(type) {
	case nil:
		*c.s = nil
		return nil
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		return fmt.Errorf("unsupported style_data type %T", v)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*c.s = nil
		return nil
	}
	var st domain.Style
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("decode style_data: %w", err)
	}
	if len(st) == 0 {
		st = nil
	}
	*c.s = st
	return nil
}

func styleArg(st domain.Style) (string, error) {
	if st == nil {
		return "{}", nil
	}
	b, err := json.Marshal(st)
	if err != nil {
		return "", domain.Invalid("style_data: %v", err)
	}
	return string(b), nil
}
