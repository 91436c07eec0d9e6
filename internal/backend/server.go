/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend exposes a storage.Store over HTTP/JSON and provides the
// matching client, which itself implements storage.Store.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tripbook/internal/domain"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
	"tripbook/internal/version"
)

const maxBody = 1 << 20

// Pinger is implemented by stores that can report database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the record CRUD contract of a store.
type Server struct {
	st      storage.Store
	log     *slog.Logger
	schemas schemas
	gate    *Gate
	mux     *http.ServeMux
}

// NewServer builds the HTTP routes for st. The readiness gate starts out loading;
// call Ready().Resolve once startup work is done.
func NewServer(st storage.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.WithComponent("backend")
	}
	sc, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{st: st, log: logger, schemas: sc, gate: NewGate(), mux: http.NewServeMux()}
	s.gate.Start()
	s.routes()
	return s, nil
}

// Ready returns the readiness gate reported by /readyz.
func (s *Server) Ready() *Gate { return s.gate }

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		lvl := slog.LevelDebug
		if rec.status >= 500 {
			lvl = slog.LevelError
		}
		s.log.Log(r.Context(), lvl, "request",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rec.status), slog.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("tripbook " + version.String()))
	})

	books := func() storage.Repository[domain.Book, domain.NewBook, domain.BookPatch] { return s.st.Books() }
	mountRepo(s, "books", "trip_id", books, "new_book", "book_patch")
	mountRepo(s, "sections", "book_id", s.st.Sections, "new_section", "section_patch")
	mountRepo(s, "pages", "section_id", s.st.Pages, "new_page", "page_patch")
	mountRepo(s, "elements", "page_id", s.st.Elements, "new_element", "element_patch")

	s.mux.HandleFunc("GET /api/trips/{trip}/book", func(w http.ResponseWriter, r *http.Request) {
		b, err := s.st.Books().FindByTrip(r.Context(), r.PathValue("trip"))
		s.respond(w, r, http.StatusOK, b, err)
	})
	// PUT is the idempotent get-or-create; 201 when this call created the book.
	s.mux.HandleFunc("PUT /api/trips/{trip}/book", func(w http.ResponseWriter, r *http.Request) {
		var in domain.NewBook
		if err := s.decode(r, "new_book", &in, map[string]any{"trip_id": r.PathValue("trip")}); err != nil {
			s.respond(w, r, 0, nil, err)
			return
		}
		b, created, err := s.st.Books().GetOrCreate(r.Context(), in)
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		s.respond(w, r, status, b, err)
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if st := s.gate.State(); st != Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(st.String()))
		return
	}
	if p, ok := s.st.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// mountRepo registers list/get/create/update/delete routes for one entity:
//
//	GET    /api/{name}?{parent}=id
//	POST   /api/{name}
//	GET    /api/{name}/{id}
//	PATCH  /api/{name}/{id}
//	DELETE /api/{name}/{id}
func mountRepo[T, N, P any](s *Server, name, parent string, repo func() storage.Repository[T, N, P], createSchema, patchSchema string) {
	base := "/api/" + name
	s.mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		pid := strings.TrimSpace(r.URL.Query().Get(parent))
		if pid == "" {
			s.respond(w, r, 0, nil, domain.Invalid("query parameter %s is required", parent))
			return
		}
		list, err := repo().List(r.Context(), pid)
		if list == nil {
			list = []T{}
		}
		s.respond(w, r, http.StatusOK, list, err)
	})
	s.mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var in N
		if err := s.decode(r, createSchema, &in, nil); err != nil {
			s.respond(w, r, 0, nil, err)
			return
		}
		v, err := repo().Create(r.Context(), in)
		s.respond(w, r, http.StatusCreated, v, err)
	})
	s.mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		v, err := repo().Get(r.Context(), r.PathValue("id"))
		s.respond(w, r, http.StatusOK, v, err)
	})
	s.mux.HandleFunc("PATCH "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p P
		if err := s.decode(r, patchSchema, &p, nil); err != nil {
			s.respond(w, r, 0, nil, err)
			return
		}
		v, err := repo().Update(r.Context(), r.PathValue("id"), p)
		s.respond(w, r, http.StatusOK, v, err)
	})
	s.mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := repo().Delete(r.Context(), r.PathValue("id"))
		if err != nil {
			s.respond(w, r, 0, nil, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// decode validates the request body against a schema and unmarshals it into dst.
// Fields in force overwrite the body before validation.
func (s *Server) decode(r *http.Request, schema string, dst any, force map[string]any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	_ = r.Body.Close()
	if err != nil {
		return domain.Invalid("read body: %v", err)
	}
	if len(force) > 0 {
		m := map[string]any{}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &m); err != nil {
				return domain.Invalid("malformed JSON: %v", err)
			}
		}
		for k, v := range force {
			m[k] = v
		}
		if body, err = json.Marshal(m); err != nil {
			return err
		}
	}
	if err := s.schemas.validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.Invalid("malformed JSON: %v", err)
	}
	return nil
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		if st, _ := statusFor(err); st >= 500 {
			s.log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}
