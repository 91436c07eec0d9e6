/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"tripbook/internal/backend"
	"tripbook/internal/canvas"
	"tripbook/internal/config"
	"tripbook/internal/directory"
	"tripbook/internal/interact"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
	"tripbook/internal/storage/rediscache"
	"tripbook/internal/vector"
)

// RootOptions holds global flags and the lazily opened store shared by all commands.
type RootOptions struct {
	Config  config.AppConfig
	Verbose bool
	Format  string // "json" | "text"
	Driver  string
	DBPath  string

	// logWriter replaces stderr for the console log; used by tests.
	logWriter io.Writer

	mu    sync.Mutex
	store storage.Store
}

// Store opens the configured backing store on first use.
func (o *RootOptions) Store(ctx context.Context) (storage.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store != nil {
		return o.store, nil
	}
	st, err := openStore(ctx, o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	o.store = st
	return st, nil
}

// Close releases the store if one was opened.
func (o *RootOptions) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store == nil {
		return nil
	}
	err := o.store.Close()
	o.store = nil
	return err
}

// openStore builds the store named by cfg.Storage.Driver and wraps it with the
// Redis element cache when an address is configured.
func openStore(ctx context.Context, cfg config.AppConfig) (storage.Store, error) {
	l := applog.WithOperation(applog.WithComponent("cli"), "open_store")
	var st storage.Store
	switch cfg.Storage.Driver {
	case "", "sqlite":
		s, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		if cfg.Storage.DSN == "" {
			return nil, errors.New("postgres driver requires storage.dsn")
		}
		s, err := storage.OpenPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		st = s
	case "remote":
		st = backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout())
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if addr := cfg.Cache.RedisAddr; addr != "" {
		l.Debug("element cache enabled", slog.String("addr", addr), slog.Int("db", cfg.Cache.RedisDB))
		st = rediscache.New(st, rediscache.NewRedisKV(addr, "", cfg.Cache.RedisDB), cfg.Cache.TTL())
	}
	l.Debug("store ready", slog.String("driver", cfg.Storage.Driver))
	return st, nil
}

func (o *RootOptions) directory(ctx context.Context) (*directory.Directory, error) {
	st, err := o.Store(ctx)
	if err != nil {
		return nil, err
	}
	return directory.New(st, applog.WithComponent("directory")), nil
}

func (o *RootOptions) canvasSize() vector.Size {
	sz := vector.Size{W: float64(o.Config.Editor.CanvasWidth), H: float64(o.Config.Editor.CanvasHeight)}
	if !sz.Valid() {
		return canvas.DefaultCanvasSize
	}
	return sz
}

// editPage opens an editing session for pageID, runs fn with the session and
// a controller bound to it, then waits until every write has been persisted.
// A failed background write is reported as the command's error.
func (o *RootOptions) editPage(ctx context.Context, pageID string, fn func(s *canvas.Session, c *interact.Controller) error) error {
	st, err := o.Store(ctx)
	if err != nil {
		return err
	}
	var mu sync.Mutex
	var writeErr error
	s, err := canvas.Open(ctx, st, pageID, canvas.Options{
		Logger:        applog.WithPage(applog.WithComponent("canvas"), pageID),
		FlushInterval: o.Config.Editor.FlushInterval(),
		CanvasSize:    o.canvasSize(),
		UndoDepth:     o.Config.Editor.UndoDepth,
		OnError: func(err error) {
			mu.Lock()
			if writeErr == nil {
				writeErr = err
			}
			mu.Unlock()
		},
	})
	if err != nil {
		return err
	}
	c := interact.New(s, s, applog.WithPage(applog.WithComponent("interact"), pageID))
	ferr := fn(s, c)
	cerr := s.Close(ctx)
	mu.Lock()
	defer mu.Unlock()
	return errors.Join(ferr, cerr, writeErr)
}
