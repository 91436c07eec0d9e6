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
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tripbook/internal/backend"
	applog "tripbook/internal/log"
	"tripbook/internal/version"
)

// NewVersionCommand prints the build version.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(cmd, opts, map[string]string{"version": version.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "tripbook %s\n", version.String())
			})
		},
	}
}

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand exposes the configured store over the HTTP JSON API.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scrapbook HTTP API",
		Long: `Serve the record API over HTTP. Remote clients use it with storage driver "remote".

Example:
  tripbook serve --addr :8080
  TB_STORAGE_DRIVER=postgres TB_STORAGE_DSN=postgres://... tripbook serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config backend.listen_addr)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	if opts.Config.Storage.Driver == "remote" {
		return NewExitError(ExitCommandError, "serve needs a database driver, not remote")
	}
	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.Backend.ListenAddr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := opts.Store(ctx)
	if err != nil {
		return err
	}
	l := applog.WithComponent("backend")
	srv, err := backend.NewServer(st, l)
	if err != nil {
		return WrapExitError(ExitFailure, "build server", err)
	}
	go func() {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		var perr error
		if p, ok := st.(backend.Pinger); ok {
			perr = p.Ping(pctx)
		}
		if perr != nil {
			l.Error("store not reachable", slog.Any("err", perr))
		}
		srv.Ready().Resolve(perr)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "tripbook %s listening on %s\n", version.String(), addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "serve", err)
	}
	l.Info("server stopped")
	return nil
}
