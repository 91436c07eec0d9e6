/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli wires the scrapbook packages into the tripbook command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"tripbook/internal/config"
	"tripbook/internal/crash"
	applog "tripbook/internal/log"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. opts carries the loaded configuration;
// flags override it.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripbook",
		Short: "Trip scrapbook editor",
		Long: `tripbook manages trip scrapbooks: one book per trip, ordered sections and
pages, and freely placed images, text and stickers on every page.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Driver != "" {
				opts.Config.Storage.Driver = strings.ToLower(opts.Driver)
			}
			if opts.DBPath != "" {
				opts.Config.Storage.Path = opts.DBPath
			}
			if opts.Verbose {
				opts.Config.Logging.Level = "debug"
			}
			initLogging(opts)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "storage driver override (sqlite|postgres|remote)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database path override")

	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBookCommand(opts))
	cmd.AddCommand(NewSectionCommand(opts))
	cmd.AddCommand(NewPageCommand(opts))
	cmd.AddCommand(NewElementCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	return cmd
}

func initLogging(opts *RootOptions) {
	lc := opts.Config.Logging
	applog.Init(applog.Options{Level: lc.Level, Format: lc.Format, AddSource: lc.Source, File: lc.File, Writer: opts.logWriter})
}

// Execute loads the configuration, runs the command line and returns the process exit code.
// A panic is turned into a crash report and the open store is closed.
func Execute(args []string) (code int) {
	cfg, err := config.Load()
	opts := &RootOptions{Config: cfg}
	initLogging(opts)
	if err != nil {
		applog.WithComponent("cli").Warn("config load failed; using defaults", slog.Any("err", err))
	}
	defer crash.Recover(opts, reportDir(cfg))

	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	err = cmd.Execute()
	if cerr := opts.Close(); cerr != nil {
		applog.WithComponent("cli").Error("close store failed", slog.Any("err", cerr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// reportDir places crash reports next to a local database.
func reportDir(cfg config.AppConfig) string {
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path == "" {
		return ""
	}
	abs, err := filepath.Abs(cfg.Storage.Path)
	if err != nil {
		return ""
	}
	return filepath.Dir(abs)
}
