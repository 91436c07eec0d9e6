/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"tripbook/internal/export"
)

// ExportOptions holds flags for the export commands.
type ExportOptions struct {
	*RootOptions
	Out     string
	Type    string
	Scale   float64
	Outline bool
}

func (o *ExportOptions) options() export.Options {
	return export.Options{
		Canvas: o.canvasSize(),
		PDF:    export.PDFOptions{Outline: o.Outline},
		PNG:    export.PNGOptions{Scale: o.Scale},
	}
}

// NewExportCommand renders pages and books to files.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export pages or whole books",
		Long: `Export a page as PDF, SVG or PNG, or a whole book as one PDF in section
and page order.

Example:
  tripbook export page <page-id> -o day1.svg
  tripbook export book <book-id> -o lisbon.pdf`,
	}
	cmd.PersistentFlags().StringVarP(&opts.Out, "output", "o", "", "output file (required)")
	cmd.PersistentFlags().BoolVar(&opts.Outline, "outline", false, "outline element boxes in PDF output")

	page := &cobra.Command{
		Use:   "page <page-id>",
		Short: "Export one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Out == "" {
				return NewExitError(ExitCommandError, "--output is required")
			}
			kind := opts.Type
			if kind == "" {
				kind = filepath.Ext(opts.Out)
			}
			f, err := export.ParseFormat(kind)
			if err != nil {
				return err
			}
			st, err := opts.Store(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.ExportPage(cmd.Context(), st, args[0], f, opts.Out, opts.options()); err != nil {
				return err
			}
			return emit(cmd, opts.RootOptions, map[string]string{"page": args[0], "file": opts.Out, "format": string(f)}, func(w io.Writer) {
				fmt.Fprintf(w, "exported page %s to %s\n", args[0], opts.Out)
			})
		},
	}
	page.Flags().StringVar(&opts.Type, "type", "", "pdf|svg|png (default from the output extension)")
	page.Flags().Float64Var(&opts.Scale, "scale", 1, "PNG pixels per canvas pixel")

	book := &cobra.Command{
		Use:   "book <book-id>",
		Short: "Export a whole book as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Out == "" {
				return NewExitError(ExitCommandError, "--output is required")
			}
			st, err := opts.Store(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.ExportBookPDF(cmd.Context(), st, args[0], opts.Out, opts.options()); err != nil {
				return err
			}
			return emit(cmd, opts.RootOptions, map[string]string{"book": args[0], "file": opts.Out, "format": "pdf"}, func(w io.Writer) {
				fmt.Fprintf(w, "exported book %s to %s\n", args[0], opts.Out)
			})
		},
	}

	cmd.AddCommand(page, book)
	return cmd
}
