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

	"github.com/spf13/cobra"

	"tripbook/internal/canvas"
	"tripbook/internal/directory"
	"tripbook/internal/domain"
	"tripbook/internal/interact"
)

// NewBookCommand groups the book commands.
func NewBookCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Open, show and edit trip books"}

	var tripName string
	open := &cobra.Command{
		Use:   "open <trip-id>",
		Short: "Get or create the book of a trip and show its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			nav := directory.NewNavigator(dir)
			tree, err := nav.OpenTrip(cmd.Context(), args[0], tripName)
			if err != nil {
				return err
			}
			return emit(cmd, opts, tree, func(w io.Writer) { printTree(w, tree) })
		},
	}
	open.Flags().StringVar(&tripName, "name", "", "trip name used for the title of a new book")

	show := &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book with its sections and pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			tree, err := dir.Tree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, opts, tree, func(w io.Writer) { printTree(w, tree) })
		},
	}

	var title, description, cover string
	update := &cobra.Command{
		Use:   "update <book-id>",
		Short: "Change title, description or cover image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.BookPatch
			if cmd.Flags().Changed("title") {
				p.Title = &title
			}
			if cmd.Flags().Changed("description") {
				p.Description = &description
			}
			if cmd.Flags().Changed("cover") {
				p.CoverImage = &cover
			}
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			b, err := dir.UpdateBook(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return emit(cmd, opts, b, func(w io.Writer) { printBook(w, b) })
		},
	}
	update.Flags().StringVar(&title, "title", "", "book title")
	update.Flags().StringVar(&description, "description", "", "book description")
	update.Flags().StringVar(&cover, "cover", "", "cover image URL")

	del := &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Delete a book with all its sections, pages and elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			if err := dir.DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			return emit(cmd, opts, map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted book %s\n", args[0])
			})
		},
	}

	cmd.AddCommand(open, show, update, del)
	return cmd
}

// NewSectionCommand groups the section commands.
func NewSectionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "section", Short: "Manage the sections of a book"}

	add := &cobra.Command{
		Use:   "add <book-id> <title>",
		Short: "Append a section to a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			s, err := dir.AddSection(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return emit(cmd, opts, s, func(w io.Writer) {
				fmt.Fprintf(w, "section %s  %q  order=%d\n", s.ID, s.Title, s.OrderIndex)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <book-id>",
		Short: "List the sections of a book in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			secs, err := dir.Sections(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, opts, secs, func(w io.Writer) {
				for _, s := range secs {
					fmt.Fprintf(w, "[%d] %s  %q\n", s.OrderIndex, s.ID, s.Title)
				}
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <section-id> <title>",
		Short: "Rename a section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			s, err := dir.RenameSection(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return emit(cmd, opts, s, func(w io.Writer) {
				fmt.Fprintf(w, "section %s  %q\n", s.ID, s.Title)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete a section with its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			if err := dir.DeleteSection(cmd.Context(), args[0]); err != nil {
				return err
			}
			return emit(cmd, opts, map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted section %s\n", args[0])
			})
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}

// NewPageCommand groups the page commands.
func NewPageCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "page", Short: "Manage the pages of a section"}

	var background string
	add := &cobra.Command{
		Use:   "add <section-id>",
		Short: "Append a page to a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			p, err := dir.AddPage(cmd.Context(), args[0], background)
			if err != nil {
				return err
			}
			return emit(cmd, opts, p, func(w io.Writer) {
				fmt.Fprintf(w, "page %s  order=%d  background=%s\n", p.ID, p.OrderIndex, p.BackgroundColor)
			})
		},
	}
	add.Flags().StringVar(&background, "background", "", "background color (default white)")

	list := &cobra.Command{
		Use:   "list <section-id>",
		Short: "List the pages of a section in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			pages, err := dir.Pages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, opts, pages, func(w io.Writer) {
				for _, p := range pages {
					fmt.Fprintf(w, "[%d] %s  background=%s\n", p.OrderIndex, p.ID, p.BackgroundColor)
				}
			})
		},
	}

	bg := &cobra.Command{
		Use:   "background <page-id> <color>",
		Short: "Set the page background color",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var page domain.Page
			err := opts.editPage(cmd.Context(), args[0], func(s *canvas.Session, _ *interact.Controller) error {
				if err := s.SetBackground(args[1]); err != nil {
					return err
				}
				page = s.Page()
				return nil
			})
			if err != nil {
				return err
			}
			return emit(cmd, opts, page, func(w io.Writer) {
				fmt.Fprintf(w, "page %s  background=%s\n", page.ID, page.BackgroundColor)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <page-id>",
		Short: "Delete a page with its elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.directory(cmd.Context())
			if err != nil {
				return err
			}
			if err := dir.DeletePage(cmd.Context(), args[0]); err != nil {
				return err
			}
			return emit(cmd, opts, map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted page %s\n", args[0])
			})
		},
	}

	cmd.AddCommand(add, list, bg, del)
	return cmd
}
