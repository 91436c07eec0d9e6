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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tripbook/internal/canvas"
	"tripbook/internal/domain"
	"tripbook/internal/interact"
	"tripbook/internal/vector"
)

// NewElementCommand groups the page editing commands. Each invocation opens an
// editing session on the page and returns once every change is persisted.
func NewElementCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "element", Short: "Place and edit images, text and stickers on a page"}
	cmd.AddCommand(
		newElementAddCommand(opts),
		newElementListCommand(opts),
		newElementEditCommand(opts),
		newElementDragCommand(opts),
		newElementResizeCommand(opts),
		newElementRotateCommand(opts),
		newElementTextCommand(opts),
		newElementDeleteCommand(opts),
	)
	return cmd
}

// editElement runs fn on one element of a page and prints the result.
func editElement(cmd *cobra.Command, opts *RootOptions, pageID, id string, fn func(s *canvas.Session, c *interact.Controller, e domain.Element) error) error {
	var out domain.Element
	err := opts.editPage(cmd.Context(), pageID, func(s *canvas.Session, c *interact.Controller) error {
		e, ok := s.Element(id)
		if !ok {
			return domain.NotFound("element", id)
		}
		if err := fn(s, c, e); err != nil {
			return err
		}
		out, _ = s.Element(id)
		return nil
	})
	if err != nil {
		return err
	}
	return emit(cmd, opts, out, func(w io.Writer) { printElement(w, out) })
}

func newElementAddCommand(opts *RootOptions) *cobra.Command {
	var style []string
	cmd := &cobra.Command{
		Use:   "add <page-id> <image|text|sticker> <content>",
		Short: "Place a new element on top of the page",
		Long: `Place a new element on top of the page. Content is the image URL, the text
body or the sticker glyph.

Example:
  tripbook element add <page> text "Day one in Lisbon" --style color=#1d4ed8 --style fontSize=24`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStyle(style)
			if err != nil {
				return err
			}
			var e domain.Element
			err = opts.editPage(cmd.Context(), args[0], func(s *canvas.Session, _ *interact.Controller) error {
				e, err = s.AddElement(cmd.Context(), domain.ElementKind(strings.ToLower(args[1])), args[2], st)
				return err
			})
			if err != nil {
				return err
			}
			return emit(cmd, opts, e, func(w io.Writer) { printElement(w, e) })
		},
	}
	cmd.Flags().StringArrayVar(&style, "style", nil, "style attribute key=value (repeatable)")
	return cmd
}

func newElementListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <page-id>",
		Short: "List the elements of a page in stacking order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var elems []domain.Element
			err := opts.editPage(cmd.Context(), args[0], func(s *canvas.Session, _ *interact.Controller) error {
				elems = s.Elements()
				return nil
			})
			if err != nil {
				return err
			}
			return emit(cmd, opts, elems, func(w io.Writer) {
				for _, e := range elems {
					printElement(w, e)
				}
			})
		},
	}
}

func newElementEditCommand(opts *RootOptions) *cobra.Command {
	var (
		x, y, width, height float64
		rotation            int
		content             string
		style               []string
	)
	cmd := &cobra.Command{
		Use:   "edit <page-id> <element-id>",
		Short: "Set geometry, content or style values directly",
		Long: `Set geometry, content or style values directly. Position is in percent of the
canvas, size in pixels. Out-of-range values are clamped. A style value left
empty removes the key.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.ElementPatch
			f := cmd.Flags()
			if f.Changed("x") {
				p.X = &x
			}
			if f.Changed("y") {
				p.Y = &y
			}
			if f.Changed("width") {
				p.Width = &width
			}
			if f.Changed("height") {
				p.Height = &height
			}
			if f.Changed("rotation") {
				p.Rotation = &rotation
			}
			if f.Changed("content") {
				p.Content = &content
			}
			st, err := parseStyle(style)
			if err != nil {
				return err
			}
			p.Style = st
			if p.IsEmpty() {
				return NewExitError(ExitCommandError, "nothing to change")
			}
			return editElement(cmd, opts, args[0], args[1], func(s *canvas.Session, _ *interact.Controller, _ domain.Element) error {
				return s.ApplyMutation(args[1], p)
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "left edge in percent of the canvas width")
	cmd.Flags().Float64Var(&y, "y", 0, "top edge in percent of the canvas height")
	cmd.Flags().Float64Var(&width, "width", 0, "width in pixels")
	cmd.Flags().Float64Var(&height, "height", 0, "height in pixels")
	cmd.Flags().IntVar(&rotation, "rotation", 0, "rotation in degrees")
	cmd.Flags().StringVar(&content, "content", "", "image URL, text body or sticker glyph")
	cmd.Flags().StringArrayVar(&style, "style", nil, "style attribute key=value (repeatable)")
	return cmd
}

func newElementDragCommand(opts *RootOptions) *cobra.Command {
	var dx, dy float64
	var steps int
	cmd := &cobra.Command{
		Use:   "drag <page-id> <element-id>",
		Short: "Drag an element by a pixel offset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editElement(cmd, opts, args[0], args[1], func(s *canvas.Session, c *interact.Controller, e domain.Element) error {
				start := vector.FrameOf(e, s.CanvasSize()).Box.Center()
				return gesture(c, interact.TargetBody, e.ID, start, dx, dy, steps)
			})
		},
	}
	cmd.Flags().Float64Var(&dx, "dx", 0, "horizontal offset in pixels")
	cmd.Flags().Float64Var(&dy, "dy", 0, "vertical offset in pixels")
	cmd.Flags().IntVar(&steps, "steps", 1, "pointer moves between press and release")
	return cmd
}

func newElementResizeCommand(opts *RootOptions) *cobra.Command {
	var dw, dh float64
	cmd := &cobra.Command{
		Use:   "resize <page-id> <element-id>",
		Short: "Drag the resize handle by a pixel offset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editElement(cmd, opts, args[0], args[1], func(s *canvas.Session, c *interact.Controller, e domain.Element) error {
				box := vector.FrameOf(e, s.CanvasSize()).Box
				// the handle is only offered once the element is selected
				center := box.Center()
				if err := c.PointerDown(interact.TargetBody, e.ID, interact.ButtonPrimary, center); err != nil {
					return err
				}
				if err := c.PointerUp(center); err != nil {
					return err
				}
				return gesture(c, interact.TargetResizeHandle, e.ID, box.Max(), dw, dh, 1)
			})
		},
	}
	cmd.Flags().Float64Var(&dw, "dw", 0, "width change in pixels")
	cmd.Flags().Float64Var(&dh, "dh", 0, "height change in pixels")
	return cmd
}

func newElementRotateCommand(opts *RootOptions) *cobra.Command {
	var times int
	cmd := &cobra.Command{
		Use:   "rotate <page-id> <element-id>",
		Short: "Rotate an element clockwise in 15 degree steps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if times < 1 {
				return NewExitError(ExitCommandError, "--times must be at least 1")
			}
			return editElement(cmd, opts, args[0], args[1], func(_ *canvas.Session, c *interact.Controller, e domain.Element) error {
				for range times {
					if err := c.Rotate(e.ID); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&times, "times", 1, "number of steps")
	return cmd
}

func newElementTextCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "text <page-id> <element-id> <text>",
		Short: "Replace the body of a text element",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editElement(cmd, opts, args[0], args[1], func(_ *canvas.Session, c *interact.Controller, e domain.Element) error {
				if e.Kind != domain.KindText {
					return domain.Invalid("element %s is a %s, not text", e.ID, e.Kind)
				}
				if err := c.DoubleClick(e.ID); err != nil {
					return err
				}
				c.SetDraft(args[2])
				if err := c.SaveText(); err != nil {
					c.CancelText()
					return err
				}
				return nil
			})
		},
	}
}

func newElementDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <page-id> <element-id>",
		Short: "Remove an element from the page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.editPage(cmd.Context(), args[0], func(s *canvas.Session, c *interact.Controller) error {
				if _, ok := s.Element(args[1]); !ok {
					return domain.NotFound("element", args[1])
				}
				return c.Delete(args[1])
			})
			if err != nil {
				return err
			}
			return emit(cmd, opts, map[string]string{"deleted": args[1]}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted element %s\n", args[1])
			})
		},
	}
}

// gesture presses on target at start, moves by dx,dy in steps and releases.
func gesture(c *interact.Controller, target interact.Target, id string, start vector.Pt, dx, dy float64, steps int) error {
	if steps < 1 {
		steps = 1
	}
	if err := c.PointerDown(target, id, interact.ButtonPrimary, start); err != nil {
		return err
	}
	end := start
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		end = vector.Pt{X: start.X + dx*t, Y: start.Y + dy*t}
		if err := c.PointerMove(end); err != nil {
			return err
		}
	}
	return c.PointerUp(end)
}

// parseStyle reads key=value pairs. Numbers become numbers, an empty value removes the key.
func parseStyle(kvs []string) (domain.Style, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	st := domain.Style{}
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.Invalid("style %q: want key=value", kv)
		}
		v = strings.TrimSpace(v)
		switch n, err := strconv.ParseFloat(v, 64); {
		case v == "":
			st[k] = nil
		case err == nil:
			st[k] = n
		default:
			st[k] = v
		}
	}
	return st, nil
}
