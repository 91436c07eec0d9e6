/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripbook/internal/config"
	"tripbook/internal/directory"
	"tripbook/internal/domain"
)

func newOpts(t *testing.T) *RootOptions {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "tripbook.db")
	cfg.Editor.FlushIntervalMs = 0
	opts := &RootOptions{Config: cfg, logWriter: io.Discard}
	t.Cleanup(func() { _ = opts.Close() })
	return opts
}

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(opts)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func runJSON[T any](t *testing.T, opts *RootOptions, args ...string) T {
	t.Helper()
	out, err := run(t, opts, append(args, "--format", "json")...)
	require.NoError(t, err, out)
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(newOpts(t))
	require.NotNil(t, cmd)
	assert.Equal(t, "tripbook", cmd.Use)
	for _, name := range []string{"version", "serve", "book", "section", "page", "element", "export"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(newOpts(t))
	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, newOpts(t), "version", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVersion(t *testing.T) {
	out, err := run(t, newOpts(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tripbook ")
}

func TestScrapbookWorkflow(t *testing.T) {
	opts := newOpts(t)

	tree := runJSON[directory.Tree](t, opts, "book", "open", "trip-42", "--name", "Lisbon")
	assert.Equal(t, "Lisbon Scrapbook", tree.Book.Title)
	assert.Equal(t, domain.DefaultBookDescription, tree.Book.Description)
	bookID := tree.Book.ID

	again := runJSON[directory.Tree](t, opts, "book", "open", "trip-42")
	assert.Equal(t, bookID, again.Book.ID, "a trip has exactly one book")

	sec := runJSON[domain.Section](t, opts, "section", "add", bookID, "Day 1")
	assert.Equal(t, 0, sec.OrderIndex)
	page := runJSON[domain.Page](t, opts, "page", "add", sec.ID, "--background", "#fef3c7")
	assert.Equal(t, "#fef3c7", page.BackgroundColor)

	text := runJSON[domain.Element](t, opts, "element", "add", page.ID, "text", "Hello", "--style", "color=#1d4ed8", "--style", "fontSize=24")
	assert.Equal(t, 1, text.ZIndex)
	assert.Equal(t, 200.0, text.Width)
	assert.Equal(t, "#1d4ed8", text.Style.Color())
	assert.Equal(t, 24.0, text.Style.FontSize())
	img := runJSON[domain.Element](t, opts, "element", "add", page.ID, "image", "https://img.example.com/tram.jpg")
	assert.Equal(t, 2, img.ZIndex)

	// 1200x800 canvas: 120px right and 80px down is 10% on both axes.
	moved := runJSON[domain.Element](t, opts, "element", "drag", page.ID, text.ID, "--dx", "120", "--dy", "80", "--steps", "4")
	assert.InDelta(t, 60.0, moved.X, 1e-9)
	assert.InDelta(t, 60.0, moved.Y, 1e-9)

	resized := runJSON[domain.Element](t, opts, "element", "resize", page.ID, img.ID, "--dw", "-200")
	assert.Equal(t, domain.MinElementSize, resized.Width)
	assert.Equal(t, 150.0, resized.Height)

	rotated := runJSON[domain.Element](t, opts, "element", "rotate", page.ID, img.ID, "--times", "2")
	assert.Equal(t, 30, rotated.Rotation)

	edited := runJSON[domain.Element](t, opts, "element", "text", page.ID, text.ID, "Bom dia")
	assert.Equal(t, "Bom dia", edited.Content)

	styled := runJSON[domain.Element](t, opts, "element", "edit", page.ID, text.ID, "--style", "fontSize=", "--x", "150")
	assert.Equal(t, domain.DefaultFontSize, styled.Style.FontSize())
	assert.Equal(t, 100.0, styled.X)

	// a fresh session reads what the previous commands persisted
	elems := runJSON[[]domain.Element](t, opts, "element", "list", page.ID)
	require.Len(t, elems, 2)
	assert.Equal(t, text.ID, elems[0].ID)
	assert.Equal(t, "Bom dia", elems[0].Content)
	assert.Equal(t, 100.0, elems[0].X)
	assert.Equal(t, 30, elems[1].Rotation)
	assert.Equal(t, domain.MinElementSize, elems[1].Width)

	bg := runJSON[domain.Page](t, opts, "page", "background", page.ID, "#ddd6fe")
	assert.Equal(t, "#ddd6fe", bg.BackgroundColor)
	pages := runJSON[[]domain.Page](t, opts, "page", "list", sec.ID)
	require.Len(t, pages, 1)
	assert.Equal(t, "#ddd6fe", pages[0].BackgroundColor)

	dir := t.TempDir()
	svgPath := filepath.Join(dir, "day1.svg")
	_, err := run(t, opts, "export", "page", page.ID, "-o", svgPath)
	require.NoError(t, err)
	svg, err := os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Bom dia")
	assert.Contains(t, string(svg), `fill="#ddd6fe"`)

	pdfPath := filepath.Join(dir, "book.pdf")
	_, err = run(t, opts, "export", "book", bookID, "-o", pdfPath)
	require.NoError(t, err)
	info, err := os.Stat(pdfPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = run(t, opts, "element", "delete", page.ID, img.ID)
	require.NoError(t, err)
	elems = runJSON[[]domain.Element](t, opts, "element", "list", page.ID)
	require.Len(t, elems, 1)

	_, err = run(t, opts, "section", "delete", sec.ID)
	require.NoError(t, err)
	secs := runJSON[[]domain.Section](t, opts, "section", "list", bookID)
	assert.Empty(t, secs)
}

func TestCommandErrors(t *testing.T) {
	opts := newOpts(t)
	tree := runJSON[directory.Tree](t, opts, "book", "open", "trip-1")
	sec := runJSON[domain.Section](t, opts, "section", "add", tree.Book.ID, "Arrival")
	page := runJSON[domain.Page](t, opts, "page", "add", sec.ID)

	_, err := run(t, opts, "element", "add", page.ID, "video", "clip.mp4")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, opts, "element", "add", page.ID, "text", "   ")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, opts, "book", "show", "missing-book")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, GetExitCode(err))

	_, err = run(t, opts, "element", "rotate", page.ID, "missing-element")
	assert.Equal(t, ExitNotFound, GetExitCode(err))

	img := runJSON[domain.Element](t, opts, "element", "add", page.ID, "sticker", "⭐")
	_, err = run(t, opts, "element", "text", page.ID, img.ID, "hello")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, opts, "element", "edit", page.ID, img.ID)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, opts, "export", "page", page.ID, "-o", filepath.Join(t.TempDir(), "page.cbz"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, opts, "serve", "--driver", "remote")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseStyle(t *testing.T) {
	st, err := parseStyle([]string{"color=#fff", "fontSize=18", "fontWeight=bold", "shadow="})
	require.NoError(t, err)
	assert.Equal(t, domain.Style{"color": "#fff", "fontSize": 18.0, "fontWeight": "bold", "shadow": nil}, st)

	st, err = parseStyle(nil)
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = parseStyle([]string{"novalue"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitNotFound, GetExitCode(domain.NotFound("page", "p1")))
	assert.Equal(t, ExitCommandError, GetExitCode(domain.Invalid("bad")))
	assert.Equal(t, 7, GetExitCode(WrapExitError(7, "custom", domain.NotFound("page", "p1"))))
}
