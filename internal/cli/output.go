/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tripbook/internal/directory"
	"tripbook/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // persistence or unexpected failure
	ExitCommandError = 2 // bad arguments or validation error
	ExitNotFound     = 3
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Domain error classes map to
// their own codes; anything else is ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrValidation):
		return ExitCommandError
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// emit writes v as JSON or lets text render it for humans.
func emit(cmd *cobra.Command, opts *RootOptions, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: v})
	}
	text(w)
	return nil
}

func printBook(w io.Writer, b domain.Book) {
	fmt.Fprintf(w, "book %s  %q  trip=%s\n", b.ID, b.Title, b.TripID)
	if b.Description != "" {
		fmt.Fprintf(w, "  %s\n", b.Description)
	}
}

func printTree(w io.Writer, t directory.Tree) {
	printBook(w, t.Book)
	for _, s := range t.Sections {
		fmt.Fprintf(w, "  [%d] section %s  %q\n", s.Section.OrderIndex, s.Section.ID, s.Section.Title)
		for _, p := range s.Pages {
			fmt.Fprintf(w, "      [%d] page %s  background=%s\n", p.OrderIndex, p.ID, p.BackgroundColor)
		}
	}
}

func printElement(w io.Writer, e domain.Element) {
	content := strings.ReplaceAll(e.Content, "\n", `\n`)
	if r := []rune(content); len(r) > 40 {
		content = string(r[:37]) + "..."
	}
	fmt.Fprintf(w, "%-8s %s  z=%d  at=(%.1f%%, %.1f%%)  size=%gx%g  rot=%d  %q\n",
		e.Kind, e.ID, e.ZIndex, e.X, e.Y, e.Width, e.Height, e.Rotation, content)
}
