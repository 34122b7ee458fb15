// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide slog.Logger the way the
// teacher's internal/ui package picks output mode: a human-readable text
// handler when attached to a TTY (detected via github.com/mattn/go-isatty),
// a JSON handler otherwise so piped or containerized runs stay
// machine-parseable. Packages log dotted event names
// (ingestion.parse.complete, watcher.event.dispatch) through the
// *slog.Logger this package hands back; the one exception is pkg/cozodb,
// which reports opening a database through the standard "log" package.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Options configures the logger construction.
type Options struct {
	// Level is the minimum level to emit. Defaults to slog.LevelInfo.
	Level slog.Level
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// ForceJSON bypasses the TTY check (used by tests and --json flags).
	ForceJSON bool
}

// New builds the default *slog.Logger for this process: plain text on a
// TTY, JSON everywhere else (piped output, `serve-http` under systemd,
// CI). Both handlers log at the same level and attribute set — only the
// rendering differs.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	if opts.ForceJSON || !isTTY {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(newTextColorHandler(w, handlerOpts))
}

// textColorHandler wraps slog.TextHandler and passes every record through
// to it unchanged; it does not color the level field.
type textColorHandler struct {
	slog.Handler
	w io.Writer
}

func newTextColorHandler(w io.Writer, opts *slog.HandlerOptions) *textColorHandler {
	return &textColorHandler{Handler: slog.NewTextHandler(w, opts), w: w}
}

// LevelColor returns the fatih/color colorizer for a level (red errors,
// yellow warnings, green info, cyan debug), for colorizing a level string
// outside of slog's own formatting. Nothing in this module calls it.
func LevelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgCyan)
	}
}
