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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cie-graph/internal/appstate"
	"github.com/kraklabs/cie-graph/internal/config"
	"github.com/kraklabs/cie-graph/internal/httpapi"
	"github.com/kraklabs/cie-graph/internal/logging"
)

// runServeHTTP executes the 'serve-http' subcommand: it opens the database,
// starts the file watcher, and serves the query HTTP API until an
// interrupt. Grounded in the teacher's cmd/cie/serve.go, which builds a
// plain net/http.Server and shuts it down on SIGINT/SIGTERM via
// server.Shutdown(ctx); this version swaps the teacher's job-queue-backed
// indexing endpoints for the watcher + query-layer wiring appstate.State
// owns (§9's watcher-lifetime note — the handle must outlive whatever
// function starts it, which is why it is stored on State, not a local).
func runServeHTTP(args []string) int {
	fs := flag.NewFlagSet("serve-http", flag.ContinueOnError)
	dbPath := fs.String("db", "", "CozoDB data directory (defaults to config-resolved data dir)")
	configPath := fs.String("config", "", "Path to .cie/project.yaml (defaults to discovery)")
	projectID := fs.String("project-id", "", "Project identifier (defaults to the directory name)")
	port := fs.Int("port", 0, "HTTP listen port (defaults to config's port, 8420)")
	rootDirFlag := fs.String("root", ".", "Repository root to serve and watch")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie serve-http [options]

Opens the graph database, starts the file watcher over --root, and serves
the query HTTP API until interrupted.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	absRoot, err := filepath.Abs(*rootDirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot resolve root %q: %v\n", *rootDirFlag, err)
		return 1
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := logging.New(logging.Options{Level: level})

	cfg, err := loadOrDefaultConfig(*configPath, *projectID, absRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if *port != 0 {
		cfg.Port = *port
	}

	dataDir := *dbPath
	if dataDir == "" {
		resolved, err := config.DataDir(cfg, filepath.Dir(absRoot))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		dataDir = resolved
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot create data directory %s: %v\n", dataDir, err)
		return 1
	}

	state, err := appstate.New(cfg, dataDir, absRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot initialize application state: %v\n", err)
		return 1
	}
	defer state.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := state.StartWatcher(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot start file watcher: %v\n", err)
		return 1
	}

	listener, boundPort, err := listenWithPortFallback(cfg.Port, maxPortFallbackAttempts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot bind HTTP port starting at %d: %v\n", cfg.Port, err)
		return 1
	}
	if boundPort != cfg.Port {
		logger.Warn("serve-http.port_fallback", "requested_port", cfg.Port, "bound_port", boundPort)
	}

	server := httpapi.New(state)
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serve-http.listening", "addr", listener.Addr().String(), "root_dir", absRoot, "project_id", cfg.ProjectID)
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("serve-http.shutdown.signal", "signal", sig.String())
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			return 1
		}
		return 0
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		return 1
	}
	return 0
}

// maxPortFallbackAttempts bounds how many successive ports listenWithPortFallback
// tries before giving up, so a persistently occupied range fails fast rather
// than scanning indefinitely.
const maxPortFallbackAttempts = 10

// listenWithPortFallback binds startPort, retrying on the next port when the
// bind fails because the address is already in use. Any other bind error
// (permission denied, invalid address) is returned immediately rather than
// retried, since a different port will not fix it.
func listenWithPortFallback(startPort, attempts int) (net.Listener, int, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		port := startPort + i
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
		if !isAddrInUse(err) {
			return nil, 0, err
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no free port found after %d attempts starting at %d: %w", attempts, startPort, lastErr)
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr.Err, &sysErr) {
		return errors.Is(sysErr.Err, syscall.EADDRINUSE)
	}
	return errors.Is(opErr.Err, syscall.EADDRINUSE)
}
