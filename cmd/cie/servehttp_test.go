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
	"net"
	"testing"
)

func TestListenWithPortFallback_FirstPortFree(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	got, boundPort, err := listenWithPortFallback(port, 5)
	if err != nil {
		t.Fatalf("listenWithPortFallback() error = %v", err)
	}
	defer got.Close()
	if boundPort != port {
		t.Fatalf("boundPort = %d, want %d", boundPort, port)
	}
}

func TestListenWithPortFallback_RetriesOnConflict(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	got, boundPort, err := listenWithPortFallback(port, 10)
	if err != nil {
		t.Fatalf("listenWithPortFallback() error = %v", err)
	}
	defer got.Close()
	if boundPort == port {
		t.Fatalf("boundPort = %d, want a port other than the occupied %d", boundPort, port)
	}
	if boundPort <= port || boundPort > port+10 {
		t.Fatalf("boundPort = %d, want within (%d, %d]", boundPort, port, port+10)
	}
}

func TestListenWithPortFallback_GivesUpAfterExhaustingAttempts(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	if _, _, err := listenWithPortFallback(port, 1); err == nil {
		t.Fatal("listenWithPortFallback() expected an error when only the occupied port is tried")
	}
}
