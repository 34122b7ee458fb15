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
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// cliProgressBar wraps a progressbar.ProgressBar running in spinner mode.
// The teacher's index.go drove its bar from a per-phase progress callback
// that pipeline.Run here doesn't expose (it runs the five-way batch insert
// as one unit, not a step-reporting stream), so this ticks an indeterminate
// spinner for the run's duration rather than a determinate percentage.
type cliProgressBar struct {
	bar    *progressbar.ProgressBar
	ticker *time.Ticker
	done   chan struct{}
}

func newCLIProgressBar(description string) *cliProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	p := &cliProgressBar{bar: bar, ticker: time.NewTicker(150 * time.Millisecond), done: make(chan struct{})}
	go p.run()
	return p
}

func (p *cliProgressBar) run() {
	for {
		select {
		case <-p.ticker.C:
			_ = p.bar.Add(1)
		case <-p.done:
			return
		}
	}
}

func (p *cliProgressBar) Finish() {
	select {
	case <-p.done:
		return // already finished
	default:
	}
	close(p.done)
	p.ticker.Stop()
	_ = p.bar.Finish()
}
