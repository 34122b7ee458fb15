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

// Package errors implements the kind-tagged error taxonomy from spec §7:
// InputError, ParseError, StorageError, NotFound, TransientError, and
// FatalError. Every CieError carries a machine-readable Kind (for the HTTP
// JSON error envelope in internal/httpapi) plus the teacher's own
// message/detail/suggestion/cause shape (cmd/cie/config.go's
// errors.NewConfigError calls are the grounding for that four-field style)
// so CLI output stays as actionable as it was before the redesign.
package errors

import "fmt"

// Kind is the machine-readable error category surfaced in the HTTP JSON
// error envelope and used by callers to decide propagation policy (§7).
type Kind string

const (
	KindInput     Kind = "input_error"
	KindParse     Kind = "parse_error"
	KindStorage   Kind = "storage_error"
	KindNotFound  Kind = "not_found"
	KindTransient Kind = "transient_error"
	KindFatal     Kind = "fatal_error"
)

// CieError is the kind-tagged error type of this module. Not every package
// returns it: many return plain wrapped errors, which KindOf reports as
// KindFatal. Detail and Suggestion are optional, CLI-facing
// elaborations; Kind is the field other components (the HTTP layer, the
// watcher's per-file isolation) actually branch on.
type CieError struct {
	Kind       Kind
	Message    string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *CieError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func (e *CieError) Unwrap() error { return e.Cause }

func newErr(kind Kind, message, detail, suggestion string, cause error) *CieError {
	return &CieError{Kind: kind, Message: message, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewInputError reports bad user input: unknown file, malformed scope,
// invalid entity key (§7 InputError — "Surface to caller").
func NewInputError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindInput, message, detail, suggestion, cause)
}

// NewParseError reports a per-file parse failure (§7 ParseError — "Logged;
// treated as file is now invalid").
func NewParseError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindParse, message, detail, suggestion, cause)
}

// NewStorageError reports a database operation failure (§7 StorageError —
// "collected and aggregated; does not abort sibling batches").
func NewStorageError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindStorage, message, detail, suggestion, cause)
}

// NewNotFoundError reports a query for an entity/edge that does not exist.
func NewNotFoundError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindNotFound, message, detail, suggestion, cause)
}

// NewTransientError reports a retriable I/O failure (§7 TransientError —
// "the file watcher continues; the failing file will be picked up by the
// next save event").
func NewTransientError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindTransient, message, detail, suggestion, cause)
}

// NewFatalError reports schema-creation failure, port-bind failure, or
// database-open failure — the process must exit non-zero (§7 FatalError).
func NewFatalError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindFatal, message, detail, suggestion, cause)
}

// NewConfigError is a CLI-facing alias for a malformed or unreadable
// configuration file — InputError in the §7 taxonomy (the user can fix
// their project.yaml and retry).
func NewConfigError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindInput, message, detail, suggestion, cause)
}

// NewInternalError is a CLI-facing alias for an unexpected internal
// failure that is not the user's fault — FatalError in the §7 taxonomy.
func NewInternalError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindFatal, message, detail, suggestion, cause)
}

// NewPermissionError is a CLI-facing alias for a filesystem-permission
// failure — StorageError in the §7 taxonomy (I/O failed, not user input).
func NewPermissionError(message, detail, suggestion string, cause error) *CieError {
	return newErr(KindStorage, message, detail, suggestion, cause)
}

// KindOf returns the Kind of err if it is (or wraps) a *CieError, and
// KindFatal otherwise — callers that must decide exit-code behavior
// default to the most conservative interpretation of an unrecognized
// error.
func KindOf(err error) Kind {
	var ce *CieError
	if As(err, &ce) {
		return ce.Kind
	}
	return KindFatal
}

// As is a tiny wrapper around the standard errors.As, kept local so this
// package has no import-cycle risk with the stdlib errors package name it
// shadows.
func As(err error, target **CieError) bool {
	for err != nil {
		if ce, ok := err.(*CieError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
