// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

// Package dberr translates low-level database errors into domain-level
// [apperr.AppError] values so stores never leak driver errors upward.
package dberr

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vannpham/mosava/internal/platform/apperr"
)

// Wrap converts a database error into an appropriate [apperr.AppError].
//
// Mapping rules:
//
//   - sql.ErrNoRows          -> 404 Not Found
//   - UNIQUE constraint      -> 409 Conflict
//   - FOREIGN KEY constraint -> 422 Unprocessable
//   - anything else          -> 500 Internal (cause preserved for logging)
//
// The action string names the operation for log context, e.g. "get mosaic".
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("Resource")
	}

	// modernc.org/sqlite surfaces constraint violations as plain error
	// strings, so we match on the standard SQLite message text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperr.Conflict("Resource already exists")
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return apperr.Unprocessable("Operation violates a relational constraint")
	}

	return apperr.Internal(fmt.Errorf("database error during %s: %w", action, err))
}
