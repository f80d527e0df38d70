// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package sqlite manages the embedded database connection lifecycle.

It abstracts the creation and configuration of the SQLite connection using
the pure-Go modernc.org/sqlite driver, so deployments need no CGO toolchain.

Responsibilities:

  - Pragmas: WAL journaling, foreign keys, and busy timeouts via the DSN.
  - Serialization: a single open connection so concurrent mosaic operations
    are applied one at a time, never interleaved.
  - Health checks: Ping support for readiness probes.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// DatabaseFile is the name of the database file inside the data directory.
const DatabaseFile = "mosaic.db"

// Open creates the database connection for the data directory at dir.
//
// The directory is created if missing. The returned handle is limited to a
// single open connection: every statement and transaction is serialized,
// which is the concurrency model the mosaic services rely on.
func Open(ctx context.Context, dir string, logger *slog.Logger) (*sql.DB, error) {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: failed to create data directory: %w", err)
	}

	path := filepath.Join(dir, DatabaseFile)
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and a single
	// connection makes transactions and pragmas behave predictably.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping database: %w", err)
	}

	logger.InfoContext(ctx, "sqlite_connected", slog.String("path", path))
	return db, nil
}

// OpenMemory creates an in-memory database sharing the production pragmas.
// Intended for tests.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open in-memory database: %w", err)
	}

	// All queries must hit the same in-memory instance.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping in-memory database: %w", err)
	}
	return db, nil
}
