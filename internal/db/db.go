// Package db is the sqlite persistence layer for the pipeline. Its durable
// artifact is the state-interval append log; sessions, catalogued files and
// run summaries are stored alongside it for reporting and gap detection.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// OpenDB opens (or creates) the sqlite database at path. Schema management
// is the migrator's job; nothing is created here.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// Single writer with concurrent readers; the per-vehicle partitioning
	// keeps writer contention low but not zero.
	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	return &DB{sqlDB}, nil
}
