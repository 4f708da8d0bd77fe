package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	RunID             string
	AlgoVersion       string
	StartedAt         time.Time
	FinishedAt        *time.Time
	VehiclesProcessed int64
	SessionsMatched   int64
	FilesSkipped      int64
	FilesUnmatched    int64
	Discards          fleet.DiscardLog
}

// RecordRunStart inserts the run row when processing begins.
func (db *DB) RecordRunStart(ctx context.Context, runID, algoVersion string, startedAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (run_id, algo_version, started_unix)
		VALUES (?, ?, ?)
	`, runID, algoVersion, float64(startedAt.Unix()))
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordRunFinish fills in the run's counters and discard tallies. Discard
// tallies make data-quality regressions visible across runs.
func (db *DB) RecordRunFinish(ctx context.Context, rec RunRecord, finishedAt time.Time) error {
	discardsJSON, err := json.Marshal(rec.Discards)
	if err != nil {
		return fmt.Errorf("marshal discards: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		UPDATE runs
		SET finished_unix = ?,
		    vehicles_processed = ?,
		    sessions_matched = ?,
		    files_skipped = ?,
		    files_unmatched = ?,
		    discards_json = ?
		WHERE run_id = ?
	`, float64(finishedAt.Unix()), rec.VehiclesProcessed, rec.SessionsMatched,
		rec.FilesSkipped, rec.FilesUnmatched, string(discardsJSON), rec.RunID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when none exist.
func (db *DB) LastRun(ctx context.Context) (*RunRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, algo_version, started_unix, finished_unix,
		       vehicles_processed, sessions_matched, files_skipped,
		       files_unmatched, discards_json
		FROM runs
		ORDER BY started_unix DESC
		LIMIT 1
	`)

	var (
		rec      RunRecord
		started  float64
		finished sql.NullFloat64
		discards sql.NullString
	)
	err := row.Scan(&rec.RunID, &rec.AlgoVersion, &started, &finished,
		&rec.VehiclesProcessed, &rec.SessionsMatched, &rec.FilesSkipped,
		&rec.FilesUnmatched, &discards)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}

	rec.StartedAt = time.Unix(int64(started), 0).UTC()
	if finished.Valid {
		t := time.Unix(int64(finished.Float64), 0).UTC()
		rec.FinishedAt = &t
	}
	if discards.Valid && discards.String != "" {
		if err := json.Unmarshal([]byte(discards.String), &rec.Discards); err != nil {
			return nil, fmt.Errorf("unmarshal discards: %w", err)
		}
	}
	return &rec, nil
}

// RecordCatalogFiles persists the catalogued files of one vehicle for a run;
// gap detection compares these against derived intervals.
func (db *DB) RecordCatalogFiles(ctx context.Context, runID string, records []fleet.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO catalog_files (run_id, vehicle_id, sensor_kind, path, recovered_unix)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		var recovered interface{}
		if r.RecoveredAt != nil {
			recovered = float64(r.RecoveredAt.Unix())
		}
		if _, err := stmt.ExecContext(ctx, runID, r.VehicleID, string(r.Kind), r.Path, recovered); err != nil {
			return fmt.Errorf("insert catalog file %s: %w", r.Path, err)
		}
	}
	return nil
}
