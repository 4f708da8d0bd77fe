package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// ReplaceIntervals writes one vehicle's derived intervals for a processing
// range inside a single transaction: overlapping intervals of the same
// algorithm version are deleted first, so re-running a window never
// duplicates rows and a partially-written set is never visible.
func (db *DB) ReplaceIntervals(ctx context.Context, vehicleID, algoVersion, runID string,
	rangeStart, rangeEnd time.Time, intervals []fleet.StateInterval) error {

	start := float64(rangeStart.Unix())
	end := float64(rangeEnd.Unix())

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	// An interval belongs to the range its start falls in, half-open.
	// Keying the delete on start alone means a closed interval crossing
	// midnight is only ever replaced by the run that rewrites its own day;
	// the next day's write cannot reach it. Open intervals that started
	// before the range are likewise left alone: a later run closes them via
	// CloseOpenIntervals instead of re-deriving them.
	deleteQuery := `
		DELETE FROM state_intervals
		WHERE vehicle_id = ?
		  AND algo_version = ?
		  AND start_unix >= ? AND start_unix < ?
	`
	result, err := tx.ExecContext(ctx, deleteQuery,
		vehicleID, algoVersion,
		start, end,
	)
	if err != nil {
		return fmt.Errorf("delete overlapping intervals: %w", err)
	}
	if deleted, _ := result.RowsAffected(); deleted > 0 {
		log.Printf("intervals: deleted %d overlapping %s rows for %s in [%v, %v]",
			deleted, algoVersion, vehicleID, rangeStart, rangeEnd)
	}

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO state_intervals (
			vehicle_id,
			organization_id,
			state_key,
			start_unix,
			end_unix,
			duration_seconds,
			origin,
			source_zone_id,
			algo_version,
			run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer insertStmt.Close()

	for _, iv := range intervals {
		var endUnix, duration interface{}
		if iv.EndTime != nil {
			endUnix = float64(iv.EndTime.Unix())
		}
		if iv.DurationSeconds != nil {
			duration = *iv.DurationSeconds
		}
		if _, err := insertStmt.ExecContext(ctx,
			iv.VehicleID,
			nullableString(iv.OrganizationID),
			int(iv.Key),
			float64(iv.StartTime.Unix()),
			endUnix,
			duration,
			string(iv.Origin),
			nullableString(iv.SourceZoneID),
			algoVersion,
			runID,
		); err != nil {
			return fmt.Errorf("insert interval %s/%v: %w", iv.VehicleID, iv.Key, err)
		}
	}

	return tx.Commit()
}

// CloseOpenIntervals closes open rows of one vehicle and key that started
// before end. A later run calls this when it derives the missing end, rather
// than rewriting history.
func (db *DB) CloseOpenIntervals(ctx context.Context, vehicleID string, key fleet.StateKey, end time.Time) (int64, error) {
	endUnix := float64(end.Unix())
	result, err := db.ExecContext(ctx, `
		UPDATE state_intervals
		SET end_unix = ?,
		    duration_seconds = ? - start_unix,
		    updated_at = UNIXEPOCH('subsec')
		WHERE vehicle_id = ?
		  AND state_key = ?
		  AND end_unix IS NULL
		  AND start_unix < ?
	`, endUnix, endUnix, vehicleID, int(key), endUnix)
	if err != nil {
		return 0, fmt.Errorf("close open intervals: %w", err)
	}
	return result.RowsAffected()
}

// QueryIntervals returns intervals for the vehicle set overlapping
// [from, to), ordered by start time. An empty vehicle set matches nothing.
func (db *DB) QueryIntervals(ctx context.Context, vehicleIDs []string, from, to time.Time) ([]fleet.StateInterval, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(vehicleIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(vehicleIDs)+3)
	for _, id := range vehicleIDs {
		args = append(args, id)
	}
	args = append(args, float64(to.Unix()), float64(from.Unix()))

	query := fmt.Sprintf(`
		SELECT
			vehicle_id,
			COALESCE(organization_id, ''),
			state_key,
			start_unix,
			end_unix,
			duration_seconds,
			COALESCE(origin, ''),
			COALESCE(source_zone_id, '')
		FROM state_intervals
		WHERE vehicle_id IN (%s)
		  AND start_unix < ?
		  AND (end_unix > ? OR end_unix IS NULL)
		ORDER BY start_unix, vehicle_id
	`, placeholders)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []fleet.StateInterval
	for rows.Next() {
		var (
			iv        fleet.StateInterval
			key       int
			startUnix float64
			endUnix   sql.NullFloat64
			duration  sql.NullFloat64
			origin    string
		)
		if err := rows.Scan(&iv.VehicleID, &iv.OrganizationID, &key,
			&startUnix, &endUnix, &duration, &origin, &iv.SourceZoneID); err != nil {
			return nil, err
		}
		iv.Key = fleet.StateKey(key)
		iv.StartTime = time.Unix(int64(startUnix), 0).UTC()
		if endUnix.Valid {
			t := time.Unix(int64(endUnix.Float64), 0).UTC()
			iv.EndTime = &t
		}
		if duration.Valid {
			d := duration.Float64
			iv.DurationSeconds = &d
		}
		iv.Origin = fleet.IntervalOrigin(origin)
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// DeleteIntervalsByVersion removes every interval of one algorithm version,
// used when migrating to a new version before a full-history recompute.
func (db *DB) DeleteIntervalsByVersion(ctx context.Context, algoVersion string) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM state_intervals WHERE algo_version = ?`, algoVersion)
	if err != nil {
		return 0, fmt.Errorf("delete intervals for version %s: %w", algoVersion, err)
	}
	return result.RowsAffected()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
