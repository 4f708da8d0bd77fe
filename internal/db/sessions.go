package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// SessionRow is one persisted session record.
type SessionRow struct {
	RunID        string
	VehicleID    string
	Date         time.Time
	StartTime    time.Time
	EndTime      time.Time
	MatchScore   float64
	Degraded     bool
	BusPath      string
	PositionPath string
	InertialPath string
	BeaconPath   string
}

// RecordSessions persists one vehicle's matched sessions for a run in a
// single transaction, replacing earlier rows for the same vehicle and dates
// so re-runs stay idempotent.
func (db *DB) RecordSessions(ctx context.Context, runID string, sessions []fleet.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	deleteStmt, err := tx.PrepareContext(ctx, `
		DELETE FROM sessions WHERE vehicle_id = ? AND session_date = ?
	`)
	if err != nil {
		return err
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (
			run_id, vehicle_id, session_date, start_unix, end_unix,
			match_score, degraded,
			bus_path, position_path, inertial_path, beacon_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer insertStmt.Close()

	for _, s := range sessions {
		date := s.Date.Format("2006-01-02")
		if _, err := deleteStmt.ExecContext(ctx, s.VehicleID, date); err != nil {
			return fmt.Errorf("delete sessions %s/%s: %w", s.VehicleID, date, err)
		}
		degraded := 0
		if s.Degraded {
			degraded = 1
		}
		if _, err := insertStmt.ExecContext(ctx,
			runID, s.VehicleID, date,
			float64(s.StartTime.Unix()), float64(s.EndTime.Unix()),
			s.MatchScore, degraded,
			s.Files[fleet.KindBus].Path,
			s.Files[fleet.KindPosition].Path,
			s.Files[fleet.KindInertial].Path,
			s.Files[fleet.KindBeacon].Path,
		); err != nil {
			return fmt.Errorf("insert session %s/%s: %w", s.VehicleID, date, err)
		}
	}

	return tx.Commit()
}

// QuerySessions returns a vehicle's persisted sessions overlapping [from, to),
// newest first.
func (db *DB) QuerySessions(ctx context.Context, vehicleID string, from, to time.Time) ([]SessionRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, vehicle_id, session_date, start_unix, end_unix,
		       match_score, degraded,
		       bus_path, position_path, inertial_path, beacon_path
		FROM sessions
		WHERE vehicle_id = ?
		  AND start_unix < ?
		  AND end_unix > ?
		ORDER BY start_unix DESC
	`, vehicleID, float64(to.Unix()), float64(from.Unix()))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var (
			s          SessionRow
			date       string
			start, end float64
			degraded   int
		)
		if err := rows.Scan(&s.RunID, &s.VehicleID, &date, &start, &end,
			&s.MatchScore, &degraded,
			&s.BusPath, &s.PositionPath, &s.InertialPath, &s.BeaconPath); err != nil {
			return nil, err
		}
		if d, err := time.Parse("2006-01-02", date); err == nil {
			s.Date = d
		}
		s.StartTime = time.Unix(int64(start), 0).UTC()
		s.EndTime = time.Unix(int64(end), 0).UTC()
		s.Degraded = degraded != 0
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
