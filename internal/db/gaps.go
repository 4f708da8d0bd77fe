package db

import (
	"context"
	"fmt"
	"time"
)

// CoverageGap is a day where a vehicle has catalogued files but no derived
// state intervals: the pipeline saw data and produced nothing.
type CoverageGap struct {
	VehicleID string
	Day       time.Time
	FileCount int
}

// FindCoverageGaps finds per-vehicle days with catalogued, timestamped files
// but no state intervals.
func (db *DB) FindCoverageGaps(ctx context.Context) ([]CoverageGap, error) {
	query := `
	WITH file_days AS (
		SELECT
			vehicle_id,
			CAST(recovered_unix / 86400 AS INTEGER) * 86400 AS day_start,
			COUNT(*) AS file_count
		FROM catalog_files
		WHERE recovered_unix IS NOT NULL
		GROUP BY vehicle_id, day_start
	),
	interval_days AS (
		SELECT DISTINCT
			vehicle_id,
			CAST(start_unix / 86400 AS INTEGER) * 86400 AS day_start
		FROM state_intervals
	)
	SELECT fd.vehicle_id, fd.day_start, fd.file_count
	FROM file_days fd
	WHERE NOT EXISTS (
		SELECT 1 FROM interval_days id
		WHERE id.vehicle_id = fd.vehicle_id
		  AND id.day_start = fd.day_start
	)
	ORDER BY fd.vehicle_id, fd.day_start
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query coverage gaps: %w", err)
	}
	defer rows.Close()

	var gaps []CoverageGap
	for rows.Next() {
		var (
			gap      CoverageGap
			dayStart int64
			count    int64
		)
		if err := rows.Scan(&gap.VehicleID, &dayStart, &count); err != nil {
			return nil, err
		}
		gap.Day = time.Unix(dayStart, 0).UTC()
		gap.FileCount = int(count)
		gaps = append(gaps, gap)
	}
	return gaps, rows.Err()
}
