package parse

import (
	"bufio"
	"fmt"
	"strconv"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

// InertialRow is one stability telemetry sample with its interpolated
// timestamp.
type InertialRow struct {
	Timestamp time.Time
	Values    []float64
}

// InertialSeries is the parsed content of one inertial file.
type InertialSeries struct {
	// BaseTime is the session timestamp from the file header.
	BaseTime time.Time
	// Columns are the data column names from the column-header line.
	Columns []string
	Rows    []InertialRow
}

// ParseInertial reads an inertial file: a header line carrying the base
// session timestamp, a column-header line, then data rows. The logger only
// writes a bare time-of-day marker line every so often; rows between two
// markers have no timestamps of their own and are linearly interpolated
// across the marker-to-marker span. Rows after the final marker keep that
// marker's time since there is nothing to interpolate toward.
func ParseInertial(fsys fsutil.FileSystem, path string) (*InertialSeries, fleet.DiscardLog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	discards := fleet.NewDiscardLog()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	series := &InertialSeries{}

	var (
		haveBase    bool
		haveColumns bool
		anchor      time.Time
		pending     [][]float64
	)

	// flush assigns interpolated timestamps to the rows accumulated since the
	// previous anchor, spreading them evenly across (anchor, next].
	flush := func(next time.Time) {
		n := len(pending)
		if n == 0 {
			anchor = next
			return
		}
		span := next.Sub(anchor)
		for i, values := range pending {
			ts := anchor.Add(span * time.Duration(i+1) / time.Duration(n+1))
			series.Rows = append(series.Rows, InertialRow{Timestamp: ts, Values: values})
		}
		pending = pending[:0]
		anchor = next
	}

	for scanner.Scan() {
		line := trimBOM(scanner.Text())
		if line == "" {
			continue
		}

		if !haveBase {
			if t, ok := ExtractDatetime(line); ok {
				series.BaseTime = t
				anchor = t
				haveBase = true
			}
			// Preamble lines without a datetime are skipped until the header
			// shows up.
			continue
		}

		if !haveColumns {
			series.Columns = splitFields(line, SniffDelimiter(line))
			haveColumns = true
			continue
		}

		if offset, ok := ParseClockMarker(line); ok {
			next := markerTime(series.BaseTime, anchor, offset)
			flush(next)
			continue
		}

		values, ok := parseFloatRow(line)
		if !ok {
			discards.Add(fleet.KindInertial, 1)
			continue
		}
		pending = append(pending, values)
	}
	if err := scanner.Err(); err != nil {
		return nil, discards, fmt.Errorf("read %s: %w", path, err)
	}
	if !haveBase {
		return nil, discards, fmt.Errorf("%s: no base session timestamp in header", path)
	}

	// Trailing rows after the last marker: anchor time, no interpolation.
	for _, values := range pending {
		series.Rows = append(series.Rows, InertialRow{Timestamp: anchor, Values: values})
	}

	return series, discards, nil
}

// markerTime anchors a bare time-of-day offset to the session's date,
// rolling over to the next day when the clock wraps past midnight.
func markerTime(base, prev time.Time, offset time.Duration) time.Time {
	day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, base.Location())
	t := day.Add(offset)
	for t.Before(prev) {
		t = t.Add(24 * time.Hour)
	}
	return t
}

// parseFloatRow parses one delimited data row into floats. The row delimiter
// is sniffed per row because some firmware mixes them mid-file.
func parseFloatRow(line string) ([]float64, bool) {
	fields := splitFields(line, SniffDelimiter(line))
	if len(fields) == 0 {
		return nil, false
	}
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}
