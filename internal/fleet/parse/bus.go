package parse

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

// BusRow is one decoded engine/bus telemetry sample.
type BusRow struct {
	Timestamp    time.Time
	EngineSpeed  float64
	VehicleSpeed float64
	Temperature  float64
	FuelLevel    float64
}

// Decoder converts one raw delimited row into a BusRow. The CAN symbolic
// decoding itself (DBC signal extraction) lives outside this pipeline; the
// default tableDecoder handles files that arrive already decoded as a
// delimited table.
type Decoder interface {
	Decode(raw []string) (BusRow, error)
}

// tableDecoder decodes pre-decoded bus tables using the header alias indices
// resolved for the file.
type tableDecoder struct {
	columns map[string]int
}

func (d *tableDecoder) Decode(raw []string) (BusRow, error) {
	tsIdx, ok := d.columns["timestamp"]
	if !ok || tsIdx >= len(raw) {
		return BusRow{}, fmt.Errorf("missing timestamp field")
	}

	ts, ok := parseBusTimestamp(raw[tsIdx])
	if !ok {
		return BusRow{}, fmt.Errorf("unparsable timestamp %q", raw[tsIdx])
	}

	row := BusRow{Timestamp: ts}
	row.EngineSpeed = d.floatAt(raw, "engine_speed")
	row.VehicleSpeed = d.floatAt(raw, "vehicle_speed")
	row.Temperature = d.floatAt(raw, "temperature")
	row.FuelLevel = d.floatAt(raw, "fuel_level")
	return row, nil
}

// floatAt reads an optional numeric column; absent or malformed auxiliary
// values become zero rather than discarding the row.
func (d *tableDecoder) floatAt(raw []string, column string) float64 {
	idx, ok := d.columns[column]
	if !ok || idx >= len(raw) {
		return 0
	}
	v, err := strconv.ParseFloat(raw[idx], 64)
	if err != nil {
		return 0
	}
	return v
}

// parseBusTimestamp parses the bus table's 12-hour timestamp form, tolerating
// a space before the AM/PM suffix.
func parseBusTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{"02/01/2006 3:04:05PM", "02/01/2006 3:04:05 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBus reads a decoded bus telemetry table. The delimiter and column
// order vary by file and are sniffed from the header row. A nil decoder
// selects the built-in table decoder. Malformed rows are tallied in the
// returned DiscardLog and skipped.
func ParseBus(fsys fsutil.FileSystem, path string, dec Decoder) ([]BusRow, fleet.DiscardLog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	discards := fleet.NewDiscardLog()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		rows    []BusRow
		delim   rune
		started bool
	)

	for scanner.Scan() {
		line := scanner.Text()
		if trimmed := trimBOM(line); trimmed == "" {
			continue
		}

		if !started {
			delim = SniffDelimiter(line)
			columns := ResolveHeader(splitFields(trimBOM(line), delim))
			if _, ok := columns["timestamp"]; !ok {
				// Not a header line yet; some variants carry free-text
				// preamble lines before the table.
				continue
			}
			if dec == nil {
				dec = &tableDecoder{columns: columns}
			}
			started = true
			continue
		}

		row, err := dec.Decode(splitFields(line, delim))
		if err != nil {
			discards.Add(fleet.KindBus, 1)
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, discards, fmt.Errorf("read %s: %w", path, err)
	}
	if !started {
		return nil, discards, fmt.Errorf("%s: no recognisable header row", path)
	}

	return rows, discards, nil
}

// trimBOM strips a UTF-8 byte order mark and surrounding whitespace; some
// logger exports prepend one to the first line.
func trimBOM(line string) string {
	line = strings.TrimPrefix(line, "\ufeff")
	return strings.TrimSpace(line)
}
