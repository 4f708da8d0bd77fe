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

// noFixSentinels are the literal strings the positioning unit writes when it
// has no satellite fix. Such rows are invalid samples, not zero coordinates.
var noFixSentinels = map[string]bool{
	"NOFIX":  true,
	"NO FIX": true,
	"NO_FIX": true,
}

func isNoFix(field string) bool {
	return noFixSentinels[strings.ToUpper(strings.TrimSpace(field))]
}

// ParsePosition reads a position file of delimited
// date;time;latitude;longitude;altitude;speed rows. Rows without a fix or
// with unparsable numerics are tallied and skipped. The configured position
// clock offset is NOT applied here; timestamp recovery owns that correction
// and the matcher works off the recovered file timestamp.
func ParsePosition(fsys fsutil.FileSystem, path string) ([]fleet.PositionSample, fleet.DiscardLog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	discards := fleet.NewDiscardLog()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		samples []fleet.PositionSample
		delim   rune
		sniffed bool
	)

	for scanner.Scan() {
		line := trimBOM(scanner.Text())
		if line == "" {
			continue
		}
		if !sniffed {
			delim = SniffDelimiter(line)
			sniffed = true
		}

		fields := splitFields(line, delim)
		if len(fields) < 6 {
			discards.Add(fleet.KindPosition, 1)
			continue
		}

		ts, ok := parsePositionTimestamp(fields[0], fields[1])
		if !ok {
			// Header or preamble lines fail the date parse; count them only
			// once real data has started flowing.
			if len(samples) > 0 {
				discards.Add(fleet.KindPosition, 1)
			}
			continue
		}

		if isNoFix(fields[2]) || isNoFix(fields[3]) {
			discards.Add(fleet.KindPosition, 1)
			continue
		}

		lat, errLat := strconv.ParseFloat(fields[2], 64)
		lon, errLon := strconv.ParseFloat(fields[3], 64)
		speed, errSpeed := strconv.ParseFloat(fields[5], 64)
		if errLat != nil || errLon != nil || errSpeed != nil {
			discards.Add(fleet.KindPosition, 1)
			continue
		}

		samples = append(samples, fleet.PositionSample{
			Timestamp: ts,
			Latitude:  lat,
			Longitude: lon,
			Speed:     speed,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, discards, fmt.Errorf("read %s: %w", path, err)
	}

	return samples, discards, nil
}

// parsePositionTimestamp combines the separate date and time fields. Date
// encoding varies between firmware versions.
func parsePositionTimestamp(dateField, timeField string) (time.Time, bool) {
	for _, layout := range []string{"02/01/2006 15:04:05", "2006-01-02 15:04:05", "02-01-2006 15:04:05"} {
		if t, err := time.Parse(layout, dateField+" "+timeField); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
