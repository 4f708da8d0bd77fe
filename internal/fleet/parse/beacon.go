package parse

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

// ParseBeacon reads a beacon file of delimited timestamp;state rows, where
// state is an integer on/off code (non-zero = on). Malformed rows are
// tallied and skipped.
func ParseBeacon(fsys fsutil.FileSystem, path string) ([]fleet.BeaconSample, fleet.DiscardLog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	discards := fleet.NewDiscardLog()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		samples []fleet.BeaconSample
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
		if len(fields) < 2 {
			discards.Add(fleet.KindBeacon, 1)
			continue
		}

		ts, ok := ExtractDatetime(fields[0])
		if !ok {
			// Header lines fail the timestamp parse; count them only once
			// real data has started flowing.
			if len(samples) > 0 {
				discards.Add(fleet.KindBeacon, 1)
			}
			continue
		}

		code, err := strconv.Atoi(fields[1])
		if err != nil {
			discards.Add(fleet.KindBeacon, 1)
			continue
		}

		samples = append(samples, fleet.BeaconSample{
			Timestamp: ts,
			On:        code != 0,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, discards, fmt.Errorf("read %s: %w", path, err)
	}

	return samples, discards, nil
}
