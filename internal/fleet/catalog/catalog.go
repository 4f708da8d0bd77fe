// Package catalog walks a vehicle's directory tree, classifies the files it
// finds by sensor kind, and annotates each with a recovered timestamp. The
// output feeds session matching; files that cannot be classified or
// timestamped are reported, never fatal.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/parse"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
	"github.com/fleetworks-data/dispatch.report/internal/monitoring"
)

// SkippedFile records a file excluded from the catalog and why, so run
// summaries can surface coverage problems per vehicle.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Catalog holds one vehicle's classified, timestamped files.
type Catalog struct {
	VehicleID   string
	FilesByKind map[fleet.SensorKind][]fleet.FileRecord
	Skipped     []SkippedFile
}

// HasAllKinds reports whether at least one timestamped file exists for every
// sensor kind, the precondition for session matching.
func (c *Catalog) HasAllKinds() bool {
	for _, kind := range fleet.AllSensorKinds {
		if len(c.FilesByKind[kind]) == 0 {
			return false
		}
	}
	return true
}

// MissingKinds lists the sensor kinds with no usable file, for gap reporting.
func (c *Catalog) MissingKinds() []fleet.SensorKind {
	var missing []fleet.SensorKind
	for _, kind := range fleet.AllSensorKinds {
		if len(c.FilesByKind[kind]) == 0 {
			missing = append(missing, kind)
		}
	}
	return missing
}

// kindRule maps a lowercase path token to a sensor kind. Rules are checked in
// order against the delimiter-separated tokens of the file's path. Directory
// names count too since some devices drop identically-named files into
// per-sensor folders.
type kindRule struct {
	token string
	kind  fleet.SensorKind
}

var kindRules = []kindRule{
	{"inertial", fleet.KindInertial},
	{"beacon", fleet.KindBeacon},
	{"position", fleet.KindPosition},
	{"stab", fleet.KindInertial},
	{"imu", fleet.KindInertial},
	{"light", fleet.KindBeacon},
	{"bal", fleet.KindBeacon},
	{"gps", fleet.KindPosition},
	{"pos", fleet.KindPosition},
	{"can", fleet.KindBus},
	{"bus", fleet.KindBus},
}

// dataExtensions are the file extensions the walker considers at all.
var dataExtensions = map[string]bool{
	".txt": true,
	".csv": true,
	".log": true,
	".dat": true,
}

// Classify determines the sensor kind of a file from the tokens in its path,
// matching both the filename and any parent directory names. A rule token
// must cover a whole path token, or its prefix up to a digit run (loggers
// concatenate the date, as in "gps20230510"); a bare substring like the
// "can" in "scan_01" never matches.
func Classify(filePath string) (fleet.SensorKind, bool) {
	tokens := strings.FieldsFunc(strings.ToLower(filePath), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range kindRules {
		for _, tok := range tokens {
			if tok == rule.token {
				return rule.kind, true
			}
			if strings.HasPrefix(tok, rule.token) && tok[len(rule.token)] >= '0' && tok[len(rule.token)] <= '9' {
				return rule.kind, true
			}
		}
	}
	return "", false
}

// ListVehicles returns the vehicle IDs under root, one per subdirectory,
// sorted. A missing root is the one fatal condition in the catalog stage.
func ListVehicles(fsys fsutil.FileSystem, root string) ([]string, error) {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read fleet root %s: %w", root, err)
	}
	var vehicles []string
	for _, entry := range entries {
		if entry.IsDir() {
			vehicles = append(vehicles, entry.Name())
		}
	}
	sort.Strings(vehicles)
	return vehicles, nil
}

// ScanVehicle walks one vehicle's directory tree and produces its catalog.
// Every file failure is recorded and skipped; only a failure to walk the tree
// itself is returned as an error.
func ScanVehicle(fsys fsutil.FileSystem, root, vehicleID string, cfg *config.PipelineConfig) (*Catalog, error) {
	cat := &Catalog{
		VehicleID:   vehicleID,
		FilesByKind: make(map[fleet.SensorKind][]fleet.FileRecord),
	}

	vehicleRoot := path.Join(root, vehicleID)
	err := fsys.WalkDir(vehicleRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: note it and keep walking siblings.
			cat.Skipped = append(cat.Skipped, SkippedFile{Path: p, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !dataExtensions[strings.ToLower(path.Ext(p))] {
			return nil
		}

		kind, ok := Classify(p)
		if !ok {
			cat.Skipped = append(cat.Skipped, SkippedFile{Path: p, Reason: "unrecognized sensor kind"})
			return nil
		}

		rec := fleet.FileRecord{
			Path:      p,
			Filename:  path.Base(p),
			VehicleID: vehicleID,
			Kind:      kind,
		}
		ts, err := parse.RecoverTimestamp(fsys, p, kind, cfg)
		switch {
		case err == nil:
			rec.RecoveredAt = &ts
		case errors.Is(err, parse.ErrNoTimestamp):
			monitoring.Logf("catalog: %s: no recoverable timestamp, excluded from matching", p)
			cat.Skipped = append(cat.Skipped, SkippedFile{Path: p, Reason: "no recoverable timestamp"})
			return nil
		default:
			cat.Skipped = append(cat.Skipped, SkippedFile{Path: p, Reason: err.Error()})
			return nil
		}

		cat.FilesByKind[kind] = append(cat.FilesByKind[kind], rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", vehicleRoot, err)
	}

	// Stable order by recovered time so the matcher's combination scan is
	// deterministic.
	for _, records := range cat.FilesByKind {
		sort.Slice(records, func(i, j int) bool {
			return records[i].RecoveredAt.Before(*records[j].RecoveredAt)
		})
	}
	return cat, nil
}
