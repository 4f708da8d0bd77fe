// Package pipeline orchestrates the per-vehicle processing run: catalog walk,
// session matching, state segmentation and interval persistence. Vehicles are
// independent and fan out over a bounded worker pool; one vehicle failing
// never cancels its siblings.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/db"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/catalog"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/parse"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/segment"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/session"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

// Pipeline wires the processing stages over one fleet root.
type Pipeline struct {
	DB             *db.DB
	FS             fsutil.FileSystem
	Cfg            *config.PipelineConfig
	Zones          []segment.Zone
	Root           string
	OrganizationID string
	// Decoder decodes raw bus rows; nil selects the built-in table decoder
	// for files that arrive already decoded.
	Decoder parse.Decoder
}

// RunSummary is the merged outcome of one processing run.
type RunSummary struct {
	RunID             string                     `json:"run_id"`
	StartedAt         time.Time                  `json:"started_at"`
	FinishedAt        time.Time                  `json:"finished_at"`
	VehiclesProcessed int                        `json:"vehicles_processed"`
	SessionsMatched   int                        `json:"sessions_matched"`
	FilesSkipped      int                        `json:"files_skipped"`
	Unmatched         []session.Unmatched        `json:"unmatched,omitempty"`
	Sessions          []fleet.Session            `json:"-"`
	Discards          fleet.DiscardLog           `json:"discards"`
	RowsParsed        map[fleet.SensorKind]int64 `json:"rows_parsed"`
	CoverageGaps      []db.CoverageGap           `json:"coverage_gaps,omitempty"`
	VehicleErrors     map[string]string          `json:"vehicle_errors,omitempty"`
}

// vehicleResult is one worker's output, merged on the collecting side.
type vehicleResult struct {
	vehicleID string
	sessions  []fleet.Session
	unmatched []session.Unmatched
	skipped   int
	discards  fleet.DiscardLog
	rows      map[fleet.SensorKind]int64
	err       error
}

// Run processes every vehicle under the fleet root. A missing root is the
// one fatal configuration error; everything below it degrades per vehicle.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	vehicles, err := catalog.ListVehicles(p.FS, p.Root)
	if err != nil {
		return nil, err
	}

	if err := p.DB.RecordRunStart(ctx, runID, p.Cfg.GetAlgoVersion(), startedAt); err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:         runID,
		StartedAt:     startedAt,
		Discards:      fleet.NewDiscardLog(),
		RowsParsed:    make(map[fleet.SensorKind]int64),
		VehicleErrors: make(map[string]string),
	}

	jobs := make(chan string)
	results := make(chan vehicleResult)

	var wg sync.WaitGroup
	for i := 0; i < p.Cfg.GetWorkers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for vehicleID := range jobs {
				results <- p.processVehicle(ctx, runID, vehicleID)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, v := range vehicles {
			select {
			case jobs <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		summary.VehiclesProcessed++
		if res.err != nil {
			log.Printf("pipeline: vehicle %s failed: %v", res.vehicleID, res.err)
			summary.VehicleErrors[res.vehicleID] = res.err.Error()
			continue
		}
		summary.Sessions = append(summary.Sessions, res.sessions...)
		summary.SessionsMatched += len(res.sessions)
		summary.Unmatched = append(summary.Unmatched, res.unmatched...)
		summary.FilesSkipped += res.skipped
		summary.Discards.Merge(res.discards)
		for kind, n := range res.rows {
			summary.RowsParsed[kind] += n
		}
	}

	summary.FinishedAt = time.Now().UTC()

	gaps, err := p.DB.FindCoverageGaps(ctx)
	if err != nil {
		log.Printf("pipeline: coverage gap query failed: %v", err)
	} else {
		summary.CoverageGaps = gaps
	}

	if err := p.DB.RecordRunFinish(ctx, db.RunRecord{
		RunID:             runID,
		VehiclesProcessed: int64(summary.VehiclesProcessed),
		SessionsMatched:   int64(summary.SessionsMatched),
		FilesSkipped:      int64(summary.FilesSkipped),
		FilesUnmatched:    int64(len(summary.Unmatched)),
		Discards:          summary.Discards,
	}, summary.FinishedAt); err != nil {
		return summary, err
	}

	log.Printf("pipeline: run %s finished: %d vehicles, %d sessions, %d skipped files, %d discarded rows",
		runID, summary.VehiclesProcessed, summary.SessionsMatched,
		summary.FilesSkipped, summary.Discards.Total())
	return summary, nil
}

// RunFullHistory discards every interval of the configured algorithm version
// and recomputes from the full catalog, for algorithm migrations.
func (p *Pipeline) RunFullHistory(ctx context.Context) (*RunSummary, error) {
	deleted, err := p.DB.DeleteIntervalsByVersion(ctx, p.Cfg.GetAlgoVersion())
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		log.Printf("pipeline: full-history run dropped %d %s intervals",
			deleted, p.Cfg.GetAlgoVersion())
	}
	return p.Run(ctx)
}

// processVehicle runs the sequential stages for one vehicle: catalog walk,
// session matching, per-session segmentation, then one transactional interval
// write per day.
func (p *Pipeline) processVehicle(ctx context.Context, runID, vehicleID string) vehicleResult {
	res := vehicleResult{
		vehicleID: vehicleID,
		discards:  fleet.NewDiscardLog(),
		rows:      make(map[fleet.SensorKind]int64),
	}

	cat, err := catalog.ScanVehicle(p.FS, p.Root, vehicleID, p.Cfg)
	if err != nil {
		res.err = err
		return res
	}
	res.skipped = len(cat.Skipped)

	var records []fleet.FileRecord
	for _, kind := range fleet.AllSensorKinds {
		records = append(records, cat.FilesByKind[kind]...)
	}
	if err := p.DB.RecordCatalogFiles(ctx, runID, records); err != nil {
		res.err = err
		return res
	}

	matched := session.Match(vehicleID, cat.FilesByKind, p.Cfg)
	res.sessions = matched.Sessions
	res.unmatched = matched.Unmatched
	if len(matched.Sessions) == 0 {
		return res
	}
	if err := p.DB.RecordSessions(ctx, runID, matched.Sessions); err != nil {
		res.err = err
		return res
	}

	segmenter := segment.New(p.Cfg)
	byDay := make(map[time.Time][]fleet.StateInterval)
	var closeEvidence []fleet.BeaconSample

	for _, s := range matched.Sessions {
		// Bus and inertial rows feed the run's data-quality tallies; the
		// state detectors below only consume positions and beacons.
		if busRows, busDiscards, err := parse.ParseBus(p.FS, s.Files[fleet.KindBus].Path, p.Decoder); err != nil {
			log.Printf("pipeline: %s: bus parse failed: %v", s.Files[fleet.KindBus].Path, err)
		} else {
			res.discards.Merge(busDiscards)
			res.rows[fleet.KindBus] += int64(len(busRows))
		}
		if series, inrDiscards, err := parse.ParseInertial(p.FS, s.Files[fleet.KindInertial].Path); err != nil {
			log.Printf("pipeline: %s: inertial parse failed: %v", s.Files[fleet.KindInertial].Path, err)
		} else {
			res.discards.Merge(inrDiscards)
			res.rows[fleet.KindInertial] += int64(len(series.Rows))
		}

		positions, posDiscards, err := parse.ParsePosition(p.FS, s.Files[fleet.KindPosition].Path)
		if err != nil {
			log.Printf("pipeline: %s: position parse failed: %v", s.Files[fleet.KindPosition].Path, err)
			continue
		}
		res.discards.Merge(posDiscards)
		res.rows[fleet.KindPosition] += int64(len(positions))
		// The position device clock lags real time; shift samples by the
		// same offset timestamp recovery uses so the streams line up.
		if offset := p.Cfg.GetPositionClockOffset(); offset != 0 {
			for i := range positions {
				positions[i].Timestamp = positions[i].Timestamp.Add(offset)
			}
		}

		beacons, bcnDiscards, err := parse.ParseBeacon(p.FS, s.Files[fleet.KindBeacon].Path)
		if err != nil {
			log.Printf("pipeline: %s: beacon parse failed: %v", s.Files[fleet.KindBeacon].Path, err)
			continue
		}
		res.discards.Merge(bcnDiscards)
		res.rows[fleet.KindBeacon] += int64(len(beacons))
		closeEvidence = append(closeEvidence, beacons...)

		intervals, segDiscards := segmenter.Segment(segment.Input{
			VehicleID:      vehicleID,
			OrganizationID: p.OrganizationID,
			Geofence:       segment.DeriveGeofenceEvents(positions, p.Zones),
			Positions:      positions,
			Beacons:        beacons,
		})
		res.discards.Merge(segDiscards)

		// Bucket each interval under its own start day, not the session
		// date, so a span crossing midnight is rewritten by the day it
		// starts in and never clipped by the next day's write.
		for _, iv := range intervals {
			day := iv.StartTime.UTC().Truncate(24 * time.Hour)
			byDay[day] = append(byDay[day], iv)
		}
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, day := range days {
		if err := p.DB.ReplaceIntervals(ctx, vehicleID, p.Cfg.GetAlgoVersion(), runID,
			day, day.Add(24*time.Hour), byDay[day]); err != nil {
			res.err = fmt.Errorf("persist intervals for %s/%s: %w",
				vehicleID, day.Format("2006-01-02"), err)
			return res
		}
	}

	// Beacon-off evidence closes dispatches left open by earlier runs.
	for _, b := range closeEvidence {
		if b.On {
			continue
		}
		if n, err := p.DB.CloseOpenIntervals(ctx, vehicleID, fleet.StateDispatch, b.Timestamp); err != nil {
			log.Printf("pipeline: %s: closing open dispatches failed: %v", vehicleID, err)
		} else if n > 0 {
			log.Printf("pipeline: %s: closed %d open dispatch intervals at %v", vehicleID, n, b.Timestamp)
		}
	}

	return res
}
