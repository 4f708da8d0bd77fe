// Package parse reads the four raw sensor file formats. The files come off
// the loggers with inconsistent headers, delimiters and timestamp encodings,
// so every parser here sniffs its format per file and reports unusable rows
// in a DiscardLog instead of failing the file.
package parse

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

// ErrNoTimestamp is returned when neither the file content nor the filename
// yields a recoverable timestamp. Callers exclude such files from session
// matching rather than fabricating a time.
var ErrNoTimestamp = errors.New("no recoverable timestamp")

// datetimePattern pairs a substring matcher with the candidate layouts tried
// against the matched text. Patterns are ordered: 12-hour variants are listed
// before their 24-hour counterparts so an AM/PM suffix is not truncated.
type datetimePattern struct {
	re      *regexp.Regexp
	layouts []string
}

var datetimePatterns = []datetimePattern{
	{
		re:      regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`),
		layouts: []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"},
	},
	{
		re:      regexp.MustCompile(`\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`),
		layouts: []string{"2006/01/02 15:04:05"},
	},
	{
		re:      regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{1,2}:\d{2}:\d{2} ?[AP]M`),
		layouts: []string{"02/01/2006 3:04:05PM", "02/01/2006 3:04:05 PM"},
	},
	{
		re:      regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}`),
		layouts: []string{"02/01/2006 15:04:05"},
	},
	{
		re:      regexp.MustCompile(`\d{2}-\d{2}-\d{4} \d{2}:\d{2}:\d{2}`),
		layouts: []string{"02-01-2006 15:04:05"},
	},
	{
		re:      regexp.MustCompile(`\d{8} \d{2}:\d{2}:\d{2}`),
		layouts: []string{"20060102 15:04:05"},
	},
}

// filenameDateRe extracts an 8-digit YYYYMMDD token from a filename.
var filenameDateRe = regexp.MustCompile(`(\d{8})`)

// clockMarkerRe matches a bare time-of-day marker line like "08:15:40AM".
var clockMarkerRe = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2} ?[AP]M$`)

// delimiterNormalizer rewrites field delimiters to spaces so a datetime
// split across date and time fields (date;time;...) still matches.
var delimiterNormalizer = strings.NewReplacer(";", " ", ",", " ")

// ExtractDatetime scans a line for the first datetime substring in any of the
// supported encodings. Seconds must be present; formats that drop seconds are
// rejected deliberately.
func ExtractDatetime(line string) (time.Time, bool) {
	line = delimiterNormalizer.Replace(line)
	for _, p := range datetimePatterns {
		match := p.re.FindString(line)
		if match == "" {
			continue
		}
		for _, layout := range p.layouts {
			if t, err := time.Parse(layout, match); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ExtractFilenameDate pulls a YYYYMMDD token out of a filename and returns
// that date at midnight.
func ExtractFilenameDate(filename string) (time.Time, bool) {
	for _, match := range filenameDateRe.FindAllString(filename, -1) {
		if t, err := time.Parse("20060102", match); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseClockMarker parses a bare 12-hour time-of-day marker line as found
// interleaved in inertial files.
func ParseClockMarker(line string) (time.Duration, bool) {
	line = strings.TrimSpace(line)
	if !clockMarkerRe.MatchString(line) {
		return 0, false
	}
	for _, layout := range []string{"3:04:05PM", "3:04:05 PM"} {
		if t, err := time.Parse(layout, line); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

// RecoverTimestamp finds the best-effort real-world datetime of a raw sensor
// file's first meaningful sample. It scans the leading non-empty lines for an
// in-content datetime and falls back to the filename date. Position-file
// timestamps get the configured clock offset added; beacon files recovered
// from the filename land on midnight exactly, which is the degraded date-only
// case the matcher knows about.
func RecoverTimestamp(fsys fsutil.FileSystem, path string, kind fleet.SensorKind, cfg *config.PipelineConfig) (time.Time, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	scanned := 0
	limit := cfg.GetHeaderScanLines()
	for scanner.Scan() && scanned < limit {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		scanned++

		if t, ok := ExtractDatetime(line); ok {
			if kind == fleet.KindPosition {
				t = t.Add(cfg.GetPositionClockOffset())
			}
			return t, nil
		}
	}
	// A scanner error is treated the same as an exhausted scan: fall through
	// to the filename.

	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	if date, ok := ExtractFilenameDate(base); ok {
		// For beacon files this midnight value is semantic: the hardware does
		// not log time-of-day reliably, so the date alone is the match key.
		return date, nil
	}

	return time.Time{}, fmt.Errorf("%s: %w", path, ErrNoTimestamp)
}

// IsMidnight reports whether t lands exactly on 00:00:00.
func IsMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// SameDate reports whether two times fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
