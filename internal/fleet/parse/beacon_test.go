package parse

import (
	"testing"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

func TestParseBeacon(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	content := "2023-05-10 08:15:40;1\n" +
		"2023-05-10 08:42:10;0\n"
	fsys.WriteFile("v/beacon.txt", []byte(content), 0644)

	samples, discards, err := ParseBeacon(fsys, "v/beacon.txt")
	if err != nil {
		t.Fatalf("ParseBeacon failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	if discards.Total() != 0 {
		t.Errorf("discards = %d, want 0", discards.Total())
	}

	want := time.Date(2023, 5, 10, 8, 15, 40, 0, time.UTC)
	if !samples[0].Timestamp.Equal(want) {
		t.Errorf("samples[0].Timestamp = %v, want %v", samples[0].Timestamp, want)
	}
	if !samples[0].On {
		t.Error("samples[0].On = false, want true")
	}
	if samples[1].On {
		t.Error("samples[1].On = true, want false")
	}
}

func TestParseBeaconMalformedRows(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	content := "2023-05-10 08:15:40;1\n" +
		"2023-05-10 08:20:00;on\n" +
		"bare line\n" +
		"2023-05-10 08:42:10;0\n"
	fsys.WriteFile("v/beacon.txt", []byte(content), 0644)

	samples, discards, err := ParseBeacon(fsys, "v/beacon.txt")
	if err != nil {
		t.Fatalf("ParseBeacon failed: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("len(samples) = %d, want 2", len(samples))
	}
	if got := discards[fleet.KindBeacon]; got != 2 {
		t.Errorf("beacon discards = %d, want 2", got)
	}
}

func TestParseBeaconNonZeroCodesAreOn(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("v/beacon.txt", []byte("2023-05-10 08:15:40;2\n"), 0644)

	samples, _, err := ParseBeacon(fsys, "v/beacon.txt")
	if err != nil {
		t.Fatalf("ParseBeacon failed: %v", err)
	}
	if len(samples) != 1 || !samples[0].On {
		t.Errorf("samples = %+v, want single on sample", samples)
	}
}
