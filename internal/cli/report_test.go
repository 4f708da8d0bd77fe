package cli

import (
	"testing"
	"time"
)

func TestParseWindowSingleDay(t *testing.T) {
	w, err := parseWindow("2023-05-10", "")
	if err != nil {
		t.Fatalf("parseWindow failed: %v", err)
	}
	if !w.Start.Equal(time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", w.Start)
	}
	if w.Length() != 24*time.Hour {
		t.Errorf("length = %v, want 24h", w.Length())
	}
}

func TestParseWindowRange(t *testing.T) {
	w, err := parseWindow("2023-05-10", "2023-05-12")
	if err != nil {
		t.Fatalf("parseWindow failed: %v", err)
	}
	if w.Length() != 72*time.Hour {
		t.Errorf("length = %v, want 72h", w.Length())
	}
}

func TestParseWindowReversedRange(t *testing.T) {
	if _, err := parseWindow("2023-05-12", "2023-05-10"); err == nil {
		t.Fatal("expected error for reversed range")
	}
}

func TestParseWindowBadDate(t *testing.T) {
	if _, err := parseWindow("10/05/2023", ""); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}
