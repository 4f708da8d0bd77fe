package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("processed %d vehicles", 3)
	if captured != "processed 3 vehicles" {
		t.Errorf("captured = %q, want %q", captured, "processed 3 vehicles")
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Logf("muted %s", "message")
	SetLogger(nil)
}
