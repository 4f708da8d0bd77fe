package monitoring

import "log"

// Logf is the package-level diagnostic logger for the pipeline. It defaults
// to log.Printf; SetLogger can redirect it, and tests typically mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
