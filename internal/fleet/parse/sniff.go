package parse

import "strings"

// SniffDelimiter picks the field delimiter of a delimited line by counting
// candidate occurrences. The loggers emit either ';' or ',' depending on
// firmware version; ';' wins ties because decimal commas appear inside
// numeric fields on some units.
func SniffDelimiter(line string) rune {
	semis := strings.Count(line, ";")
	commas := strings.Count(line, ",")
	if semis >= commas && semis > 0 {
		return ';'
	}
	if commas > 0 {
		return ','
	}
	return ';'
}

// splitFields splits a line on the given delimiter and trims whitespace from
// every field.
func splitFields(line string, delim rune) []string {
	fields := strings.Split(line, string(delim))
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// headerAliases maps each canonical bus column to the header spellings seen
// across file variants. All comparisons are lowercased once; the alias table
// is resolved once per file, never per row.
var headerAliases = map[string][]string{
	"timestamp":     {"timestamp", "time stamp", "fecha", "datetime"},
	"engine_speed":  {"engine speed", "enginespeed", "rpm", "engine rpm"},
	"vehicle_speed": {"vehicle speed", "vehiclespeed", "wheel based speed", "speed"},
	"temperature":   {"temperature", "engine temperature", "coolant temp", "temp"},
	"fuel_level":    {"fuel level", "fuellevel", "fuel", "engine load", "load"},
}

// ResolveHeader maps canonical column names to field indices for one file's
// header row. Missing columns are simply absent from the result; only the
// timestamp column is mandatory for callers.
func ResolveHeader(fields []string) map[string]int {
	resolved := make(map[string]int)
	for i, field := range fields {
		normalized := strings.ToLower(strings.TrimSpace(field))
		for canonical, aliases := range headerAliases {
			if _, done := resolved[canonical]; done {
				continue
			}
			for _, alias := range aliases {
				if normalized == alias {
					resolved[canonical] = i
					break
				}
			}
		}
	}
	return resolved
}
