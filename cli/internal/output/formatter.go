// Package output implements clone's human/JSON progress-reporting split.
// find-branch has no such split — it always prints the bare resolved branch
// name to stdout.
package output

import "github.com/nanoci/shalo/driver"

// Formatter renders a completed clone run's FetchResults to stdout.
type Formatter interface {
	// FormatCloneResults outputs the per-repository outcomes of a clone run.
	FormatCloneResults(results []driver.FetchResult) error
}

// Get returns the formatter for format ("json" or anything else for human).
func Get(format string) Formatter {
	switch format {
	case "json":
		return NewJSONFormatter()
	default:
		return NewHumanFormatter()
	}
}
