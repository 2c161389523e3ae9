package output

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/nanoci/shalo/driver"
)

// HumanFormatter outputs clone results in human-readable, colored form.
type HumanFormatter struct {
	success *color.Color
	info    *color.Color
	dim     *color.Color
}

// NewHumanFormatter creates a new human-readable formatter.
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{
		success: color.New(color.FgGreen),
		info:    color.New(color.FgCyan),
		dim:     color.New(color.Faint),
	}
}

// FormatCloneResults outputs one line per repository.
func (f *HumanFormatter) FormatCloneResults(results []driver.FetchResult) error {
	for _, r := range results {
		tag := r.CoveringTag
		if tag == "" {
			tag = f.dim.Sprint("(no tag)")
		}
		f.success.Printf("✓ %s\n", r.URL)
		fmt.Printf("  branch: %s  tip: %s  tag: %s  depth: %d\n",
			f.info.Sprint(r.ResolvedBranch), r.Tip.String()[:8]+"...", tag, r.FinalDepth)
		if r.LocalPath != "" {
			fmt.Printf("  path: %s\n", r.LocalPath)
		}
	}
	return nil
}
