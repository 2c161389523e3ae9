package output

import (
	"encoding/json"
	"os"

	"github.com/nanoci/shalo/driver"
)

// JSONFormatter outputs clone results as a JSON array on stdout.
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return &JSONFormatter{encoder: enc}
}

type cloneResultOutput struct {
	URL            string `json:"url"`
	LocalPath      string `json:"local_path"`
	ResolvedBranch string `json:"resolved_branch"`
	Tip            string `json:"tip"`
	CoveringTag    string `json:"covering_tag,omitempty"`
	FinalDepth     int    `json:"final_depth"`
}

// FormatCloneResults outputs results as a JSON array.
func (f *JSONFormatter) FormatCloneResults(results []driver.FetchResult) error {
	out := make([]cloneResultOutput, len(results))
	for i, r := range results {
		out[i] = cloneResultOutput{
			URL:            r.URL,
			LocalPath:      r.LocalPath,
			ResolvedBranch: r.ResolvedBranch,
			Tip:            r.Tip.String(),
			CoveringTag:    r.CoveringTag,
			FinalDepth:     r.FinalDepth,
		}
	}
	return f.encoder.Encode(out)
}
