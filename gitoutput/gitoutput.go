// Package gitoutput writes the two on-disk result files clone produces: the
// tag-output file and the manifest-output file. Both are a single-table
// text format, one record per line, input order preserved, grounded on the
// line-oriented table shape of cli/internal/output/human.go's plain-text
// mode rather than its JSON mode — these files are consumed by other CI
// pipeline steps via shell tools, not deserialized back into Go structs.
package gitoutput

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/nanoci/shalo/driver"
)

// emptyField stands in for an absent value in a whitespace-separated
// record (an empty string would be indistinguishable from surrounding
// whitespace once a consumer splits the line on fields).
const emptyField = "-"

// WriteTagFile writes results to path, one line per repository:
// "<repository-name> <tag-name> <tip-oid>", fields whitespace-separated,
// in input order, with emptyField in place of the tag name when no tag
// covers the tip.
func WriteTagFile(path string, results []driver.FetchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gitoutput: creating tag output file %q: %w", path, err)
	}
	defer f.Close()

	if err := writeTagFile(f, results); err != nil {
		return err
	}
	return f.Close()
}

func writeTagFile(w io.Writer, results []driver.FetchResult) error {
	bw := bufio.NewWriter(w)
	for _, r := range results {
		tag := r.CoveringTag
		if tag == "" {
			tag = emptyField
		}
		if _, err := fmt.Fprintf(bw, "%s %s %s\n", repositoryName(r), tag, r.Tip.String()); err != nil {
			return fmt.Errorf("gitoutput: writing tag output line: %w", err)
		}
	}
	return bw.Flush()
}

// WriteManifestFile writes results to path, one record per repository with
// fields: URL, local path, resolved branch, tip oid, covering tag (or
// emptyField), final depth.
func WriteManifestFile(path string, results []driver.FetchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gitoutput: creating manifest output file %q: %w", path, err)
	}
	defer f.Close()

	if err := writeManifestFile(f, results); err != nil {
		return err
	}
	return f.Close()
}

func writeManifestFile(w io.Writer, results []driver.FetchResult) error {
	bw := bufio.NewWriter(w)
	for _, r := range results {
		tag := r.CoveringTag
		if tag == "" {
			tag = emptyField
		}
		branch := r.ResolvedBranch
		if branch == "" {
			branch = emptyField
		}
		_, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.URL, r.LocalPath, branch, r.Tip.String(), tag, r.FinalDepth)
		if err != nil {
			return fmt.Errorf("gitoutput: writing manifest line: %w", err)
		}
	}
	return bw.Flush()
}

func repositoryName(r driver.FetchResult) string {
	if r.LocalPath != "" {
		return r.LocalPath
	}
	return r.URL
}
