// Config is the command-line configuration shared by the find-branch and
// clone subcommands: the branch name plus its fallback chain, the ref-
// advertisement prefix filters, and (for clone) the base URL repositories
// are resolved against. Both commands bind it with pflag.StringArray for
// the repeatable flags, bound once as persistent flags in cli/cmd/root.go.
package gitconfig

import (
	"github.com/nanoci/shalo/driver"
	"github.com/nanoci/shalo/refadv"
	"github.com/nanoci/shalo/resolve"
)

// Config holds the raw flag values before the fallback specs are parsed
// into resolve.Rules. BranchFallbackSpecs, BranchPrefixes, and TagPrefixes
// are populated directly from pflag.StringArray flags, so they preserve the
// user's command-line ordering (BFS fallback order and ref-prefix filter
// order both matter).
type Config struct {
	Branch              string
	BranchFallbackSpecs []string
	DefaultBranch       string
	BranchPrefixes      []string
	TagPrefixes         []string
	BaseURL             string
	MaxDepth            int
	Concurrency         int
	// Checkout is set by clone (never find-branch) to materialize a working
	// tree after the fetch-deepen loop finishes.
	Checkout bool
}

// BranchFallbacks parses BranchFallbackSpecs into resolve.Rules, in
// declaration order.
func (c Config) BranchFallbacks() ([]resolve.Rule, error) {
	return ParseFallbackRules(c.BranchFallbackSpecs)
}

// RefAdvOptions builds the refadv.Options this config implies for one
// repository URL.
func (c Config) RefAdvOptions(repoURL string) refadv.Options {
	return refadv.Options{
		RepoURL:        repoURL,
		BranchPrefixes: c.BranchPrefixes,
		TagPrefixes:    c.TagPrefixes,
	}
}

// DriverOptions builds the driver.Options this config implies, resolving
// BranchFallbackSpecs into resolve.Rules.
func (c Config) DriverOptions() (driver.Options, error) {
	fallbacks, err := c.BranchFallbacks()
	if err != nil {
		return driver.Options{}, err
	}
	return driver.Options{
		BaseURL:         c.BaseURL,
		Branch:          c.Branch,
		BranchFallbacks: fallbacks,
		DefaultBranch:   c.DefaultBranch,
		BranchPrefixes:  c.BranchPrefixes,
		TagPrefixes:     c.TagPrefixes,
		MaxDepth:        c.MaxDepth,
		Concurrency:     c.Concurrency,
		Checkout:        c.Checkout,
	}, nil
}
