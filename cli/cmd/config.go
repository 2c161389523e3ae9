package cmd

import "github.com/nanoci/shalo/gitconfig"

// buildConfig translates the persistent resolver flags into a gitconfig.Config,
// shared between find-branch and clone.
func buildConfig() gitconfig.Config {
	return gitconfig.Config{
		Branch:              branch,
		BranchFallbackSpecs: branchFallbackSpecs,
		DefaultBranch:       defaultBranch,
		BranchPrefixes:      branchPrefixes,
		TagPrefixes:         tagPrefixes,
		BaseURL:             baseURL,
		MaxDepth:            maxDepth,
		Concurrency:         concurrency,
	}
}
