package cmd

import (
	"context"
	"fmt"

	"github.com/nanoci/shalo/cli/internal/auth"
	"github.com/nanoci/shalo/cli/internal/client"
	"github.com/nanoci/shalo/cli/internal/output"
	"github.com/nanoci/shalo/driver"
	"github.com/nanoci/shalo/gitoutput"
	"github.com/spf13/cobra"
)

var (
	cloneTagOutputFile      string
	cloneManifestOutputFile string
)

var cloneCmd = &cobra.Command{
	Use:   "clone <url> [urls...]",
	Short: "Resolve a branch and shallow-fetch it for one or more repositories",
	Long: `clone resolves --branch (applying --branch-fallback rules and falling
back to --default-branch) against each repository's advertisement, then
shallow-fetches the result, deepening only as far as needed to cover the
nearest tag.

Examples:
  # Clone a single repository's main branch
  shalo clone https://example.com/org/repo.git --branch main

  # Clone several repositories relative to a base URL, recording results
  shalo clone a.git b.git --base-url https://example.com/org/ \
    --branch main --tag-output-file tags.txt --manifest-output-file manifest.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		authConfig := auth.FromEnvironment()
		authConfig.Merge(token, username, password)

		cfg := buildConfig()
		cfg.Checkout = true
		opts, err := cfg.DriverOptions()
		if err != nil {
			return fmt.Errorf("parsing branch fallback rules: %w", err)
		}

		repos := make([]driver.RepoSpec, len(args))
		for i, url := range args {
			repos[i] = driver.RepoSpec{URL: url}
		}

		newTransport := func(ctx context.Context, repoURL string) (driver.Fetcher, error) {
			return client.New(ctx, repoURL, authConfig)
		}

		results, err := driver.Run(ctx, repos, opts, newTransport)
		if err != nil {
			return fmt.Errorf("cloning: %w", err)
		}

		if cloneTagOutputFile != "" {
			if err := gitoutput.WriteTagFile(cloneTagOutputFile, results); err != nil {
				return err
			}
		}
		if cloneManifestOutputFile != "" {
			if err := gitoutput.WriteManifestFile(cloneManifestOutputFile, results); err != nil {
				return err
			}
		}

		formatter := output.Get(getOutputFormat())
		return formatter.FormatCloneResults(results)
	},
}

func init() {
	cloneCmd.Flags().StringVar(&cloneTagOutputFile, "tag-output-file", "", "Write a <repo> <tag> <tip> line per repository to this path")
	cloneCmd.Flags().StringVar(&cloneManifestOutputFile, "manifest-output-file", "", "Write a full per-repository manifest record to this path")
	rootCmd.AddCommand(cloneCmd)
}
