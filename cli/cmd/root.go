package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/nanoci/shalo/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Auth flags, shared by both subcommands.
	token    string
	username string
	password string
	jsonOut  bool
	debug    bool

	// Resolver flags, shared by both subcommands.
	branch              string
	branchFallbackSpecs []string
	defaultBranch       string
	branchPrefixes      []string
	tagPrefixes         []string
	baseURL             string
	maxDepth            int
	concurrency         int
)

var rootCmd = &cobra.Command{
	Use:   "shalo",
	Short: "A lightweight, HTTP(S)-only Git client for CI source checkouts",
	Long: `shalo is a lightweight, HTTP(S)-only Git implementation for resolving a
branch and shallow-fetching it across one or more repositories in a single
CI run.

Authentication can be provided via flags or environment variables:
  - SHALO_TOKEN:  General token for any provider
  - GITHUB_TOKEN: GitHub-specific token
  - GITLAB_TOKEN: GitLab-specific token
  - SHALO_USERNAME + SHALO_PASSWORD: Basic auth`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx threaded through to every
// subcommand's RunE via cobra.Command.Context(), carrying the caller's
// logger (see log.FromContext).
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Authentication token")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Username for basic auth")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password for basic auth")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.PersistentFlags().StringVar(&branch, "branch", "", "Branch name to resolve")
	rootCmd.PersistentFlags().StringArrayVar(&branchFallbackSpecs, "branch-fallback", nil, "Fallback rule /<regex>/<replacement>/ applied to the branch name (repeatable, tried in order)")
	rootCmd.PersistentFlags().StringVar(&defaultBranch, "default-branch", "", "Branch to fall back to once every --branch-fallback rule is exhausted")
	rootCmd.PersistentFlags().StringArrayVar(&branchPrefixes, "branches-starting-with", nil, "Restrict the branch advertisement to refs/heads/ names under this prefix (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&tagPrefixes, "tags-starting-with", nil, "Restrict the tag advertisement to refs/tags/ names under this prefix (repeatable)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL repository arguments are resolved against when not absolute")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 1000, "Maximum commit depth to fetch before giving up")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 1, "Number of repositories to process concurrently")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if debug {
			if err := os.Setenv("SHALO_LOG_LEVEL", "debug"); err != nil {
				return fmt.Errorf("failed to set debug log level: %w", err)
			}
			// main built its logger before flags were parsed, so install a
			// debug-level one on the command's context here.
			logger := logrus.New()
			logger.SetLevel(logrus.DebugLevel)
			cmd.SetContext(log.ToContext(cmd.Context(), log.NewLogrusLogger(logger)))
		}
		return nil
	}
}

// getOutputFormat returns "json" if the json flag is set, otherwise "human".
func getOutputFormat() string {
	if jsonOut {
		return "json"
	}
	return "human"
}
