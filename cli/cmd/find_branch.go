package cmd

import (
	"fmt"

	"github.com/nanoci/shalo/cli/internal/auth"
	"github.com/nanoci/shalo/cli/internal/client"
	"github.com/nanoci/shalo/refadv"
	"github.com/nanoci/shalo/resolve"
	"github.com/spf13/cobra"
)

var findBranchCmd = &cobra.Command{
	Use:   "find-branch <url>",
	Short: "Resolve --branch against a repository's advertisement and print the result",
	Long: `find-branch runs the same resolution clone uses --branch, its
--branch-fallback rules, and --default-branch against a single repository's
ref advertisement, and prints the resolved branch name to stdout. Nothing
is fetched.

Examples:
  shalo find-branch https://example.com/org/repo.git --branch main
  shalo find-branch https://example.com/org/repo.git --branch feature/x \
    --branch-fallback '/^feature\/(.*)$/$1/' --default-branch main`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		url := args[0]

		authConfig := auth.FromEnvironment()
		authConfig.Merge(token, username, password)

		cfg := buildConfig()

		t, err := client.New(ctx, url, authConfig)
		if err != nil {
			return err
		}

		adv, err := refadv.List(ctx, t, cfg.RefAdvOptions(url))
		if err != nil {
			return err
		}

		fallbacks, err := cfg.BranchFallbacks()
		if err != nil {
			return fmt.Errorf("parsing branch fallback rules: %w", err)
		}

		resolved, err := resolve.Resolve(adv, cfg.Branch, fallbacks, cfg.DefaultBranch)
		if err != nil {
			return err
		}

		fmt.Println(resolved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findBranchCmd)
}
