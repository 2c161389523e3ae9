// Command shalo resolves a branch and shallow-fetches it for one or more
// Git repositories, for use as a CI source-checkout step.
package main

import (
	"context"
	"os"

	"github.com/nanoci/shalo/cli/cmd"
	"github.com/nanoci/shalo/log"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	if os.Getenv("SHALO_LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx := log.ToContext(context.Background(), log.NewLogrusLogger(logger))
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
