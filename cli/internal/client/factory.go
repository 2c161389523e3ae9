// Package client builds the transport used by both CLI subcommands from a
// repository URL and the resolved auth.Config, applying credentials via the
// http.Client injection point transport.New exposes.
package client

import (
	"context"

	"github.com/nanoci/shalo/cli/internal/auth"
	"github.com/nanoci/shalo/transport"
)

// New builds a *transport.Transport for repoURL, wiring authConfig's
// credentials into the underlying http.Client.
func New(ctx context.Context, repoURL string, authConfig *auth.Config) (*transport.Transport, error) {
	return transport.New(repoURL, transport.WithHTTPClient(authConfig.ToHTTPClient()))
}
