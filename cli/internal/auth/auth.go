// Package auth reads authentication configuration from the environment and
// command-line flags and turns it into an *http.Client usable with
// transport.WithHTTPClient.
//
// Grounded on the teacher's precedence rules (token env var > GITHUB_TOKEN >
// GITLAB_TOKEN, flags override environment) with ToOptions replaced:
// transport has no auth-specific constructor options (§1 Non-goals — an
// http.Client the caller configures already carries proxy/TLS/auth
// concerns), so auth is injected as a RoundTripper instead.
package auth

import (
	"net/http"
	"os"
)

// Config holds authentication configuration.
type Config struct {
	Token    string
	Username string
	Password string
}

// FromEnvironment reads authentication from environment variables.
// Priority: SHALO_TOKEN > GITHUB_TOKEN > GITLAB_TOKEN.
func FromEnvironment() *Config {
	token := os.Getenv("SHALO_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		token = os.Getenv("GITLAB_TOKEN")
	}

	return &Config{
		Token:    token,
		Username: os.Getenv("SHALO_USERNAME"),
		Password: os.Getenv("SHALO_PASSWORD"),
	}
}

// Merge combines environment auth with command-line flags. Command-line
// flags take precedence over environment variables.
func (c *Config) Merge(flagToken, flagUsername, flagPassword string) {
	if flagToken != "" {
		c.Token = flagToken
	}
	if flagUsername != "" {
		c.Username = flagUsername
	}
	if flagPassword != "" {
		c.Password = flagPassword
	}
}

// HasAuth returns true if any authentication is configured.
func (c *Config) HasAuth() bool {
	return c.Token != "" || (c.Username != "" && c.Password != "")
}

// ToHTTPClient returns an *http.Client that injects c's credentials on
// every request: a bearer token if one is set, else HTTP basic auth if a
// username/password pair is set, else a plain client. Token takes
// precedence over basic auth, matching the teacher's ordering.
func (c *Config) ToHTTPClient() *http.Client {
	if !c.HasAuth() {
		return &http.Client{}
	}
	return &http.Client{Transport: &authRoundTripper{base: http.DefaultTransport, config: c}}
}

type authRoundTripper struct {
	base   http.RoundTripper
	config *Config
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if rt.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+rt.config.Token)
	} else if rt.config.Username != "" && rt.config.Password != "" {
		req.SetBasicAuth(rt.config.Username, rt.config.Password)
	}
	return rt.base.RoundTrip(req)
}
