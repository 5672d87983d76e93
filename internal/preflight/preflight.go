package preflight

import (
	"context"

	"audiogen/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string

	// Optional failures are reported but do not fail the run.
	Optional bool
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	download := CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir)
	download.Optional = true
	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		download,
	}

	server := CheckServer(ctx, cfg.Server.URL, cfg.RequestTimeout())
	results = append(results, server)

	// The socket probe only adds noise when the server is down.
	if server.Passed {
		results = append(results, CheckSocketEndpoint(ctx, cfg.Server.URL, cfg.Server.SocketPath, cfg.DialTimeout()))
	}
	return results
}

// Failed reports whether any required result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
