package preflight

import (
	"context"
	"strings"

	"scanviewer/internal/backend"
	"scanviewer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks applicable to cfg. The backend is only probed
// when a catalog is supplied.
func RunAll(ctx context.Context, cfg *config.Config, catalog backend.Catalog) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("State directory", cfg.Server.StateDir)}

	if path := strings.TrimSpace(cfg.Viewer.LabelsPath); path != "" {
		results = append(results, CheckFileReadable("Labels file", path))
	}

	if catalog != nil {
		results = append(results, CheckBackend(ctx, catalog))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
