package model

import "context"

// RunSink receives per-run scoring summaries for analytics storage.
type RunSink interface {
	WriteRun(ctx context.Context, run ScoringRun) error
}
