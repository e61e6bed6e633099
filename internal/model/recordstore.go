package model

import "context"

// RecordStore is the persistence boundary for traffic records and their
// prediction audit rows.
type RecordStore interface {
	// InsertRecords persists newly ingested flows in PENDING state.
	InsertRecords(ctx context.Context, records []TrafficRecord) error

	// FetchTrainingSample returns up to limit records, processed or not,
	// for model training.
	FetchTrainingSample(ctx context.Context, limit int) ([]TrafficRecord, error)

	// ClaimUnprocessed leases up to limit unprocessed records to claimant so
	// that no two overlapping batch runs score the same record. A limit <= 0
	// claims all unprocessed records. When ids is non-empty the claim is
	// restricted to that subset.
	ClaimUnprocessed(ctx context.Context, claimant string, ids []string, limit int) ([]TrafficRecord, error)

	// ReleaseClaims returns leased records to the unprocessed pool without
	// marking them processed, so a later run can retry them.
	ReleaseClaims(ctx context.Context, claimant string, ids []string) error

	// ApplyPredictions sets label, confidence and processed=true on each
	// record and creates its prediction audit row, atomically per batch.
	ApplyPredictions(ctx context.Context, updates []PredictionUpdate) error

	// CountByLabel returns how many records carry each label.
	CountByLabel(ctx context.Context) (map[Label]int64, error)
}
