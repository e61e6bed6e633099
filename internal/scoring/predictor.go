package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"FlowSentry/internal/artifact"
	"FlowSentry/internal/config"
	"FlowSentry/internal/event"
	"FlowSentry/internal/feature"
	"FlowSentry/internal/model"
)

// Predictor classifies unprocessed traffic records with the current model
// artifact. Each run claims its records first so that overlapping runs can
// never score the same record twice.
type Predictor struct {
	store     model.RecordStore
	artifacts *artifact.Store
	events    model.EventPublisher
	runs      model.RunSink
	extractor *feature.Extractor
	trainer   *Trainer
	cfg       config.PredictConfig
}

// NewPredictor creates a batch predictor. events and runs may be nil.
func NewPredictor(store model.RecordStore, artifacts *artifact.Store, trainer *Trainer,
	events model.EventPublisher, runs model.RunSink, cfg config.PredictConfig) *Predictor {
	return &Predictor{
		store:     store,
		artifacts: artifacts,
		events:    events,
		runs:      runs,
		extractor: feature.NewExtractor(),
		trainer:   trainer,
		cfg:       cfg,
	}
}

// Predict scores all unprocessed records, or the given subset, and returns
// how many were processed. Updates are written in batches of batchSize
// (the configured default when batchSize <= 0).
//
// Confidence scores are min-max normalized within the current batch; they
// are comparable inside one run, not across runs.
func (p *Predictor) Predict(ctx context.Context, ids []string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	claimant := uuid.NewString()
	records, err := p.store.ClaimUnprocessed(ctx, claimant, ids, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to claim unprocessed records: %w", err)
	}
	if len(records) == 0 {
		log.Println("No unprocessed records to score")
		return 0, nil
	}

	manifest, scaler, est, err := p.loadArtifact(ctx)
	if err != nil {
		p.releaseAll(ctx, claimant, records)
		return 0, err
	}

	// Extract in artifact feature order; a record that fails validation is
	// released, not silently marked NORMAL, so a later run can retry it.
	scored := make([]model.TrafficRecord, 0, len(records))
	vectors := make([][]float64, 0, len(records))
	var skipped []string
	for _, rec := range records {
		vec, err := p.extractor.VectorFromRecord(rec)
		if err != nil {
			log.Printf("Skipping record: %v", err)
			skipped = append(skipped, rec.ID)
			continue
		}
		scored = append(scored, rec)
		vectors = append(vectors, vec)
	}
	if len(skipped) > 0 {
		if err := p.store.ReleaseClaims(ctx, claimant, skipped); err != nil {
			log.Printf("Failed to release claims on skipped records: %v", err)
		}
	}
	if len(scored) == 0 {
		return 0, nil
	}

	scaled, err := scaler.Transform(vectors)
	if err != nil {
		p.releaseAll(ctx, claimant, scored)
		return 0, fmt.Errorf("failed to standardize batch: %w", err)
	}
	scores, err := est.Predict(scaled)
	if err != nil {
		p.releaseAll(ctx, claimant, scored)
		return 0, fmt.Errorf("failed to score batch: %w", err)
	}

	confidences := normalizeScores(scores)
	threshold := est.Threshold()

	anomalies := 0
	updates := make([]model.PredictionUpdate, len(scored))
	for i, rec := range scored {
		label := model.LabelNormal
		if scores[i] >= threshold {
			label = model.LabelAnomalous
			anomalies++
		}
		updates[i] = model.PredictionUpdate{
			RecordID:     rec.ID,
			Label:        label,
			Confidence:   confidences[i],
			ModelVersion: manifest.Version,
		}
	}

	// Bound transaction size by writing in batches. On a failed write the
	// unapplied tail is released instead of sitting claimed until the lease
	// expires.
	for start := 0; start < len(updates); start += batchSize {
		end := start + batchSize
		if end > len(updates) {
			end = len(updates)
		}
		if err := p.store.ApplyPredictions(ctx, updates[start:end]); err != nil {
			p.releaseAll(ctx, claimant, scored[start:])
			return start, fmt.Errorf("failed to apply predictions: %w", err)
		}
	}

	rate := float64(anomalies) / float64(len(updates))
	log.Printf("Scored %d records: %d anomalous (%.1f%%), model=%s, skipped=%d",
		len(updates), anomalies, rate*100, manifest.Version, len(skipped))

	runAt := time.Now().UTC()
	if rate > p.cfg.AlertRate && p.events != nil {
		ev := event.HighAnomalyRate{
			RunAt:        runAt,
			ModelVersion: manifest.Version,
			Processed:    len(updates),
			Anomalies:    anomalies,
			Rate:         rate,
			Threshold:    p.cfg.AlertRate,
		}
		if err := p.events.Publish(event.SubjectHighAnomalyRate, ev); err != nil {
			log.Printf("Failed to publish high anomaly rate event: %v", err)
		}
	}
	if p.runs != nil {
		run := model.ScoringRun{
			RunAt:        runAt,
			ModelVersion: manifest.Version,
			Processed:    uint64(len(updates)),
			Anomalies:    uint64(anomalies),
			AnomalyRate:  rate,
		}
		if err := p.runs.WriteRun(ctx, run); err != nil {
			log.Printf("Failed to write scoring run summary: %v", err)
		}
	}

	return len(updates), nil
}

// loadArtifact loads the current Scaler+Model pair, training one first if
// none exists yet. A feature schema mismatch between the artifact and the
// extractor is a fatal configuration error.
func (p *Predictor) loadArtifact(ctx context.Context) (artifact.Manifest, *feature.Scaler, model.Estimator, error) {
	art, err := p.artifacts.LoadCurrent()
	if errors.Is(err, artifact.ErrNoArtifact) {
		log.Println("No model artifact found, training before prediction")
		if trainErr := p.trainer.Train(ctx); trainErr != nil {
			return artifact.Manifest{}, nil, nil, fmt.Errorf("no artifact and training failed: %w", trainErr)
		}
		art, err = p.artifacts.LoadCurrent()
	}
	if err != nil {
		return artifact.Manifest{}, nil, nil, fmt.Errorf("failed to load model artifact: %w", err)
	}

	if err := p.extractor.CheckSchema(art.Manifest.Features); err != nil {
		return artifact.Manifest{}, nil, nil, fmt.Errorf("artifact %s unusable: %w", art.Manifest.Version, err)
	}

	scaler, err := feature.DecodeScaler(art.Scaler)
	if err != nil {
		return artifact.Manifest{}, nil, nil, err
	}

	est := model.Estimator(&forestEstimator{})
	if err := est.Load(art.Model); err != nil {
		return artifact.Manifest{}, nil, nil, fmt.Errorf("failed to load estimator: %w", err)
	}

	return art.Manifest, scaler, est, nil
}

func (p *Predictor) releaseAll(ctx context.Context, claimant string, records []model.TrafficRecord) {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := p.store.ReleaseClaims(ctx, claimant, ids); err != nil {
		log.Printf("Failed to release claims after aborted run: %v", err)
	}
}

// normalizeScores maps raw anomaly scores into [0, 1] by min-max
// normalization across the batch. A batch with a single distinct score maps
// to 0.5 everywhere.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
