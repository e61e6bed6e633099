package scoring

import (
	"context"
	"fmt"
	"log"
	"time"

	"FlowSentry/internal/artifact"
	"FlowSentry/internal/config"
	"FlowSentry/internal/event"
	"FlowSentry/internal/feature"
	"FlowSentry/internal/model"
)

// Trainer assembles a training set from stored traffic records, fits a
// Scaler+Model pair and publishes it as a new artifact version. The previous
// artifact stays current until the new one is fully written.
type Trainer struct {
	store     model.RecordStore
	artifacts *artifact.Store
	events    model.EventPublisher
	extractor *feature.Extractor
	cfg       config.TrainingConfig
}

// NewTrainer creates a training orchestrator. The events publisher may be
// nil, in which case "model retrained" events are only logged.
func NewTrainer(store model.RecordStore, artifacts *artifact.Store, events model.EventPublisher, cfg config.TrainingConfig) *Trainer {
	return &Trainer{
		store:     store,
		artifacts: artifacts,
		events:    events,
		extractor: feature.NewExtractor(),
		cfg:       cfg,
	}
}

// Train fits and persists a new Scaler+Model pair. When fewer than
// MinSamples usable records exist, or the real-data path fails outright, it
// falls back to synthetic training data rather than leaving no model in
// place.
func (t *Trainer) Train(ctx context.Context) error {
	vectors, synthetic := t.assembleTrainingSet(ctx)

	scaler, err := feature.FitScaler(vectors)
	if err != nil {
		return fmt.Errorf("failed to fit scaler: %w", err)
	}
	scaled, err := scaler.Transform(vectors)
	if err != nil {
		return fmt.Errorf("failed to standardize training set: %w", err)
	}

	est := t.newEstimator()
	if err := est.Fit(scaled); err != nil {
		return fmt.Errorf("failed to fit estimator: %w", err)
	}

	scores, err := est.Predict(scaled)
	if err != nil {
		return fmt.Errorf("failed to score training set: %w", err)
	}
	anomalyCount := 0
	for _, score := range scores {
		if score >= est.Threshold() {
			anomalyCount++
		}
	}

	scalerBytes, err := scaler.Encode()
	if err != nil {
		return err
	}
	modelBytes, err := est.Save()
	if err != nil {
		return fmt.Errorf("failed to serialize estimator: %w", err)
	}

	manifest := artifact.Manifest{
		Features:      t.extractor.Schema(),
		TrainedAt:     time.Now().UTC(),
		SampleCount:   len(vectors),
		Synthetic:     synthetic,
		Contamination: t.cfg.Contamination,
		AnomalyCount:  anomalyCount,
	}
	version, err := t.artifacts.Save(manifest, scalerBytes, modelBytes)
	if err != nil {
		return fmt.Errorf("failed to persist artifact: %w", err)
	}

	log.Printf("Model retrained: version=%s samples=%d synthetic=%v contamination=%.2f anomalies=%d",
		version, len(vectors), synthetic, t.cfg.Contamination, anomalyCount)

	if t.events != nil {
		ev := event.ModelRetrained{
			Version:       version,
			SampleCount:   len(vectors),
			Synthetic:     synthetic,
			Contamination: t.cfg.Contamination,
			AnomalyCount:  anomalyCount,
			TrainedAt:     manifest.TrainedAt,
		}
		if err := t.events.Publish(event.SubjectModelRetrained, ev); err != nil {
			log.Printf("Failed to publish model retrained event: %v", err)
		}
	}

	return nil
}

// assembleTrainingSet fetches real records and extracts their vectors,
// falling back to synthetic data when too few usable records exist or the
// real-data path fails.
func (t *Trainer) assembleTrainingSet(ctx context.Context) ([][]float64, bool) {
	records, err := t.store.FetchTrainingSample(ctx, t.cfg.MaxSamples)
	if err != nil {
		log.Printf("Failed to fetch training sample, using synthetic data: %v", err)
		return GenerateSynthetic(t.cfg.SyntheticSamples, t.cfg.Seed), true
	}

	vectors := make([][]float64, 0, len(records))
	skipped := 0
	for _, rec := range records {
		vec, err := t.extractor.VectorFromRecord(rec)
		if err != nil {
			skipped++
			continue
		}
		vectors = append(vectors, vec)
	}
	if skipped > 0 {
		log.Printf("Skipped %d malformed records while assembling training set", skipped)
	}

	if len(vectors) < t.cfg.MinSamples {
		log.Printf("Only %d usable records (minimum %d), using synthetic training data",
			len(vectors), t.cfg.MinSamples)
		return GenerateSynthetic(t.cfg.SyntheticSamples, t.cfg.Seed), true
	}
	return vectors, false
}

func (t *Trainer) newEstimator() model.Estimator {
	return newForestEstimator(t.cfg)
}
