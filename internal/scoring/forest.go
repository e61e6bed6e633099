package scoring

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/hed1ad/goguardml/pkg/detectors/iforest"

	"FlowSentry/internal/config"
	"FlowSentry/internal/model"
)

// forestState is the persisted form of a fitted isolation forest. The
// detector's trees hold unexported state that gob cannot encode, so Save
// records the fitted parameters and training matrix instead and Load refits.
// With a fixed seed the rebuilt forest scores identically.
type forestState struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
	Data          [][]float64
}

// forestEstimator implements model.Estimator around the isolation forest
// detector, adding a serialization format that survives process restarts.
type forestEstimator struct {
	state forestState
	inner model.Estimator
}

func newForestEstimator(cfg config.TrainingConfig) *forestEstimator {
	return &forestEstimator{
		state: forestState{
			Trees:         cfg.Trees,
			SampleSize:    cfg.SampleSize,
			Contamination: cfg.Contamination,
			Seed:          cfg.Seed,
		},
	}
}

func (f *forestEstimator) detector() model.Estimator {
	return iforest.New(
		iforest.WithTrees(f.state.Trees),
		iforest.WithSampleSize(f.state.SampleSize),
		iforest.WithContamination(f.state.Contamination),
		iforest.WithSeed(f.state.Seed),
	)
}

func (f *forestEstimator) Fit(data [][]float64) error {
	det := f.detector()
	if err := det.Fit(data); err != nil {
		return err
	}
	f.inner = det
	f.state.Data = data
	return nil
}

func (f *forestEstimator) Predict(data [][]float64) ([]float64, error) {
	if f.inner == nil {
		return nil, fmt.Errorf("estimator is not fitted")
	}
	return f.inner.Predict(data)
}

func (f *forestEstimator) Threshold() float64 {
	if f.inner == nil {
		return 0
	}
	return f.inner.Threshold()
}

func (f *forestEstimator) Save() ([]byte, error) {
	if f.inner == nil {
		return nil, fmt.Errorf("cannot save an unfitted estimator")
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f.state); err != nil {
		return nil, fmt.Errorf("failed to encode forest state: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *forestEstimator) Load(data []byte) error {
	var state forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode forest state: %w", err)
	}
	if len(state.Data) == 0 {
		return fmt.Errorf("decoded forest state has no training data")
	}
	det := (&forestEstimator{state: state}).detector()
	if err := det.Fit(state.Data); err != nil {
		return fmt.Errorf("failed to rebuild forest: %w", err)
	}
	f.state = state
	f.inner = det
	return nil
}
