package model

// Estimator is the outlier-detection model used to score feature vectors.
// Scores are normalized to [0, 1]; a score at or above Threshold marks a
// sample as an outlier. Implemented by the isolation forest detector.
type Estimator interface {
	// Fit trains the estimator on rows of feature vectors.
	Fit(data [][]float64) error

	// Predict returns an anomaly score per input row.
	Predict(data [][]float64) ([]float64, error)

	// Save serializes the trained estimator.
	Save() ([]byte, error)

	// Load restores a previously saved estimator.
	Load(data []byte) error

	// Threshold is the score above which a sample counts as an outlier.
	Threshold() float64
}
