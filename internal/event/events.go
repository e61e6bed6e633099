package event

import "time"

// Subject suffixes appended to the configured subject prefix.
const (
	SubjectModelRetrained  = "model_retrained"
	SubjectHighAnomalyRate = "high_anomaly_rate"
)

// ModelRetrained is emitted after a training run publishes a new artifact.
type ModelRetrained struct {
	Version       string    `json:"version"`
	SampleCount   int       `json:"sample_count"`
	Synthetic     bool      `json:"synthetic"`
	Contamination float64   `json:"contamination"`
	AnomalyCount  int       `json:"anomaly_count"`
	TrainedAt     time.Time `json:"trained_at"`
}

// HighAnomalyRate is emitted when a batch run classifies more than the
// configured fraction of its records as anomalous. Operational signal, not
// a correctness check.
type HighAnomalyRate struct {
	RunAt        time.Time `json:"run_at"`
	ModelVersion string    `json:"model_version"`
	Processed    int       `json:"processed"`
	Anomalies    int       `json:"anomalies"`
	Rate         float64   `json:"rate"`
	Threshold    float64   `json:"threshold"`
}
