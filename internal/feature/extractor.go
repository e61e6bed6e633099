package feature

import (
	"fmt"

	"FlowSentry/internal/model"
)

// Feature names in vector order. The order recorded in a model artifact must
// match this schema exactly at prediction time; a mismatch is a fatal
// configuration error, never silently reordered or truncated.
var schema = []string{
	"src_port",
	"dst_port",
	"packet_size",
	"duration",
	"flow_bytes_per_sec",
	"flow_packets_per_sec",
	"fwd_packets",
	"bwd_packets",
}

// Extractor maps validated flow samples to fixed-order feature vectors.
type Extractor struct {
	features []string
}

// NewExtractor creates an extractor over the default feature schema.
func NewExtractor() *Extractor {
	return &Extractor{features: schema}
}

// Schema returns the ordered feature names this extractor produces.
func (e *Extractor) Schema() []string {
	out := make([]string, len(e.features))
	copy(out, e.features)
	return out
}

// Vector produces the feature vector for a sample, in schema order.
func (e *Extractor) Vector(s FlowSample) []float64 {
	return []float64{
		s.SrcPort,
		s.DstPort,
		s.PacketSize,
		s.Duration,
		s.FlowBytesPerSec,
		s.FlowPacketsPerSec,
		s.FwdPackets,
		s.BwdPackets,
	}
}

// VectorFromRecord validates a record and extracts its feature vector.
func (e *Extractor) VectorFromRecord(rec model.TrafficRecord) ([]float64, error) {
	sample, err := NewFlowSample(rec)
	if err != nil {
		return nil, err
	}
	return e.Vector(sample), nil
}

// CheckSchema verifies that an artifact's recorded feature list matches this
// extractor's schema, in order.
func (e *Extractor) CheckSchema(features []string) error {
	if len(features) != len(e.features) {
		return fmt.Errorf("feature schema mismatch: artifact has %d features, extractor has %d",
			len(features), len(e.features))
	}
	for i, name := range e.features {
		if features[i] != name {
			return fmt.Errorf("feature schema mismatch at position %d: artifact has %q, extractor has %q",
				i, features[i], name)
		}
	}
	return nil
}
