package feature

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
)

// Scaler standardizes feature vectors to zero mean and unit variance using
// statistics fitted on a training set. It is persisted alongside the model
// so that prediction uses exactly the training-time statistics.
type Scaler struct {
	Means []float64
	Stds  []float64
}

// FitScaler computes per-feature mean and standard deviation over the rows.
// A constant feature gets a standard deviation of 1 so that transforming it
// yields zero instead of dividing by zero.
func FitScaler(rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty training set")
	}
	width := len(rows[0])

	means := make([]float64, width)
	for _, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("ragged training set: row has %d features, expected %d", len(row), width)
		}
		for i, v := range row {
			means[i] += v
		}
	}
	n := float64(len(rows))
	for i := range means {
		means[i] /= n
	}

	stds := make([]float64, width)
	for _, row := range rows {
		for i, v := range row {
			d := v - means[i]
			stds[i] += d * d
		}
	}
	for i := range stds {
		stds[i] = math.Sqrt(stds[i] / n)
		if stds[i] == 0 {
			stds[i] = 1
		}
	}

	return &Scaler{Means: means, Stds: stds}, nil
}

// Transform standardizes rows in place-safe fashion and returns the result.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformOne(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformOne standardizes a single feature vector.
func (s *Scaler) TransformOne(row []float64) ([]float64, error) {
	if len(row) != len(s.Means) {
		return nil, fmt.Errorf("vector has %d features, scaler fitted on %d", len(row), len(s.Means))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = (v - s.Means[i]) / s.Stds[i]
	}
	return out, nil
}

// Encode serializes the scaler parameters with gob.
func (s *Scaler) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode scaler: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeScaler restores a scaler serialized by Encode.
func DecodeScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}
	if len(s.Means) == 0 || len(s.Means) != len(s.Stds) {
		return nil, fmt.Errorf("decoded scaler is malformed: %d means, %d stds", len(s.Means), len(s.Stds))
	}
	return &s, nil
}
