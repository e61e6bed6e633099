package scoring

import (
	"reflect"
	"testing"

	"FlowSentry/internal/feature"
)

func TestGenerateSynthetic_Shape(t *testing.T) {
	rows := GenerateSynthetic(500, 42)
	if len(rows) != 500 {
		t.Fatalf("Expected 500 rows, got %d", len(rows))
	}

	width := len(feature.NewExtractor().Schema())
	for i, row := range rows {
		if len(row) != width {
			t.Fatalf("Row %d has width %d, expected %d", i, len(row), width)
		}
		if row[0] < 1024 || row[0] > 65535 {
			t.Errorf("Row %d src port %g out of range", i, row[0])
		}
		if row[1] < 1 || row[1] > 65535 {
			t.Errorf("Row %d dst port %g out of range", i, row[1])
		}
		for j, v := range row {
			if v < 0 {
				t.Errorf("Row %d column %d is negative: %g", i, j, v)
			}
		}
	}
}

func TestGenerateSynthetic_Deterministic(t *testing.T) {
	a := GenerateSynthetic(100, 42)
	b := GenerateSynthetic(100, 42)
	if !reflect.DeepEqual(a, b) {
		t.Error("Same seed must produce identical synthetic data")
	}

	c := GenerateSynthetic(100, 7)
	if reflect.DeepEqual(a, c) {
		t.Error("Different seeds should produce different synthetic data")
	}
}
