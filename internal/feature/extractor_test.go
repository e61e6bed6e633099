package feature

import (
	"reflect"
	"testing"

	"FlowSentry/internal/model"
)

func validRecord() model.TrafficRecord {
	return model.TrafficRecord{
		ID:                "rec-1",
		SrcIP:             "192.168.0.10",
		DstIP:             "10.0.0.1",
		SrcPort:           44321,
		DstPort:           443,
		Protocol:          model.ProtocolHTTPS,
		PacketSize:        800,
		Duration:          1.25,
		FlowBytesPerSec:   640,
		FlowPacketsPerSec: 8,
		FwdPackets:        6,
		BwdPackets:        4,
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	e := NewExtractor()
	rec := validRecord()

	first, err := e.VectorFromRecord(rec)
	if err != nil {
		t.Fatalf("VectorFromRecord failed: %v", err)
	}
	second, err := e.VectorFromRecord(rec)
	if err != nil {
		t.Fatalf("VectorFromRecord failed on second call: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extraction is not deterministic: %v vs %v", first, second)
	}
	if len(first) != len(e.Schema()) {
		t.Errorf("Expected vector length %d, got %d", len(e.Schema()), len(first))
	}
}

func TestExtractor_VectorOrderMatchesSchema(t *testing.T) {
	e := NewExtractor()
	rec := validRecord()

	vec, err := e.VectorFromRecord(rec)
	if err != nil {
		t.Fatalf("VectorFromRecord failed: %v", err)
	}

	want := []float64{44321, 443, 800, 1.25, 640, 8, 6, 4}
	if !reflect.DeepEqual(vec, want) {
		t.Errorf("Vector does not follow schema order.\n got: %v\nwant: %v", vec, want)
	}
}

func TestNewFlowSample_Clamping(t *testing.T) {
	rec := validRecord()
	rec.SrcPort = -5
	rec.DstPort = 70000
	rec.Duration = 99999
	rec.FlowBytesPerSec = -12.5
	rec.PacketSize = -1

	sample, err := NewFlowSample(rec)
	if err != nil {
		t.Fatalf("NewFlowSample failed: %v", err)
	}

	if sample.SrcPort != 0 {
		t.Errorf("Expected src port clamped to 0, got %g", sample.SrcPort)
	}
	if sample.DstPort != MaxPort {
		t.Errorf("Expected dst port clamped to %d, got %g", MaxPort, sample.DstPort)
	}
	if sample.Duration != MaxDurationSeconds {
		t.Errorf("Expected duration clamped to %d, got %g", MaxDurationSeconds, sample.Duration)
	}
	if sample.FlowBytesPerSec != 0 {
		t.Errorf("Expected negative rate clamped to 0, got %g", sample.FlowBytesPerSec)
	}
	if sample.PacketSize != 0 {
		t.Errorf("Expected negative packet size clamped to 0, got %g", sample.PacketSize)
	}
}

func TestNewFlowSample_InvalidIP(t *testing.T) {
	rec := validRecord()
	rec.SrcIP = "not-an-ip"
	if _, err := NewFlowSample(rec); err == nil {
		t.Error("Expected error for invalid source IP, got nil")
	}

	rec = validRecord()
	rec.DstIP = ""
	if _, err := NewFlowSample(rec); err == nil {
		t.Error("Expected error for missing destination IP, got nil")
	}
}

func TestExtractor_CheckSchema(t *testing.T) {
	e := NewExtractor()

	if err := e.CheckSchema(e.Schema()); err != nil {
		t.Errorf("Matching schema should pass, got: %v", err)
	}

	short := e.Schema()[:4]
	if err := e.CheckSchema(short); err == nil {
		t.Error("Expected error for truncated schema, got nil")
	}

	reordered := e.Schema()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	if err := e.CheckSchema(reordered); err == nil {
		t.Error("Expected error for reordered schema, got nil")
	}
}
