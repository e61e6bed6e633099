package feature

import (
	"fmt"
	"net"

	"FlowSentry/internal/model"
)

// Bounds applied when a record carries out-of-range values. Values outside
// these ranges are clamped rather than rejected so that one malformed row
// cannot fail a whole batch.
const (
	MaxPort            = 65535
	MaxDurationSeconds = 3600
)

// FlowSample is the validated numeric intermediate between a raw
// TrafficRecord and a feature vector. All fields are clamped to their
// documented bounds; missing numerics default to zero.
type FlowSample struct {
	SrcPort           float64
	DstPort           float64
	PacketSize        float64
	Duration          float64
	FlowBytesPerSec   float64
	FlowPacketsPerSec float64
	FwdPackets        float64
	BwdPackets        float64
}

// NewFlowSample validates a traffic record and produces its clamped sample.
// A record without parseable endpoint addresses is a data error: the caller
// is expected to skip it and leave it unprocessed for a later retry.
func NewFlowSample(rec model.TrafficRecord) (FlowSample, error) {
	if net.ParseIP(rec.SrcIP) == nil {
		return FlowSample{}, fmt.Errorf("record %s: invalid source IP %q", rec.ID, rec.SrcIP)
	}
	if net.ParseIP(rec.DstIP) == nil {
		return FlowSample{}, fmt.Errorf("record %s: invalid destination IP %q", rec.ID, rec.DstIP)
	}

	return FlowSample{
		SrcPort:           clamp(float64(rec.SrcPort), 0, MaxPort),
		DstPort:           clamp(float64(rec.DstPort), 0, MaxPort),
		PacketSize:        clamp(float64(rec.PacketSize), 0, maxFloat),
		Duration:          clamp(rec.Duration, 0, MaxDurationSeconds),
		FlowBytesPerSec:   clamp(rec.FlowBytesPerSec, 0, maxFloat),
		FlowPacketsPerSec: clamp(rec.FlowPacketsPerSec, 0, maxFloat),
		FwdPackets:        clamp(float64(rec.FwdPackets), 0, maxFloat),
		BwdPackets:        clamp(float64(rec.BwdPackets), 0, maxFloat),
	}, nil
}

const maxFloat = 1.7976931348623157e308

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
