package model

import (
	"net"
	"time"
)

// Protocol identifies the transport or application protocol of a flow.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolFTP   Protocol = "FTP"
	ProtocolSSH   Protocol = "SSH"
	ProtocolDNS   Protocol = "DNS"
	ProtocolSMTP  Protocol = "SMTP"
	ProtocolOther Protocol = "OTHER"
)

// Label is the classification state of a traffic record.
type Label string

const (
	LabelPending   Label = "PENDING"
	LabelNormal    Label = "NORMAL"
	LabelAnomalous Label = "ANOMALOUS"
)

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	Length    int
}

// TrafficRecord is one observed network flow as persisted in the record store.
// Label stays PENDING and Confidence nil until a prediction pass has run;
// the scoring subsystem sets Label, Confidence and Processed together, once.
type TrafficRecord struct {
	ID                string
	SrcIP             string
	DstIP             string
	SrcPort           int
	DstPort           int
	Protocol          Protocol
	PacketSize        int64
	Duration          float64
	FlowBytesPerSec   float64
	FlowPacketsPerSec float64
	FwdPackets        int64
	BwdPackets        int64
	Label             Label
	Confidence        *float64
	Processed         bool
	CapturedAt        time.Time
	OriginFile        string
	ClaimedBy         string
	ClaimedAt         *time.Time
}

// PredictionRecord is an audit trail entry linking a TrafficRecord to the
// label and confidence a specific model version produced for it.
// Created once per record per batch run, never mutated.
type PredictionRecord struct {
	ID           string
	TrafficID    string
	Label        Label
	Confidence   float64
	ModelVersion string
	PredictedAt  time.Time
}

// PredictionUpdate carries the result of scoring one record back to the store.
type PredictionUpdate struct {
	RecordID     string
	Label        Label
	Confidence   float64
	ModelVersion string
}

// ScoringRun summarizes one batch prediction pass for analytics.
type ScoringRun struct {
	RunAt        time.Time
	ModelVersion string
	Processed    uint64
	Anomalies    uint64
	AnomalyRate  float64
}
