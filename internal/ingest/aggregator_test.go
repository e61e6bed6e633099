package ingest

import (
	"net"
	"testing"
	"time"

	"FlowSentry/internal/model"
)

func packetInfo(srcIP, dstIP string, srcPort, dstPort uint16, length int, ts time.Time) *model.PacketInfo {
	return &model.PacketInfo{
		FiveTuple: model.FiveTuple{
			SrcIP:    net.ParseIP(srcIP),
			DstIP:    net.ParseIP(dstIP),
			SrcPort:  srcPort,
			DstPort:  dstPort,
			Protocol: 6,
		},
		Timestamp: ts,
		Length:    length,
	}
}

func TestFlowAggregator_BidirectionalMerge(t *testing.T) {
	fa := NewFlowAggregator(1, 10, time.Second, time.Second, "test.pcap")
	base := time.Now()

	// Three packets forward, two replies. Both directions must land in the
	// same flow with the creator defining forward.
	for i := 0; i < 3; i++ {
		fa.ProcessPacket(packetInfo("192.168.1.2", "10.0.0.1", 50000, 443, 100, base.Add(time.Duration(i)*time.Millisecond)))
	}
	for i := 0; i < 2; i++ {
		fa.ProcessPacket(packetInfo("10.0.0.1", "192.168.1.2", 443, 50000, 200, base.Add(time.Duration(3+i)*time.Millisecond)))
	}

	if count := fa.FlowCount(); count != 1 {
		t.Fatalf("Expected 1 flow for a bidirectional conversation, got %d", count)
	}

	records := fa.FlushInactive(0)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.FwdPackets != 3 || rec.BwdPackets != 2 {
		t.Errorf("Expected 3 forward and 2 backward packets, got %d/%d", rec.FwdPackets, rec.BwdPackets)
	}
	if rec.SrcIP != "192.168.1.2" || rec.DstIP != "10.0.0.1" {
		t.Errorf("Flow orientation should follow the first packet, got %s -> %s", rec.SrcIP, rec.DstIP)
	}
	if rec.Protocol != model.ProtocolHTTPS {
		t.Errorf("Expected HTTPS for port 443, got %s", rec.Protocol)
	}
	if fa.FlowCount() != 0 {
		t.Error("Flushed flow still present in the aggregator")
	}
}

func TestFlowAggregator_RecordFields(t *testing.T) {
	fa := NewFlowAggregator(1, 10, time.Second, time.Second, "capture.pcap")
	base := time.Now()

	// 700 bytes over 2 seconds in 2 packets.
	fa.ProcessPacket(packetInfo("172.16.0.1", "172.16.0.2", 51000, 80, 300, base))
	fa.ProcessPacket(packetInfo("172.16.0.1", "172.16.0.2", 51000, 80, 400, base.Add(2*time.Second)))

	records := fa.FlushInactive(0)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]

	if rec.ID == "" {
		t.Error("Record has no ID")
	}
	if rec.Label != model.LabelPending {
		t.Errorf("New record must be PENDING, got %s", rec.Label)
	}
	if rec.Processed {
		t.Error("New record must not be marked processed")
	}
	if rec.OriginFile != "capture.pcap" {
		t.Errorf("Expected origin capture.pcap, got %s", rec.OriginFile)
	}
	if rec.Duration != 2 {
		t.Errorf("Expected duration 2s, got %g", rec.Duration)
	}
	if rec.FlowBytesPerSec != 350 {
		t.Errorf("Expected 350 bytes/s, got %g", rec.FlowBytesPerSec)
	}
	if rec.FlowPacketsPerSec != 1 {
		t.Errorf("Expected 1 packet/s, got %g", rec.FlowPacketsPerSec)
	}
	if rec.PacketSize != 350 {
		t.Errorf("Expected mean packet size 350, got %d", rec.PacketSize)
	}
}

func TestFlowAggregator_SinglePacketFlow(t *testing.T) {
	fa := NewFlowAggregator(1, 10, time.Second, time.Second, "")
	fa.ProcessPacket(packetInfo("10.1.1.1", "10.1.1.2", 40000, 53, 64, time.Now()))

	records := fa.FlushInactive(0)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]

	// Zero duration must not produce Inf or NaN rates.
	if rec.Duration != 0 {
		t.Errorf("Expected zero duration, got %g", rec.Duration)
	}
	if rec.FlowBytesPerSec != 0 || rec.FlowPacketsPerSec != 0 {
		t.Errorf("Zero-duration flow must have zero rates, got %g/%g", rec.FlowBytesPerSec, rec.FlowPacketsPerSec)
	}
	if rec.PacketSize != 64 {
		t.Errorf("Expected packet size 64, got %d", rec.PacketSize)
	}
}

func TestFlowAggregator_FlushRespectsTimeout(t *testing.T) {
	fa := NewFlowAggregator(1, 10, time.Second, time.Second, "")
	fa.ProcessPacket(packetInfo("10.1.1.1", "10.1.1.2", 40000, 80, 64, time.Now()))

	if records := fa.FlushInactive(time.Hour); len(records) != 0 {
		t.Errorf("Active flow flushed too early: %d records", len(records))
	}
	if fa.FlowCount() != 1 {
		t.Error("Active flow evicted by a no-op flush")
	}
}

func TestFlowAggregator_Pipeline(t *testing.T) {
	fa := NewFlowAggregator(2, 100, 50*time.Millisecond, time.Second, "")
	fa.Start()

	base := time.Now()
	for i := 0; i < 10; i++ {
		fa.InputChannel <- packetInfo("192.168.0.1", "192.168.0.2", 45000, 22, 128, base)
		fa.InputChannel <- packetInfo("192.168.0.3", "192.168.0.4", 45001, 80, 128, base)
	}

	done := make(chan struct{})
	var total int
	go func() {
		defer close(done)
		for records := range fa.OutputChannel {
			total += len(records)
		}
	}()

	fa.Stop()
	<-done

	if total != 2 {
		t.Errorf("Expected 2 flow records from the pipeline, got %d", total)
	}
}

func TestClassifyProtocol(t *testing.T) {
	cases := []struct {
		proto    uint8
		srcPort  uint16
		dstPort  uint16
		expected model.Protocol
	}{
		{1, 0, 0, model.ProtocolICMP},
		{6, 51000, 80, model.ProtocolHTTP},
		{6, 51000, 443, model.ProtocolHTTPS},
		{6, 22, 51000, model.ProtocolSSH},
		{6, 51000, 21, model.ProtocolFTP},
		{17, 51000, 53, model.ProtocolDNS},
		{6, 51000, 25, model.ProtocolSMTP},
		{6, 51000, 8443, model.ProtocolTCP},
		{17, 51000, 9999, model.ProtocolUDP},
		{47, 0, 0, model.ProtocolOther},
	}

	for _, tc := range cases {
		if got := classifyProtocol(tc.proto, tc.srcPort, tc.dstPort); got != tc.expected {
			t.Errorf("classifyProtocol(%d, %d, %d) = %s, expected %s",
				tc.proto, tc.srcPort, tc.dstPort, got, tc.expected)
		}
	}
}
