package ingest

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"FlowSentry/internal/model"
)

// ParsePacket decodes a captured packet and extracts the metadata the flow
// builder needs. Non-IPv4 packets are rejected.
func ParsePacket(packet gopacket.Packet) (*model.PacketInfo, error) {
	info := &model.PacketInfo{
		Timestamp: time.Now(),
		Length:    len(packet.Data()),
	}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		info.Timestamp = meta.Timestamp
	}

	var fiveTuple model.FiveTuple

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		fiveTuple.SrcIP = ip.SrcIP
		fiveTuple.DstIP = ip.DstIP
		fiveTuple.Protocol = uint8(ip.Protocol)
	} else {
		return nil, fmt.Errorf("not an IPv4 packet")
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		fiveTuple.SrcPort = uint16(tcp.SrcPort)
		fiveTuple.DstPort = uint16(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		fiveTuple.SrcPort = uint16(udp.SrcPort)
		fiveTuple.DstPort = uint16(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) == nil {
		return nil, fmt.Errorf("not a TCP, UDP or ICMP packet")
	}

	info.FiveTuple = fiveTuple
	return info, nil
}

// classifyProtocol maps an IP protocol number and port pair to the record
// store's protocol enum, refining TCP/UDP by well-known ports.
func classifyProtocol(proto uint8, srcPort, dstPort uint16) model.Protocol {
	switch proto {
	case 1:
		return model.ProtocolICMP
	case 6, 17:
	default:
		return model.ProtocolOther
	}

	for _, port := range []uint16{dstPort, srcPort} {
		switch port {
		case 80:
			return model.ProtocolHTTP
		case 443:
			return model.ProtocolHTTPS
		case 21:
			return model.ProtocolFTP
		case 22:
			return model.ProtocolSSH
		case 53:
			return model.ProtocolDNS
		case 25, 587:
			return model.ProtocolSMTP
		}
	}

	if proto == 17 {
		return model.ProtocolUDP
	}
	return model.ProtocolTCP
}
