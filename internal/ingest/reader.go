package ingest

import (
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"FlowSentry/internal/model"
)

// Reader reads packets from a pcap file.
type Reader struct {
	handle *pcap.Handle
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadPackets reads all packets from the pcap file and sends the parsed
// PacketInfo to the provided channel.
func (r *Reader) ReadPackets(out chan<- *model.PacketInfo) {
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		info, err := ParsePacket(packet)
		if err != nil {
			// Unsupported packet types are expected; skip and continue.
			continue
		}
		out <- info
	}
	log.Println("Finished reading pcap file.")
}
