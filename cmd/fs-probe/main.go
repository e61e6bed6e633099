package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"FlowSentry/internal/config"
	"FlowSentry/internal/ingest"
	"FlowSentry/internal/store"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = pcap.BlockForever
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	pcapFile := flag.String("pcap", "", "Read packets from a pcap file instead of a live interface.")
	iface := flag.String("iface", "", "Interface to capture packets from.")
	flag.Parse()

	if *pcapFile == "" && *iface == "" {
		log.Println("Error: either -pcap or -iface is required.")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := store.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to record store: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure record store schema: %v", err)
	}

	leaseTTL, _ := time.ParseDuration(cfg.Storage.LeaseTTL)
	repo := store.NewRepository(db, leaseTTL)

	origin := *iface
	if *pcapFile != "" {
		origin = filepath.Base(*pcapFile)
	}

	flushInterval, _ := time.ParseDuration(cfg.Ingest.FlushInterval)
	flowTimeout, _ := time.ParseDuration(cfg.Ingest.FlowTimeout)
	aggregator := ingest.NewFlowAggregator(cfg.Ingest.NumWorkers, cfg.Ingest.ChannelSize,
		flushInterval, flowTimeout, origin)
	aggregator.Start()

	// Persist flushed flows as PENDING records for the scorer to pick up.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		inserted := 0
		for records := range aggregator.OutputChannel {
			if err := repo.InsertRecords(ctx, records); err != nil {
				log.Printf("Failed to insert %d records: %v", len(records), err)
				continue
			}
			inserted += len(records)
			log.Printf("Inserted %d flow records (%d total)", len(records), inserted)
		}
	}()

	if *pcapFile != "" {
		runOffline(*pcapFile, aggregator)
	} else {
		runLive(*iface, aggregator)
	}

	aggregator.Stop()
	<-writerDone
	log.Println("Probe finished.")
}

// runOffline reads an entire pcap file into the aggregator.
func runOffline(path string, aggregator *ingest.FlowAggregator) {
	log.Printf("Reading pcap file %s...", path)
	reader, err := ingest.NewReader(path)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()

	reader.ReadPackets(aggregator.InputChannel)
}

// runLive captures from an interface until interrupted.
func runLive(interfaceName string, aggregator *ingest.FlowAggregator) {
	log.Printf("Starting live capture on interface: %s", interfaceName)

	handle, err := pcap.OpenLive(interfaceName, snapshotLen, promiscuous, timeout)
	if err != nil {
		log.Fatalf("Error opening device %s: %v", interfaceName, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
		captured := 0
		for packet := range packetSource.Packets() {
			info, err := ingest.ParsePacket(packet)
			if err != nil {
				continue // Skip non-IP packets
			}
			aggregator.InputChannel <- info
			captured++
			if captured%1000 == 0 {
				log.Printf("%d packets captured...", captured)
			}
		}
	}()

	<-sigChan
	log.Println("Shutdown signal received, flushing flows...")

	// Closing the handle ends the packet source; wait for the capture loop
	// before the caller closes the aggregator input.
	handle.Close()
	<-done
}
