package ingest

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"FlowSentry/internal/model"
)

const shardCount = 256

// flowState accumulates packets of one bidirectional 5-tuple flow. The
// orientation is set by the first packet seen.
type flowState struct {
	tuple      model.FiveTuple
	startTime  time.Time
	endTime    time.Time
	byteCount  uint64
	fwdPackets uint64
	bwdPackets uint64
}

type shard struct {
	flows map[string]*flowState
	mu    sync.RWMutex
}

// FlowAggregator turns a packet stream into completed traffic records. It
// runs a worker pool over an input channel and periodically flushes flows
// that have been inactive longer than the flow timeout.
type FlowAggregator struct {
	shards        []*shard
	InputChannel  chan *model.PacketInfo
	OutputChannel chan []model.TrafficRecord
	wg            sync.WaitGroup
	numWorkers    int
	flushInterval time.Duration
	flowTimeout   time.Duration
	originFile    string
}

// NewFlowAggregator creates an aggregator. originFile is recorded on every
// produced traffic record as its capture source.
func NewFlowAggregator(numWorkers, channelSize int, flushInterval, flowTimeout time.Duration, originFile string) *FlowAggregator {
	fa := &FlowAggregator{
		shards:        make([]*shard, shardCount),
		InputChannel:  make(chan *model.PacketInfo, channelSize),
		OutputChannel: make(chan []model.TrafficRecord, 100),
		numWorkers:    numWorkers,
		flushInterval: flushInterval,
		flowTimeout:   flowTimeout,
		originFile:    originFile,
	}
	for i := range fa.shards {
		fa.shards[i] = &shard{flows: make(map[string]*flowState)}
	}
	return fa
}

// Start launches the aggregator worker pool and the flushing ticker.
func (fa *FlowAggregator) Start() {
	fa.wg.Add(fa.numWorkers)
	for i := 0; i < fa.numWorkers; i++ {
		go fa.worker()
	}

	fa.wg.Add(1)
	go fa.flusher()
}

// Stop drains the input, flushes all remaining flows and closes the output.
func (fa *FlowAggregator) Stop() {
	close(fa.InputChannel)
	fa.wg.Wait()
	// Workers are done, no flow can change anymore.
	if records := fa.FlushInactive(0); len(records) > 0 {
		fa.OutputChannel <- records
	}
	close(fa.OutputChannel)
}

func (fa *FlowAggregator) worker() {
	defer fa.wg.Done()
	for packetInfo := range fa.InputChannel {
		fa.ProcessPacket(packetInfo)
	}
}

func (fa *FlowAggregator) flusher() {
	defer fa.wg.Done()
	ticker := time.NewTicker(fa.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if records := fa.FlushInactive(fa.flowTimeout); len(records) > 0 {
				fa.OutputChannel <- records
			}
		case info, ok := <-fa.InputChannel:
			if !ok {
				return
			}
			fa.ProcessPacket(info)
		}
	}
}

// ProcessPacket folds one packet into its flow, creating the flow if needed.
// Both directions of a 5-tuple map to the same flow.
func (fa *FlowAggregator) ProcessPacket(info *model.PacketInfo) {
	key := canonicalKey(info.FiveTuple)
	s := fa.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[key]
	if !ok {
		flow = &flowState{
			tuple:     info.FiveTuple,
			startTime: info.Timestamp,
		}
		s.flows[key] = flow
	}
	// Direction relative to the flow's recorded orientation; the creating
	// packet defines forward.
	forward := info.FiveTuple.SrcIP.Equal(flow.tuple.SrcIP) && info.FiveTuple.SrcPort == flow.tuple.SrcPort

	flow.endTime = info.Timestamp
	flow.byteCount += uint64(info.Length)
	if forward {
		flow.fwdPackets++
	} else {
		flow.bwdPackets++
	}
}

// FlushInactive removes flows idle longer than timeout and converts them to
// PENDING traffic records. A zero timeout flushes everything.
func (fa *FlowAggregator) FlushInactive(timeout time.Duration) []model.TrafficRecord {
	now := time.Now()
	var records []model.TrafficRecord

	for _, s := range fa.shards {
		s.mu.Lock()
		for key, flow := range s.flows {
			if timeout > 0 && now.Sub(flow.endTime) < timeout {
				continue
			}
			records = append(records, fa.toRecord(flow))
			delete(s.flows, key)
		}
		s.mu.Unlock()
	}
	return records
}

// FlowCount returns the number of active flows, for tests and metrics.
func (fa *FlowAggregator) FlowCount() int {
	count := 0
	for _, s := range fa.shards {
		s.mu.RLock()
		count += len(s.flows)
		s.mu.RUnlock()
	}
	return count
}

func (fa *FlowAggregator) toRecord(flow *flowState) model.TrafficRecord {
	packets := flow.fwdPackets + flow.bwdPackets
	duration := flow.endTime.Sub(flow.startTime).Seconds()

	var bytesPerSec, packetsPerSec float64
	if duration > 0 {
		bytesPerSec = float64(flow.byteCount) / duration
		packetsPerSec = float64(packets) / duration
	}
	var meanPacketSize int64
	if packets > 0 {
		meanPacketSize = int64(flow.byteCount / packets)
	}

	return model.TrafficRecord{
		ID:                uuid.NewString(),
		SrcIP:             flow.tuple.SrcIP.String(),
		DstIP:             flow.tuple.DstIP.String(),
		SrcPort:           int(flow.tuple.SrcPort),
		DstPort:           int(flow.tuple.DstPort),
		Protocol:          classifyProtocol(flow.tuple.Protocol, flow.tuple.SrcPort, flow.tuple.DstPort),
		PacketSize:        meanPacketSize,
		Duration:          duration,
		FlowBytesPerSec:   bytesPerSec,
		FlowPacketsPerSec: packetsPerSec,
		FwdPackets:        int64(flow.fwdPackets),
		BwdPackets:        int64(flow.bwdPackets),
		Label:             model.LabelPending,
		CapturedAt:        flow.startTime,
		OriginFile:        fa.originFile,
	}
}

func (fa *FlowAggregator) getShard(key string) *shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return fa.shards[hasher.Sum32()%shardCount]
}

// canonicalKey builds a direction-insensitive key so both halves of a
// conversation land in the same flow.
func canonicalKey(ft model.FiveTuple) string {
	a := fmt.Sprintf("%s:%d", ft.SrcIP, ft.SrcPort)
	b := fmt.Sprintf("%s:%d", ft.DstIP, ft.DstPort)
	if a <= b {
		return fmt.Sprintf("%s-%s-%d", a, b, ft.Protocol)
	}
	return fmt.Sprintf("%s-%s-%d", b, a, ft.Protocol)
}
