// Package flowlog turns captured packets into flow-log records the classifier can read.
package flowlog

import (
	"FlowTagger/internal/model"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const defaultShardCount = 64

// Builder aggregates packets into flows keyed by 5-tuple using a sharded map.
// ProcessPacket is safe for concurrent use.
type Builder struct {
	shards     []*shard
	shardCount uint32
}

// NewBuilder creates a builder with numShards shards.
func NewBuilder(numShards uint32) *Builder {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	b := &Builder{
		shards:     make([]*shard, numShards),
		shardCount: numShards,
	}
	for i := range b.shards {
		b.shards[i] = &shard{flows: make(map[string]*Flow)}
	}
	return b
}

// ProcessPacket creates or updates the flow for the packet's 5-tuple.
func (b *Builder) ProcessPacket(info *model.PacketInfo) {
	key := flowKey(info.FiveTuple)
	s := b.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if flow, ok := s.flows[key]; ok {
		if info.Timestamp.Before(flow.StartTime) {
			flow.StartTime = info.Timestamp
		}
		if info.Timestamp.After(flow.EndTime) {
			flow.EndTime = info.Timestamp
		}
		flow.PacketCount++
		flow.ByteCount += uint64(info.Length)
		return
	}
	s.flows[key] = &Flow{
		Key:         key,
		FiveTuple:   info.FiveTuple,
		StartTime:   info.Timestamp,
		EndTime:     info.Timestamp,
		PacketCount: 1,
		ByteCount:   uint64(info.Length),
	}
}

// Snapshot returns copies of all flows ordered by start time, then key.
func (b *Builder) Snapshot() []Flow {
	var flows []Flow
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(b.shards))

	for _, s := range b.shards {
		go func(s *shard) {
			defer wg.Done()
			s.mu.RLock()
			copied := make([]Flow, 0, len(s.flows))
			for _, f := range s.flows {
				copied = append(copied, *f)
			}
			s.mu.RUnlock()

			mu.Lock()
			flows = append(flows, copied...)
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	sort.Slice(flows, func(i, j int) bool {
		if !flows[i].StartTime.Equal(flows[j].StartTime) {
			return flows[i].StartTime.Before(flows[j].StartTime)
		}
		return flows[i].Key < flows[j].Key
	})
	return flows
}

// Lines renders the current flows as flow-log records.
func (b *Builder) Lines() []string {
	flows := b.Snapshot()
	lines := make([]string, len(flows))
	for i := range flows {
		lines[i] = flows[i].Line()
	}
	return lines
}

// Len returns the number of flows.
func (b *Builder) Len() int {
	n := 0
	for _, s := range b.shards {
		s.mu.RLock()
		n += len(s.flows)
		s.mu.RUnlock()
	}
	return n
}

// Reset clears all flows.
func (b *Builder) Reset() {
	for _, s := range b.shards {
		s.mu.Lock()
		s.flows = make(map[string]*Flow)
		s.mu.Unlock()
	}
}

// getShard returns the appropriate shard for a given key.
func (b *Builder) getShard(key string) *shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return b.shards[hasher.Sum32()%b.shardCount]
}

// flowKey joins the 5-tuple into a unique string key.
func flowKey(ft model.FiveTuple) string {
	return strings.Join([]string{
		ft.SrcIP.String(),
		ft.DstIP.String(),
		strconv.Itoa(int(ft.SrcPort)),
		strconv.Itoa(int(ft.DstPort)),
		strconv.Itoa(int(ft.Protocol)),
	}, "-")
}
