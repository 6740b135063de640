package flowlog

import (
	"FlowTagger/internal/model"
	"fmt"
	"sync"
	"time"
)

// Flow is the aggregate of every packet sharing a 5-tuple.
type Flow struct {
	Key         string
	FiveTuple   model.FiveTuple
	StartTime   time.Time
	EndTime     time.Time
	ByteCount   uint64
	PacketCount uint64
}

// Line renders the flow as a version 2 flow-log record in the default layout:
// version account-id interface-id srcaddr dstaddr srcport dstport protocol
// packets bytes start end action log-status.
func (f *Flow) Line() string {
	return fmt.Sprintf("2 - - %s %s %d %d %d %d %d %d %d ACCEPT OK",
		f.FiveTuple.SrcIP, f.FiveTuple.DstIP,
		f.FiveTuple.SrcPort, f.FiveTuple.DstPort, f.FiveTuple.Protocol,
		f.PacketCount, f.ByteCount,
		f.StartTime.Unix(), f.EndTime.Unix())
}

// shard is a part of a sharded map, containing its own map and a mutex.
type shard struct {
	flows map[string]*Flow
	mu    sync.RWMutex
}
