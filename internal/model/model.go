package model

import (
	"net"
	"time"
)

// UntaggedTag is the tag counted for records with no lookup-table entry.
// It is deliberately mixed-case while lookup-table tags are always lowercase.
const UntaggedTag = "Untagged"

// TagCounts maps a classification tag to the number of records that carried it.
type TagCounts map[string]uint64

// PortProtocolCounts maps a destination port to per-protocol record counts.
type PortProtocolCounts map[int]map[string]uint64

// Add increments the counter for a (port, protocol) pair, creating the inner map on first use.
func (c PortProtocolCounts) Add(port int, protocol string, n uint64) {
	byProto, ok := c[port]
	if !ok {
		byProto = make(map[string]uint64)
		c[port] = byProto
	}
	byProto[protocol] += n
}

// Pairs returns the number of distinct (port, protocol) pairs.
func (c PortProtocolCounts) Pairs() int {
	n := 0
	for _, byProto := range c {
		n += len(byProto)
	}
	return n
}

// Stats holds per-run line accounting.
type Stats struct {
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Untagged  uint64 `json:"untagged"`
}

// Report is the complete output of one classification run.
type Report struct {
	RunID              string             `json:"run_id"`
	GeneratedAt        time.Time          `json:"generated_at"`
	Source             string             `json:"source"`
	TagCounts          TagCounts          `json:"tag_counts"`
	PortProtocolCounts PortProtocolCounts `json:"port_protocol_counts"`
	Stats              Stats              `json:"stats"`
}

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// PacketInfo holds the metadata extracted from a single captured packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	Length    int
}
