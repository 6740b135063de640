package protocol

import (
	"FlowTagger/internal/model"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParsePacket uses gopacket to decode a raw frame and extract its 5-tuple.
// Packets without an IP layer are rejected. Protocols without ports (ICMP, GRE, ...)
// keep zero ports, matching how flow logs report them.
func ParsePacket(data []byte, first gopacket.Decoder, ts time.Time) (*model.PacketInfo, error) {
	packet := gopacket.NewPacket(data, first, gopacket.NoCopy)

	info := &model.PacketInfo{
		Timestamp: ts,
		Length:    len(data),
	}

	var fiveTuple model.FiveTuple
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		fiveTuple.SrcIP = ip.SrcIP
		fiveTuple.DstIP = ip.DstIP
		fiveTuple.Protocol = uint8(ip.Protocol)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		fiveTuple.SrcIP = ip.SrcIP
		fiveTuple.DstIP = ip.DstIP
		fiveTuple.Protocol = uint8(ip.NextHeader)
	} else {
		return nil, fmt.Errorf("not an IP packet")
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		fiveTuple.SrcPort = uint16(tcp.SrcPort)
		fiveTuple.DstPort = uint16(tcp.DstPort)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		fiveTuple.SrcPort = uint16(udp.SrcPort)
		fiveTuple.DstPort = uint16(udp.DstPort)
	case packet.Layer(layers.LayerTypeSCTP) != nil:
		sctp := packet.Layer(layers.LayerTypeSCTP).(*layers.SCTP)
		fiveTuple.SrcPort = uint16(sctp.SrcPort)
		fiveTuple.DstPort = uint16(sctp.DstPort)
	}

	info.FiveTuple = fiveTuple
	return info, nil
}
