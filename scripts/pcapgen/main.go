package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// wellKnownPorts gives generated captures destinations a lookup table is likely to tag.
var wellKnownPorts = []uint16{22, 23, 25, 53, 80, 110, 143, 443, 993, 3389}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	flowCount := flag.Int("flows", 100, "Number of distinct flows the packets are spread over")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	flows := make([]flowParams, *flowCount)
	for i := range flows {
		flows[i] = randomFlow(rng)
	}

	log.Printf("Generating %d packets over %d flows into %s...", *packetCount, *flowCount, *outputFile)

	start := time.Now()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	for i := 0; i < *packetCount; i++ {
		if (i+1)%100000 == 0 {
			log.Printf("Generated %d packets...", i+1)
		}

		fl := flows[rng.Intn(len(flows))]
		payload := make([]byte, rng.Intn(1400)+50)
		rng.Read(payload)

		buf := gopacket.NewSerializeBuffer()
		if err := gopacket.SerializeLayers(buf, opts, fl.packetLayers(rng, payload)...); err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}

		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}

	log.Printf("Successfully generated %d packets into %s.", *packetCount, *outputFile)
}

type flowParams struct {
	srcIP, dstIP     net.IP
	srcPort, dstPort uint16
	protocol         layers.IPProtocol
}

func randomFlow(rng *rand.Rand) flowParams {
	fl := flowParams{
		srcIP:   net.IP{10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254) + 1)},
		dstIP:   net.IP{byte(rng.Intn(223) + 1), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254) + 1)},
		srcPort: uint16(rng.Intn(65535-1024) + 1024),
		dstPort: wellKnownPorts[rng.Intn(len(wellKnownPorts))],
	}
	switch n := rng.Intn(10); {
	case n < 6:
		fl.protocol = layers.IPProtocolTCP
	case n < 9:
		fl.protocol = layers.IPProtocolUDP
	default:
		fl.protocol = layers.IPProtocolICMPv4
		fl.srcPort, fl.dstPort = 0, 0
	}
	return fl
}

func (fl flowParams) packetLayers(rng *rand.Rand, payload []byte) []gopacket.SerializableLayer {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    fl.srcIP,
		DstIP:    fl.dstIP,
		Version:  4,
		TTL:      64,
		Protocol: fl.protocol,
	}

	switch fl.protocol {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(fl.srcPort),
			DstPort: layers.TCPPort(fl.dstPort),
			Seq:     rng.Uint32(),
			ACK:     true,
			Ack:     rng.Uint32(),
			Window:  14600,
		}
		tcp.SetNetworkLayerForChecksum(ip)
		return []gopacket.SerializableLayer{eth, ip, tcp, gopacket.Payload(payload)}
	case layers.IPProtocolUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(fl.srcPort),
			DstPort: layers.UDPPort(fl.dstPort),
		}
		udp.SetNetworkLayerForChecksum(ip)
		return []gopacket.SerializableLayer{eth, ip, udp, gopacket.Payload(payload)}
	default:
		icmp := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       uint16(rng.Intn(65536)),
		}
		return []gopacket.SerializableLayer{eth, ip, icmp, gopacket.Payload(payload)}
	}
}
