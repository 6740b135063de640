package pcap

import (
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/model"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

// packetSource is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads packets from a pcap or pcapng file.
type Reader struct {
	file   *os.File
	source packetSource
	log    logrus.FieldLogger
}

// NewReader opens filePath, detecting classic pcap or pcapng from the file header.
func NewReader(filePath string, log logrus.FieldLogger) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture '%s': %w: %w", filePath, model.ErrSourceUnavailable, err)
	}

	var source packetSource
	if r, err := pcapgo.NewReader(file); err == nil {
		source = r
	} else {
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			file.Close()
			return nil, fmt.Errorf("failed to rewind capture: %w", serr)
		}
		ng, ngErr := pcapgo.NewNgReader(file, pcapgo.DefaultNgReaderOptions)
		if ngErr != nil {
			file.Close()
			return nil, fmt.Errorf("'%s' is neither pcap (%v) nor pcapng (%v)", filePath, err, ngErr)
		}
		source = ng
	}

	return &Reader{file: file, source: source, log: log.WithField("capture", filePath)}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Each decodes every packet and calls fn for those carrying an IP layer.
// Undecodable packets are logged at debug level and skipped.
func (r *Reader) Each(fn func(*model.PacketInfo)) (int, error) {
	linkType := r.source.LinkType()
	count := 0
	for {
		data, ci, err := r.source.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read packet: %w: %w", model.ErrSourceUnavailable, err)
		}

		info, err := protocol.ParsePacket(data, linkType, ci.Timestamp)
		if err != nil {
			r.log.Debugf("Error parsing packet: %v", err)
			continue
		}
		count++
		fn(info)
	}
}

// ReadPackets reads all packets from the file and sends the parsed
// PacketInfo to the provided channel. It closes the channel when done.
func (r *Reader) ReadPackets(out chan<- *model.PacketInfo) error {
	defer close(out)
	_, err := r.Each(func(info *model.PacketInfo) {
		out <- info
	})
	return err
}
