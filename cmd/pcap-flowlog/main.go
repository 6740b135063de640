package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/flowlog"
	"FlowTagger/internal/logging"
	"FlowTagger/pkg/pcap"
	"bufio"
	"flag"
	"fmt"
	"os"
)

func main() {
	out := flag.String("o", "log_files.txt", "Output flow-log file.")
	shards := flag.Uint("shards", 64, "Number of flow table shards.")
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		fmt.Println("Usage: pcap-flowlog [-o log_files.txt] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	log, err := logging.New(config.Default().Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 2. Build flows from the capture
	reader, err := pcap.NewReader(pcapFilePath, log)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()
	log.Infof("Reading packets from '%s'...", pcapFilePath)

	builder := flowlog.NewBuilder(uint32(*shards))
	packets, err := reader.Each(builder.ProcessPacket)
	if err != nil {
		log.Fatalf("Failed to read packets: %v", err)
	}
	log.Infof("Finished reading %d packets, %d flows.", packets, builder.Len())

	// 3. Write one flow-log line per flow
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create '%s': %v", *out, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range builder.Lines() {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write '%s': %v", *out, err)
	}
	log.Infof("Wrote %d flow-log lines to '%s'.", builder.Len(), *out)
}
