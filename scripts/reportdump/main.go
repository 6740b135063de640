package main

import (
	"FlowTagger/internal/writer"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
)

func main() {
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/reportdump [-json] <report.dat>")
		os.Exit(1)
	}

	report, err := writer.ReadGob(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		return
	}

	fmt.Printf("Run %s from %s at %s\n", report.RunID, report.Source, report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Processed %d, skipped %d, untagged %d\n\n",
		report.Stats.Processed, report.Stats.Skipped, report.Stats.Untagged)

	fmt.Println("Tag Counts:")
	fmt.Println("Tag,Count")
	tags := make([]string, 0, len(report.TagCounts))
	for tag := range report.TagCounts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Printf("%s,%d\n", tag, report.TagCounts[tag])
	}

	fmt.Println("\nPort/Protocol Combination Counts:")
	fmt.Println("Port,Protocol,Count")
	ports := make([]int, 0, len(report.PortProtocolCounts))
	for port := range report.PortProtocolCounts {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	for _, port := range ports {
		protos := make([]string, 0, len(report.PortProtocolCounts[port]))
		for proto := range report.PortProtocolCounts[port] {
			protos = append(protos, proto)
		}
		sort.Strings(protos)
		for _, proto := range protos {
			fmt.Printf("%d,%s,%d\n", port, proto, report.PortProtocolCounts[port][proto])
		}
	}
}
