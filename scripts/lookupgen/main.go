package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

// protocols mirrors the names a generated table draws from.
var protocols = []string{
	"icmp", "igmp", "tcp", "udp", "gre", "esp", "ah", "pim", "sctp", "dccp",
	"eigrp", "ospfigp", "l2tp", "mpls-in-ip", "rsvp", "vrrp", "wesp", "etherip",
}

type pair struct {
	port     int
	protocol string
}

func main() {
	outputFile := flag.String("o", "unique_lookup_table.txt", "Output lookup table path")
	count := flag.Int("c", 10000, "Number of unique (port, protocol) entries to generate")
	header := flag.Bool("header", false, "Write a 'dstport,protocol,tag' header line")
	seed := flag.Int64("seed", 0, "Random seed; 0 uses the current time")
	flag.Parse()

	if *count > 65536*len(protocols) {
		log.Fatalf("Cannot generate %d unique entries from %d ports x %d protocols", *count, 65536, len(protocols))
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if *header {
		fmt.Fprintln(w, "dstport,protocol,tag")
	}

	log.Printf("Generating %d entries into %s...", *count, *outputFile)
	seen := make(map[pair]struct{}, *count)
	for len(seen) < *count {
		p := pair{port: rng.Intn(65536), protocol: protocols[rng.Intn(len(protocols))]}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		fmt.Fprintf(w, "%d,%s,sv_%04d\n", p.port, p.protocol, rng.Intn(10000)+1)
	}

	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write lookup table: %v", err)
	}
	log.Printf("Successfully generated %d entries into %s.", *count, *outputFile)
}
