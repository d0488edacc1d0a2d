// Command capture-decode prints the control packets found in a pcap
// capture of the cane link. Build with -tags=pcap.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/packet"
)

var (
	pcapFile  = flag.String("pcap", "", "Capture file (required)")
	udpPort   = flag.Int("port", 7420, "UDP port of the control link")
	protocol  = flag.String("protocol", "continuous", "Wire protocol: continuous or discrete")
	threshold = flag.Float64("threshold", 0.2, "Discrete protocol threshold")
	quiet     = flag.Bool("q", false, "Print the summary only")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	codec, err := packet.ParseProtocol(*protocol, *threshold)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		first, prev time.Time
		maxGap      time.Duration
		modes       = map[packet.Mode]int{}
	)
	stats, err := link.ReadCapture(ctx, *pcapFile, *udpPort, codec, func(at time.Time, p packet.Packet) {
		if first.IsZero() {
			first = at
		} else if gap := at.Sub(prev); gap > maxGap {
			maxGap = gap
		}
		prev = at
		modes[p.Mode]++
		if !*quiet {
			fmt.Printf("%10.3f  %-8s speed=%+.3f aux=%.2f\n", at.Sub(first).Seconds(), p.Mode, p.Speed, p.Auxiliary)
		}
	})
	if err != nil {
		log.Fatalf("capture replay failed: %v", err)
	}

	fmt.Printf("frames %d, decoded %d, rejected %d, longest gap %v\n", stats.Frames, stats.Decoded, stats.Rejected, maxGap)
	for m := packet.ModeIdle; m <= packet.ModeClear; m++ {
		if n := modes[m]; n > 0 {
			fmt.Printf("  %-8s %d\n", m, n)
		}
	}
}
