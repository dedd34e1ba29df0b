package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dm26/jka-dissect/dissect"
)

// Reports how server time advances across a demo: per-snapshot deltas
// grouped into a histogram, plus the per-map segment spans. Useful for
// spotting dropped frames and timescale oddities in a recording.

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: timedist <demo.dm_26>")
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	demo, err := dissect.Open(os.Args[1], true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open demo file: %s (%v)\n", os.Args[1], err)
		os.Exit(1)
	}
	defer demo.Close()

	var times []int32
	for i := 0; i < demo.MessageCount(); i++ {
		msg := demo.Message(i)
		if msg == nil {
			continue
		}
		for _, instr := range msg.Instructions() {
			if s, ok := instr.(*dissect.SnapshotInstr); ok {
				times = append(times, s.Snap.ServerTime)
			}
		}
	}

	fmt.Printf("Snapshots: %d\n", len(times))
	if len(times) < 2 {
		return
	}

	deltas := make(map[int32]int)
	backwards := 0
	for i := 1; i < len(times); i++ {
		dt := times[i] - times[i-1]
		if dt < 0 {
			backwards++
			continue
		}
		deltas[dt]++
	}

	keys := make([]int32, 0, len(deltas))
	for dt := range deltas {
		keys = append(keys, dt)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	fmt.Println("=== Snapshot interval distribution (ms) ===")
	for _, dt := range keys {
		fmt.Printf("%6dms  %d\n", dt, deltas[dt])
	}
	if backwards > 0 {
		fmt.Printf("Backward jumps (map changes/restarts): %d\n", backwards)
	}

	fmt.Println("=== Map segments ===")
	for j := 0; j < demo.MapsCount(); j++ {
		fmt.Printf("%-20s %d..%d (%.1fs)\n", demo.MapName(j),
			demo.MapStartTime(j), demo.MapEndTime(j),
			float64(demo.MapEndTime(j)-demo.MapStartTime(j))/1000)
	}
}
