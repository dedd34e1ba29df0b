package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dm26/jka-dissect/dissect"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: maplist <demo.dm_26>")
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	demo, err := dissect.Open(os.Args[1], true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open demo file: %s (%v)\n", os.Args[1], err)
		os.Exit(1)
	}
	defer demo.Close()

	fmt.Printf("%d map segment(s)\n", demo.MapsCount())
	for j := 0; j < demo.MapsCount(); j++ {
		kind := "map"
		if demo.IsMapRestart(j) {
			kind = "restart"
		}
		fmt.Printf("%2d  %-20s %-8s start=%-8d end=%-8d firstSnapshot=%d\n",
			j, demo.MapName(j), kind, demo.MapStartTime(j), demo.MapEndTime(j), demo.MapID(j))
	}
}
