package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dm26/jka-dissect/dissect"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dumpinfo [-v] <demo.dm_26>")
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	path := flag.Arg(0)
	demo, err := dissect.Open(path, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open demo file: %s (%v)\n", path, err)
		os.Exit(1)
	}
	defer demo.Close()

	fmt.Printf("Loaded: %s\n", path)
	fmt.Printf("Messages: %d\n", demo.MessageCount())
	fmt.Printf("Maps: %d\n", demo.MapsCount())

	for i := 0; i < demo.MessageCount(); i++ {
		msg := demo.Message(i)
		if msg == nil || !msg.IsLoaded() {
			continue
		}
		marker := ""
		if msg.IsInit() {
			marker = " [init]"
		}
		fmt.Printf("Message #%d (seq=%d, instr=%d)%s\n", i, msg.Seq, len(msg.Instructions()), marker)
		for _, instr := range msg.Instructions() {
			switch v := instr.(type) {
			case *dissect.ServerCommand:
				fmt.Printf("  [ServerCmd] seq=%d cmd=%q\n", v.Sequence, v.Command)
			case *dissect.SnapshotInstr:
				fmt.Printf("  [Snapshot] serverTime=%d delta=%d flags=%d entities=%d\n",
					v.Snap.ServerTime, v.Snap.DeltaNum, v.Snap.SnapFlags, len(v.Snap.Entities))
			case *dissect.GameState:
				fmt.Printf("  [Gamestate] client=%d configstrings=%d baselines=%d\n",
					v.ClientNum, len(v.ConfigStrings), len(v.Baselines))
			case *dissect.ConfigStringUpdate:
				fmt.Printf("  [ConfigString] %d=%q\n", v.Index, v.Value)
			case *dissect.SetGame:
				fmt.Printf("  [SetGame] %q\n", v.Name)
			case dissect.MapChange:
				fmt.Printf("  [MapChange]\n")
			}
		}
	}
}
