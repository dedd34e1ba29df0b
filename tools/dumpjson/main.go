package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dm26/jka-dissect/dissect"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: dumpjson [-v] <input.dm_26> <output.json>")
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	input, output := flag.Arg(0), flag.Arg(1)
	demo, err := dissect.Open(input, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open demo file: %s (%v)\n", input, err)
		os.Exit(1)
	}
	defer demo.Close()

	root := struct {
		Filename      string                `json:"filename"`
		MessagesCount int                   `json:"messages_count"`
		Messages      []dissect.MessageJSON `json:"messages"`
	}{
		Filename:      input,
		MessagesCount: demo.MessageCount(),
		Messages:      demo.ExportJSON(),
	}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to serialize demo: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write JSON to %s (%v)\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("Exported demo JSON to %s\n", output)
}
