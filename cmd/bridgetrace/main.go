// Command bridgetrace inspects dispatch trace bundles persisted by a
// running bridge handler: list headers under a directory tree, or dump one
// bundle's decoded events and table snapshots as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"someipbridge/internal/tracecatalog"
	"someipbridge/internal/traceplayer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "dump":
		runDump(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bridgetrace <list|dump> [flags]")
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	root := fs.String("dir", ".", "directory containing trace bundle headers")
	jsonFlag := fs.Bool("json", false, "emit JSON instead of human-readable output")
	fs.Parse(args)

	entries, err := tracecatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := tracecatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (schema %d, role %s)\n", entry.ManifestPath, entry.Header.SchemaVersion, entry.Header.Role)
		fmt.Printf("  handler: %s\n", entry.Header.HandlerID)
		fmt.Printf("  header:  %s\n", entry.HeaderPath)
	}
}

func runDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	path := fs.String("path", "", "path to a trace bundle directory or manifest.json")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	manifest, header, events, snapshots, err := traceplayer.Bundle(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	payload := struct {
		Manifest  interface{}             `json:"manifest"`
		Header    interface{}             `json:"header"`
		Events    []traceplayer.Event     `json:"events"`
		Snapshots []traceplayer.Snapshot  `json:"snapshots"`
	}{
		Manifest:  manifest,
		Header:    header,
		Events:    events,
		Snapshots: snapshots,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
}
