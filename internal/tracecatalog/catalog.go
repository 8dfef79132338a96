// Package tracecatalog walks a directory tree of dispatch trace bundles and
// reports the headers found, for the bridgetrace CLI's list subcommand.
package tracecatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"someipbridge/internal/trace"
)

// Entry captures a trace bundle header alongside its resolved manifest path.
type Entry struct {
	HeaderPath   string       `json:"header_path"`
	ManifestPath string       `json:"manifest_path"`
	Header       trace.Header `json:"header"`
}

// List walks the directory tree and returns parsed trace bundle headers.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "header.json" && !strings.HasSuffix(name, ".header.json") {
			return nil
		}
		header, err := trace.ReadHeader(path)
		if err != nil {
			return err
		}
		manifestPath := header.FilePointer
		if !filepath.IsAbs(manifestPath) {
			manifestPath = filepath.Join(filepath.Dir(path), manifestPath)
		}
		entries = append(entries, Entry{HeaderPath: path, ManifestPath: manifestPath, Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.HandlerID == entries[j].Header.HandlerID {
			return entries[i].ManifestPath < entries[j].ManifestPath
		}
		return entries[i].Header.HandlerID < entries[j].Header.HandlerID
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
