package tracecatalog

import (
	"os"
	"path/filepath"
	"testing"

	"someipbridge/internal/trace"
)

func TestListCollectsHeaders(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "alpha")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	header := trace.Header{
		SchemaVersion: trace.HeaderSchemaVersion,
		HandlerID:     "vehicle-handler",
		Role:          "client",
		FilePointer:   "manifest.json",
	}
	headerPath := filepath.Join(dataDir, "header.json")
	if err := trace.WriteHeader(headerPath, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Header.HandlerID != "vehicle-handler" {
		t.Fatalf("unexpected handler id: %q", entry.Header.HandlerID)
	}
	if entry.ManifestPath != filepath.Join(dataDir, "manifest.json") {
		t.Fatalf("unexpected manifest path: %q", entry.ManifestPath)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}
