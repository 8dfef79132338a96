// Package trace persists a handler's dispatch activity to disk for
// post-hoc debugging: one compressed JSONL stream of dispatched QItem
// events, plus periodic compressed binary snapshots of correlation table
// sizes. It is adapted from the reference broker's gameplay replay bundle
// format, repointed at dispatch trace data instead of world frames.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeaderSchemaVersion tracks the schema version for trace bundle headers.
const HeaderSchemaVersion = 1

// Header represents the metadata persisted alongside a trace bundle.
type Header struct {
	SchemaVersion int    `json:"schema_version"`
	HandlerID     string `json:"handler_id"`
	Role          string `json:"role"`
	FilePointer   string `json:"file_pointer"`
}

// Validate ensures the header carries enough information for catalogue tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a trace header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
