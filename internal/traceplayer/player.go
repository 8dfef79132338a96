// Package traceplayer decodes a dispatch trace bundle written by
// internal/trace.Writer back into its constituent events and table
// snapshots, for offline inspection by cmd/bridgetrace.
package traceplayer

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"someipbridge/internal/trace"
)

// Event is a single decoded dispatch trace line.
type Event struct {
	Seq        uint64
	CapturedAt time.Time
	Kind       string
	Detail     string
}

// Snapshot is a single decoded correlation table size snapshot.
type Snapshot struct {
	Seq        uint64
	CapturedAt time.Time
	Sizes      trace.TableSizes
}

// Bundle loads the manifest, header, events and snapshots for one trace
// directory so tooling can inspect a handler's dispatch history.
func Bundle(path string) (trace.Manifest, trace.Header, []Event, []Snapshot, error) {
	if path == "" {
		return trace.Manifest{}, trace.Header{}, nil, nil, fmt.Errorf("path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return trace.Manifest{}, trace.Header{}, nil, nil, err
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	manifestBytes, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return trace.Manifest{}, trace.Header{}, nil, nil, err
	}
	var manifest trace.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return trace.Manifest{}, trace.Header{}, nil, nil, err
	}
	if manifest.Version != 1 {
		return trace.Manifest{}, trace.Header{}, nil, nil, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}

	header, err := trace.ReadHeader(filepath.Join(dir, "header.json"))
	if err != nil {
		return trace.Manifest{}, trace.Header{}, nil, nil, err
	}

	events, err := loadEvents(filepath.Join(dir, manifest.EventsPath))
	if err != nil {
		return trace.Manifest{}, trace.Header{}, nil, nil, err
	}

	snapshots, err := loadSnapshots(filepath.Join(dir, manifest.SnapshotsPath))
	if err != nil {
		return trace.Manifest{}, trace.Header{}, nil, nil, err
	}

	return manifest, header, events, snapshots, nil
}

func loadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := snappy.NewReader(file)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var events []Event
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw struct {
			Seq        uint64 `json:"seq"`
			CapturedAt string `json:"captured_at"`
			Kind       string `json:"kind"`
			Detail     string `json:"detail"`
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, err
		}
		captured, err := time.Parse(time.RFC3339Nano, raw.CapturedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, Event{Seq: raw.Seq, CapturedAt: captured, Kind: raw.Kind, Detail: raw.Detail})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// snapshotRecordSize mirrors the fixed layout trace.Writer.flushLocked
// encodes per snapshot: seq(8) + captured_at_nanos(8) + four uint32 table
// sizes(16).
const snapshotRecordSize = 8 + 8 + 4*4

func loadSnapshots(path string) ([]Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var snapshots []Snapshot
	offset := 0
	for offset+snapshotRecordSize <= len(payload) {
		seq := binary.LittleEndian.Uint64(payload[offset : offset+8])
		offset += 8
		nanos := int64(binary.LittleEndian.Uint64(payload[offset : offset+8]))
		offset += 8
		sizes := trace.TableSizes{
			OfferedResources:              binary.LittleEndian.Uint32(payload[offset : offset+4]),
			SubscriptionsForRemoteServices: binary.LittleEndian.Uint32(payload[offset+4 : offset+8]),
			UUIDToSomeipRequest:            binary.LittleEndian.Uint32(payload[offset+8 : offset+12]),
			SomeipReqIDToUTransportRequest: binary.LittleEndian.Uint32(payload[offset+12 : offset+16]),
		}
		offset += 16
		snapshots = append(snapshots, Snapshot{Seq: seq, CapturedAt: time.Unix(0, nanos).UTC(), Sizes: sizes})
	}
	return snapshots, nil
}
