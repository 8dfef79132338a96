package trace

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var writerNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// snapshotInterval is the minimum spacing between flushes of buffered
// correlation table snapshots, matching the reference writer's frame cadence.
const snapshotInterval = 200 * time.Millisecond

// TableSizes is the correlation table cardinality snapshot persisted
// alongside dispatch events; it mirrors bridge.Sizes without importing the
// bridge package, keeping trace a leaf dependency.
type TableSizes struct {
	OfferedResources               uint32
	SubscriptionsForRemoteServices  uint32
	UUIDToSomeipRequest             uint32
	SomeipReqIDToUTransportRequest  uint32
}

type snapshotBlob struct {
	Seq        uint64
	CapturedAt time.Time
	Sizes      TableSizes
}

// Manifest describes the trace bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version            int    `json:"version"`
	CreatedAt          string `json:"created_at"`
	SnapshotIntervalMs int    `json:"snapshot_interval_ms"`
	EventsPath         string `json:"events_path"`
	SnapshotsPath      string `json:"snapshots_path"`
}

// Writer streams a single handler's dispatch trace to disk: a snappy
// compressed JSONL event log of every dispatched QItem, plus zstd
// compressed binary snapshots of correlation table sizes, buffered and
// written in batches no more often than snapshotInterval.
type Writer struct {
	mu            sync.Mutex
	dir           string
	now           func() time.Time
	eventFile     *os.File
	eventStream   *snappy.Writer
	snapshotFile  *os.File
	snapshotSink  *zstd.Encoder
	pending       []snapshotBlob
	lastFlush     time.Time
	seq           uint64
	headerHandler string
	headerRole    string
}

// NewWriter prepares the trace directory and opens compressed sinks for one
// handler's dispatch trace, keyed by handler identity so concurrent
// handlers never collide on disk.
func NewWriter(root, handlerID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("trace root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := writerNameCleaner.ReplaceAllString(handlerID, "")
	if cleaned == "" {
		cleaned = "handler"
	}
	created := clock().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventsPath := filepath.Join(path, "events.jsonl.sz")
	snapshotsPath := filepath.Join(path, "snapshots.bin.zst")
	manifestPath := filepath.Join(path, "manifest.json")

	eventFile, err := os.Create(eventsPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	snapshotFile, err := os.Create(snapshotsPath)
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	snapshotSink, err := zstd.NewWriter(snapshotFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		snapshotFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:            1,
		CreatedAt:          created.Format(time.RFC3339Nano),
		SnapshotIntervalMs: int(snapshotInterval / time.Millisecond),
		EventsPath:         "events.jsonl.sz",
		SnapshotsPath:      "snapshots.bin.zst",
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		snapshotSink.Close()
		snapshotFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		snapshotSink.Close()
		snapshotFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:          path,
		now:          clock,
		eventFile:    eventFile,
		eventStream:  eventStream,
		snapshotFile: snapshotFile,
		snapshotSink: snapshotSink,
	}, manifest, nil
}

// Directory exposes the directory backing the trace bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// SetHeaderMetadata configures the header persisted when the writer closes.
func (w *Writer) SetHeaderMetadata(handlerID, role string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.headerHandler = handlerID
	w.headerRole = role
	w.mu.Unlock()
}

// AppendDispatchEvent records one dispatched QItem as a JSONL line. kind and
// detail are caller-supplied strings so trace stays decoupled from the
// bridge package's Kind type.
func (w *Writer) AppendDispatchEvent(kind, detail string) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++

	record := struct {
		Seq        uint64 `json:"seq"`
		CapturedAt string `json:"captured_at"`
		Kind       string `json:"kind"`
		Detail     string `json:"detail,omitempty"`
	}{Seq: w.seq, CapturedAt: captured.Format(time.RFC3339Nano), Kind: kind, Detail: detail}

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := w.eventStream.Write(line); err != nil {
		return err
	}
	if _, err := w.eventStream.Write([]byte("\n")); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendTableSnapshot buffers a correlation table size snapshot, persisting
// the batch once snapshotInterval has elapsed since the last flush.
func (w *Writer) AppendTableSnapshot(sizes TableSizes) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.pending = append(w.pending, snapshotBlob{Seq: w.seq, CapturedAt: captured, Sizes: sizes})
	if w.lastFlush.IsZero() {
		w.lastFlush = captured
		return nil
	}
	if captured.Sub(w.lastFlush) >= snapshotInterval {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.lastFlush = captured
	}
	return nil
}

// Flush forces pending snapshots to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.lastFlush = w.now().UTC()
	return nil
}

// Close synchronously flushes all buffers, persists the header, and
// releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	headerPath := filepath.Join(w.dir, "header.json")
	header := Header{SchemaVersion: HeaderSchemaVersion, HandlerID: w.headerHandler, Role: w.headerRole, FilePointer: "manifest.json"}
	if err := WriteHeader(headerPath, header); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.snapshotSink.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.snapshotFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	for _, snap := range w.pending {
		header := make([]byte, 8+8+4+4+4+4)
		binary.LittleEndian.PutUint64(header[0:8], snap.Seq)
		binary.LittleEndian.PutUint64(header[8:16], uint64(snap.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[16:20], snap.Sizes.OfferedResources)
		binary.LittleEndian.PutUint32(header[20:24], snap.Sizes.SubscriptionsForRemoteServices)
		binary.LittleEndian.PutUint32(header[24:28], snap.Sizes.UUIDToSomeipRequest)
		binary.LittleEndian.PutUint32(header[28:32], snap.Sizes.SomeipReqIDToUTransportRequest)
		if _, err := w.snapshotSink.Write(header); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}
