package traceplayer

import (
	"testing"
	"time"

	"someipbridge/internal/trace"
)

func TestBundleRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	base := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	writer, manifest, err := trace.NewWriter(tmp, "vehicle-handler", clock)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writer.SetHeaderMetadata("vehicle-handler", "client")

	if err := writer.AppendDispatchEvent("Outbound", "publish"); err != nil {
		t.Fatalf("append dispatch event: %v", err)
	}
	if err := writer.AppendTableSnapshot(trace.TableSizes{OfferedResources: 1, UUIDToSomeipRequest: 2}); err != nil {
		t.Fatalf("append snapshot 1: %v", err)
	}
	now = now.Add(250 * time.Millisecond)
	if err := writer.AppendTableSnapshot(trace.TableSizes{OfferedResources: 3, UUIDToSomeipRequest: 4}); err != nil {
		t.Fatalf("append snapshot 2: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	loadedManifest, header, events, snapshots, err := Bundle(writer.Directory())
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if loadedManifest.Version != manifest.Version {
		t.Fatalf("manifest mismatch: %v vs %v", loadedManifest.Version, manifest.Version)
	}
	if header.HandlerID != "vehicle-handler" || header.Role != "client" {
		t.Fatalf("unexpected header: %+v", header)
	}
	if len(events) != 1 || events[0].Kind != "Outbound" || events[0].Detail != "publish" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[1].Sizes.OfferedResources != 3 || snapshots[1].Sizes.UUIDToSomeipRequest != 4 {
		t.Fatalf("unexpected second snapshot: %+v", snapshots[1])
	}
}
