package main

import (
	"context"
	"sync"

	"someipbridge/internal/bridge"
	grpcsrv "someipbridge/internal/grpc"
	"someipbridge/internal/trace"
)

// bridgeControl is the administrative control-plane surface shared by the
// HTTP and gRPC admin endpoints: it persists dispatch trace activity to
// disk, fans live events out to gRPC StreamDispatchTrace subscribers, and
// forwards availability override requests to the handler.
type bridgeControl struct {
	writer  *trace.Writer
	handler *bridge.Handler

	mu      sync.Mutex
	seq     uint64
	subs    map[int]chan grpcsrv.TraceEvent
	nextSub int
}

func newBridgeControl(writer *trace.Writer, handler *bridge.Handler) *bridgeControl {
	return &bridgeControl{writer: writer, handler: handler, subs: make(map[int]chan grpcsrv.TraceEvent)}
}

// RecordDispatchEvent implements bridge.Recorder.
func (c *bridgeControl) RecordDispatchEvent(kind, detail string) {
	_ = c.writer.AppendDispatchEvent(kind, detail)

	c.mu.Lock()
	c.seq++
	event := grpcsrv.TraceEvent{Seq: c.seq, Kind: kind, Detail: detail}
	subs := make([]chan grpcsrv.TraceEvent, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// RecordTableSnapshot implements bridge.Recorder.
func (c *bridgeControl) RecordTableSnapshot(sizes bridge.Sizes) {
	_ = c.writer.AppendTableSnapshot(trace.TableSizes{
		OfferedResources:              uint32(sizes.OfferedResources),
		SubscriptionsForRemoteServices: uint32(sizes.SubscriptionsForRemoteServices),
		UUIDToSomeipRequest:            uint32(sizes.UUIDToSomeipRequest),
		SomeipReqIDToUTransportRequest: uint32(sizes.SomeipReqIDToUTransportRequest),
	})
}

// SubscribeDispatchTrace implements grpcsrv.BridgeControl.
func (c *bridgeControl) SubscribeDispatchTrace(ctx context.Context, handlerID string) (<-chan grpcsrv.TraceEvent, func(), error) {
	ch := make(chan grpcsrv.TraceEvent, 64)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if existing, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(existing)
		}
		c.mu.Unlock()
	}
	return ch, cancel, nil
}

// SubmitAvailabilityOverride implements grpcsrv.BridgeControl.
func (c *bridgeControl) SubmitAvailabilityOverride(ctx context.Context, override *grpcsrv.AvailabilityOverride) grpcsrv.OverrideResult {
	if override == nil {
		return grpcsrv.OverrideResult{Accepted: false}
	}
	c.handler.SetAvailabilityOverride(override.Available)
	return grpcsrv.OverrideResult{Accepted: true}
}

// DumpTrace implements httpapi.TraceDumper.
func (c *bridgeControl) DumpTrace(ctx context.Context) (string, error) {
	if err := c.writer.Flush(); err != nil {
		return "", err
	}
	return c.writer.Directory(), nil
}

// SetAvailability implements httpapi.AvailabilityOverrider.
func (c *bridgeControl) SetAvailability(serviceID, instanceID uint16, available bool) error {
	c.handler.SetAvailabilityOverride(available)
	return nil
}
