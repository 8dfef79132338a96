package grpc

import "context"

// TraceEvent mirrors one line of a handler's dispatch trace: the kind and
// detail strings trace.Writer persists, replayed live to gRPC subscribers.
type TraceEvent struct {
	Seq    uint64
	Kind   string
	Detail string
}

// TraceSource exposes subscription semantics for live dispatch trace fan-out.
type TraceSource interface {
	SubscribeDispatchTrace(ctx context.Context, handlerID string) (<-chan TraceEvent, func(), error)
}

// AvailabilityOverride carries an administrative request to force a
// handler's availability latch, bypassing the onAvailability callback.
type AvailabilityOverride struct {
	ServiceID  uint16
	InstanceID uint16
	Available  bool
}

// OverrideResult summarises how an override request was handled.
type OverrideResult struct {
	Accepted bool
	Err      error
}

// OverrideSink ingests availability override submissions into the bridge.
type OverrideSink interface {
	SubmitAvailabilityOverride(ctx context.Context, override *AvailabilityOverride) OverrideResult
}

// BridgeControl aggregates the dependencies required by the gRPC service.
type BridgeControl interface {
	TraceSource
	OverrideSink
}
