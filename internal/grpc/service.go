package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const submitProcessTimeout = 40 * time.Millisecond

// ServiceName is the fully qualified gRPC service name TraceControl
// registers under. No .proto source for this domain exists in the
// retrieved pack, so the service descriptor below is hand-written against
// the real, pre-compiled wrapperspb well-known types rather than a
// fabricated generated package.
const ServiceName = "someipbridge.TraceControl"

// TraceControlServer is implemented by Service; declared separately so the
// hand-written ServiceDesc below can dispatch without referencing a
// concrete type.
type TraceControlServer interface {
	StreamDispatchTrace(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
	SubmitAvailabilityOverride(grpc.ClientStreamingServer[wrapperspb.BytesValue, wrapperspb.StringValue]) error
}

// ServiceDesc describes the TraceControl service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TraceControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamDispatchTrace",
			Handler:       streamDispatchTraceHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "SubmitAvailabilityOverride",
			Handler:       submitAvailabilityOverrideHandler,
			ClientStreams: true,
		},
	},
}

func streamDispatchTraceHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(TraceControlServer).StreamDispatchTrace(req, stream)
}

func submitAvailabilityOverrideHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TraceControlServer).SubmitAvailabilityOverride(stream)
}

// Option customises the behaviour of the gRPC TraceControl service.
type Option func(*Service)

// WithCompressor overrides the default payload compressor.
func WithCompressor(compressor Compressor) Option {
	return func(s *Service) {
		if compressor != nil {
			s.compressor = compressor
		}
	}
}

// Service implements TraceControlServer, relaying dispatch trace events and
// accepting availability override submissions against the handler registry.
type Service struct {
	control    BridgeControl
	compressor Compressor
}

// NewService wires the gRPC service to the bridge control surface and optional settings.
func NewService(control BridgeControl, opts ...Option) *Service {
	service := &Service{control: control, compressor: NewGZIPCompressor()}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// StreamDispatchTrace relays a handler's live dispatch trace events as
// gzip-compressed JSON payloads. The request StringValue carries the
// handler identifier to subscribe to.
func (s *Service) StreamDispatchTrace(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	if s == nil || s.control == nil {
		return status.Error(codes.FailedPrecondition, "streaming unavailable")
	}
	ctx := stream.Context()
	events, cancel, err := s.control.SubscribeDispatchTrace(ctx, req.GetValue())
	if err != nil {
		return status.Errorf(codes.Internal, "subscribe dispatch trace: %v", err)
	}
	defer cancel()

	compressor := s.compressor
	if compressor == nil {
		compressor = NewGZIPCompressor()
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case event, ok := <-events:
			if !ok {
				return nil
			}
			raw, err := json.Marshal(event)
			if err != nil {
				return status.Errorf(codes.Internal, "marshal trace event: %v", err)
			}
			compressed, err := compressor.Compress(raw)
			if err != nil {
				return status.Errorf(codes.Internal, "compress trace event: %v", err)
			}
			if err := stream.Send(wrapperspb.Bytes(compressed)); err != nil {
				return err
			}
		}
	}
}

// SubmitAvailabilityOverride ingests a stream of gzip-compressed JSON
// AvailabilityOverride payloads and returns a summary ack once the client
// half-closes.
func (s *Service) SubmitAvailabilityOverride(stream grpc.ClientStreamingServer[wrapperspb.BytesValue, wrapperspb.StringValue]) error {
	if s == nil || s.control == nil {
		return status.Error(codes.FailedPrecondition, "streaming unavailable")
	}
	compressor := s.compressor
	if compressor == nil {
		compressor = NewGZIPCompressor()
	}
	ctx := stream.Context()
	var accepted, rejected int

	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			summary, marshalErr := json.Marshal(struct {
				Accepted int `json:"accepted"`
				Rejected int `json:"rejected"`
			}{accepted, rejected})
			if marshalErr != nil {
				return status.Errorf(codes.Internal, "marshal summary: %v", marshalErr)
			}
			return stream.SendAndClose(wrapperspb.String(string(summary)))
		}
		if err != nil {
			return err
		}
		if frame == nil {
			continue
		}
		payload, err := compressor.Decompress(frame.GetValue())
		if err != nil {
			rejected++
			continue
		}
		var override AvailabilityOverride
		if err := json.Unmarshal(payload, &override); err != nil {
			rejected++
			continue
		}
		submitCtx, cancel := context.WithTimeout(ctx, submitProcessTimeout)
		result := s.control.SubmitAvailabilityOverride(submitCtx, &override)
		cancel()
		if errors.Is(submitCtx.Err(), context.DeadlineExceeded) {
			rejected++
			continue
		}
		if result.Err != nil || !result.Accepted {
			rejected++
			continue
		}
		accepted++
	}
}

var _ TraceControlServer = (*Service)(nil)
