package dispatch

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server exposes the three server-streaming subscriptions of spec.md §4.7's
// internal dispatcher surface over gRPC: one stream per frame kind, each
// backed by a Bus[T] subscription. The wire message is a well-known
// wrapperspb.BytesValue carrying the frame's protobuf-encoded bytes (see
// Marshal in wire.go), so the service needs no generated .pb.go of its own —
// only the hand-declared frame types in frame.go plus the standard
// well-known types already shipped with google.golang.org/protobuf.
type Server struct {
	journeyBus *Bus[*JourneyUpdateFrame]
	serverBus  *Bus[*ServerUpdateFrame]
	postBus    *Bus[*DispatchPostUpdateFrame]
}

// NewServer builds the streaming surface over the three fan-out buses.
func NewServer(journeyBus *Bus[*JourneyUpdateFrame], serverBus *Bus[*ServerUpdateFrame], postBus *Bus[*DispatchPostUpdateFrame]) *Server {
	return &Server{journeyBus: journeyBus, serverBus: serverBus, postBus: postBus}
}

// subscriberBufferSize is the per-client channel depth passed to Bus.Subscribe.
const subscriberBufferSize = 64

// Register attaches the service to a *grpc.Server using a hand-written
// grpc.ServiceDesc, the same binding protoc-gen-go-grpc would otherwise
// generate.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "sitevents.Events",
	HandlerType: (*Server)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "SubscribeJourneyUpdates", Handler: journeyUpdatesHandler, ServerStreams: true},
		{StreamName: "SubscribeServerUpdates", Handler: serverUpdatesHandler, ServerStreams: true},
		{StreamName: "SubscribeDispatchPostUpdates", Handler: dispatchPostUpdatesHandler, ServerStreams: true},
	},
	Metadata: "sitevents.proto",
}

func journeyUpdatesHandler(srv any, stream grpc.ServerStream) error {
	s := srv.(*Server)
	var req emptypb.Empty
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	ch, unsubscribe := s.journeyBus.Subscribe(subscriberBufferSize)
	defer unsubscribe()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := Marshal(frame)
			if err != nil {
				continue
			}
			if err := stream.SendMsg(&wrapperspb.BytesValue{Value: payload}); err != nil {
				return err
			}
		}
	}
}

func serverUpdatesHandler(srv any, stream grpc.ServerStream) error {
	s := srv.(*Server)
	var req emptypb.Empty
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	ch, unsubscribe := s.serverBus.Subscribe(subscriberBufferSize)
	defer unsubscribe()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := Marshal(frame)
			if err != nil {
				continue
			}
			if err := stream.SendMsg(&wrapperspb.BytesValue{Value: payload}); err != nil {
				return err
			}
		}
	}
}

func dispatchPostUpdatesHandler(srv any, stream grpc.ServerStream) error {
	s := srv.(*Server)
	var req emptypb.Empty
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	ch, unsubscribe := s.postBus.Subscribe(subscriberBufferSize)
	defer unsubscribe()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := Marshal(frame)
			if err != nil {
				continue
			}
			if err := stream.SendMsg(&wrapperspb.BytesValue{Value: payload}); err != nil {
				return err
			}
		}
	}
}
