// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package reversecall

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	// ServiceName is the gRPC service carrying reverse call streams
	ServiceName = "eskit.reversecall.Backend"
	// ConnectMethod is the full method name of the bidirectional stream
	ConnectMethod = "/" + ServiceName + "/Connect"
)

func init() {
	encoding.RegisterCodec(envelopeCodec{})
}

// Backend is implemented by the side that accepts reverse call connections and pushes requests.
type Backend interface {
	Connect(stream *ServerStream) error
}

var connectStreamDesc = grpc.StreamDesc{
	StreamName:    "Connect",
	Handler:       connectHandler,
	ServerStreams: true,
	ClientStreams: true,
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Backend)(nil),
	Streams:     []grpc.StreamDesc{connectStreamDesc},
	Metadata:    "reversecall",
}

// RegisterBackend registers a Backend on a gRPC server
func RegisterBackend(registrar grpc.ServiceRegistrar, backend Backend) {
	registrar.RegisterService(&serviceDesc, backend)
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(Backend).Connect(&ServerStream{stream: stream})
}

// ServerStream is the backend side of a reverse call stream
type ServerStream struct {
	stream grpc.ServerStream
}

// Context returns the stream context
func (s *ServerStream) Context() context.Context {
	return s.stream.Context()
}

// Send pushes an envelope to the client
func (s *ServerStream) Send(envelope *Envelope) error {
	return s.stream.SendMsg(envelope)
}

// Recv waits for the next envelope sent by the client
func (s *ServerStream) Recv() (*Envelope, error) {
	envelope := new(Envelope)
	if err := s.stream.RecvMsg(envelope); err != nil {
		return nil, err
	}
	return envelope, nil
}

type clientStream struct {
	stream grpc.ClientStream
}

var _ Stream = (*clientStream)(nil)

func (s *clientStream) Send(envelope *Envelope) error {
	return s.stream.SendMsg(envelope)
}

func (s *clientStream) Recv() (*Envelope, error) {
	envelope := new(Envelope)
	if err := s.stream.RecvMsg(envelope); err != nil {
		return nil, err
	}
	return envelope, nil
}

func (s *clientStream) CloseSend() error {
	return s.stream.CloseSend()
}

// DialStream returns a Dialer opening reverse call streams on a gRPC connection
func DialStream(conn grpc.ClientConnInterface, opts ...grpc.CallOption) Dialer {
	return func(ctx context.Context) (Stream, error) {
		callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
		stream, err := conn.NewStream(ctx, &connectStreamDesc, ConnectMethod, callOptions...)
		if err != nil {
			return nil, err
		}
		return &clientStream{stream: stream}, nil
	}
}

// Dial creates a traced gRPC client connection to a reverse call backend.
// The connection is lazy: no I/O happens until the first stream is opened.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOptions := append([]grpc.DialOption{grpc.WithStatsHandler(otelgrpc.NewClientHandler())}, opts...)
	return grpc.NewClient(target, dialOptions...)
}
