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

package grpctest

import (
	"context"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufferSize = 1024 * 1024

// Server is an in-process gRPC server listening on a bufconn listener
type Server struct {
	server   *grpc.Server
	listener *bufconn.Listener
	done     chan struct{}
	started  bool
}

// NewServer creates an in-process traced gRPC server. Services must be registered before Start.
func NewServer(options ...grpc.ServerOption) *Server {
	options = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, options...)
	return &Server{
		server:   grpc.NewServer(options...),
		listener: bufconn.Listen(bufferSize),
		done:     make(chan struct{}),
	}
}

// Registrar returns the registrar to register services with
func (s *Server) Registrar() grpc.ServiceRegistrar {
	return s.server
}

// Start serves in the background
func (s *Server) Start() {
	s.started = true
	go func() {
		defer close(s.done)
		_ = s.server.Serve(s.listener)
	}()
}

// Target is the address to dial together with DialOptions
const Target = "passthrough:///bufconn"

// DialOptions returns the options routing a client connection to the in-process server
func (s *Server) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.listener.DialContext(ctx)
		}),
		// in-process connections are always insecure
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// Cleanup stops the server and closes the listener
func (s *Server) Cleanup() {
	s.server.Stop()
	_ = s.listener.Close()
	if s.started {
		<-s.done
	}
}
