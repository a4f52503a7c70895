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
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// backend is the far end of an in-memory reverse call stream
type backend struct {
	toBackend    chan *Envelope
	toClient     chan *Envelope
	sendClosed   chan struct{}
	closeOnce    sync.Once
	completeOnce sync.Once
}

func newBackend() *backend {
	return &backend{
		toBackend:  make(chan *Envelope, 64),
		toClient:   make(chan *Envelope, 64),
		sendClosed: make(chan struct{}),
	}
}

func (b *backend) dial(ctx context.Context) (Stream, error) {
	return &pipeStream{backend: b, ctx: ctx}, nil
}

func (b *backend) push(envelope *Envelope) {
	b.toClient <- envelope
}

func (b *backend) accept() {
	b.push(&Envelope{Kind: KindConnectResponse, Payload: []byte("accepted")})
}

func (b *backend) request(callID, payload string) {
	b.push(&Envelope{Kind: KindRequest, CallID: callID, Payload: []byte(payload)})
}

func (b *backend) complete() {
	b.completeOnce.Do(func() { close(b.toClient) })
}

// next returns the next envelope sent by the client, skipping pongs when skipPongs is set
func (b *backend) next(t *testing.T, skipPongs bool) *Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case envelope := <-b.toBackend:
			if skipPongs && envelope.Kind == KindPong {
				continue
			}
			return envelope
		case <-timeout:
			t.Fatal("timed out waiting for the client")
			return nil
		}
	}
}

func (b *backend) nextResponse(t *testing.T) *Envelope {
	t.Helper()
	return b.next(t, true)
}

func (b *backend) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case envelope := <-b.toBackend:
		t.Fatalf("unexpected %s message from the client", envelope.Kind)
	case <-time.After(d):
	}
}

// expectOnlyArguments asserts the client sent the connect arguments and nothing else
func (b *backend) expectOnlyArguments(t *testing.T) {
	t.Helper()
	assert.Equal(t, KindArguments, b.next(t, false).Kind)
	b.expectSilence(t, 50*time.Millisecond)
}

type pipeStream struct {
	backend *backend
	ctx     context.Context
}

func (s *pipeStream) Send(envelope *Envelope) error {
	select {
	case <-s.backend.sendClosed:
		return errors.New("send on closed stream")
	default:
	}

	select {
	case s.backend.toBackend <- envelope:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *pipeStream) Recv() (*Envelope, error) {
	select {
	case envelope, ok := <-s.backend.toClient:
		if !ok {
			return nil, io.EOF
		}
		return envelope, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *pipeStream) CloseSend() error {
	s.backend.closeOnce.Do(func() { close(s.backend.sendClosed) })
	return nil
}

type testClient = Client[[]byte, []byte, []byte, []byte]

func newTestProtocol() Protocol[[]byte, []byte, []byte, []byte] {
	return NewProtocol(
		BytesConverter(),
		BytesConverter(),
		BytesConverter(),
		BytesConverter(),
		WithConnectFailure(func(response []byte) error {
			if string(response) == "rejected" {
				return errors.New("unknown tenant")
			}
			return nil
		}),
	)
}

func echoHandler(_ context.Context, request []byte) ([]byte, error) {
	switch string(request) {
	case "fail":
		return nil, errors.New("out of stock")
	case "panic":
		panic("kaboom")
	}
	return append([]byte("echo:"), request...), nil
}
