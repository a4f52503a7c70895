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
	"fmt"
	"io"
	"sync"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/internal/timer"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/telemetry"
)

// Stream is one bidirectional channel of envelopes.
// Send is never called concurrently by the client.
type Stream interface {
	Send(envelope *Envelope) error
	Recv() (*Envelope, error)
	// CloseSend tells the backend no more envelopes will be sent.
	CloseSend() error
}

// Dialer opens a new Stream. The stream must terminate when ctx is cancelled.
type Dialer func(ctx context.Context) (Stream, error)

// Handler handles one request pushed by the backend.
// The context is cancelled when the connection closes.
type Handler[Q, R any] func(ctx context.Context, request Q) (R, error)

const (
	stateIdle int32 = iota
	stateConnecting
	stateConnected
	stateHandling
	stateClosed
)

// Client drives one reverse call connection: it performs the handshake, answers pings
// and dispatches every request pushed by the backend to a Handler, sending back exactly
// one response per request.
//
// A Client is single use. Create a new one to reconnect.
type Client[A, C, Q, R any] struct {
	dial     Dialer
	protocol Protocol[A, C, Q, R]
	config   *clientConfig
	logger   log.Logger
	metrics  *telemetry.ReverseCallMetrics

	state atomic.Int32
	// established is set once the handshake completed
	established atomic.Bool

	mu     sync.Mutex
	stream Stream
	cancel context.CancelFunc

	sendLock  sync.Mutex
	inFlight  goset.Set[string]
	closeOnce sync.Once
}

// NewClient creates a Client that opens its stream with dial and maps domain types with protocol.
func NewClient[A, C, Q, R any](dial Dialer, protocol Protocol[A, C, Q, R], opts ...Option) *Client[A, C, Q, R] {
	config := newClientConfig(opts...)
	client := &Client[A, C, Q, R]{
		dial:     dial,
		protocol: protocol,
		config:   config,
		logger:   config.logger,
		inFlight: goset.NewSet[string](),
	}

	if config.telemetry != nil {
		metrics, err := telemetry.NewReverseCallMetrics(config.telemetry.Meter)
		if err != nil {
			client.logger.Warnf("reverse call metrics disabled: %v", err)
		} else {
			client.metrics = metrics
		}
	}
	return client
}

// Connect opens the stream, sends the connect arguments and waits for the connect response.
// The first envelope received must be the connect response, otherwise the connection is
// closed with ErrDidNotReceiveConnectResponse.
//
// ctx bounds the handshake only. Use Handle's context to bound the connection.
func (c *Client[A, C, Q, R]) Connect(ctx context.Context, arguments A) (C, error) {
	var zero C
	if !c.state.CompareAndSwap(stateIdle, stateConnecting) {
		return zero, gerrors.ErrClientAlreadyStarted
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	stream, err := c.dial(streamCtx)
	if err != nil {
		c.Close()
		return zero, fmt.Errorf("failed to open reverse call stream: %w", err)
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	envelope, err := c.protocol.Arguments(arguments)
	if err != nil {
		c.Close()
		return zero, fmt.Errorf("failed to build connect arguments: %w", err)
	}
	envelope.Kind = KindArguments
	envelope.PingInterval = c.config.pingInterval

	if err := c.send(envelope); err != nil {
		c.Close()
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("failed to send connect arguments: %w", err)
	}

	first, err := stream.Recv()
	if err != nil {
		c.Close()
		switch {
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case errors.Is(err, io.EOF):
			c.logger.Error("reverse call stream completed before the connect response was received")
			return zero, fmt.Errorf("%w: %w", gerrors.ErrDidNotReceiveConnectResponse, gerrors.ErrStreamCompleted)
		default:
			return zero, fmt.Errorf("failed to receive connect response: %w", err)
		}
	}

	if first.Kind != KindConnectResponse {
		c.Close()
		c.logger.Errorf("did not receive connect response, first message was %s", first.Kind)
		return zero, fmt.Errorf("got %s: %w", first.Kind, gerrors.ErrDidNotReceiveConnectResponse)
	}

	response, err := c.protocol.ConnectResponse(first)
	if err != nil {
		c.Close()
		return zero, fmt.Errorf("failed to read connect response: %w", err)
	}

	if err := c.protocol.ConnectFailure(response); err != nil {
		c.Close()
		c.logger.Warnf("reverse call connection rejected: %v", err)
		return zero, gerrors.NewErrConnectRejected(err)
	}

	if !c.state.CompareAndSwap(stateConnecting, stateConnected) {
		return zero, gerrors.ErrClientNotConnected
	}
	c.established.Store(true)

	c.metrics.RecordConnected(ctx)
	c.logger.Debugf("reverse call connected, ping interval %s", c.config.pingInterval)
	return response, nil
}

// Handle processes the envelopes pushed by the backend until the connection terminates,
// and returns the terminal condition:
//   - nil when the backend completed the stream or Close was called,
//   - the context error when ctx is cancelled,
//   - ErrPingTimedOut when no ping arrived within the ping timeout,
//   - the transport error otherwise.
//
// Handler failures and panics never terminate the connection: they are sent back as failed responses.
func (c *Client[A, C, Q, R]) Handle(ctx context.Context, handler Handler[Q, R]) error {
	if !c.state.CompareAndSwap(stateConnected, stateHandling) {
		switch state := c.state.Load(); {
		case state == stateHandling:
			return gerrors.ErrClientAlreadyStarted
		case state == stateClosed && c.established.Load():
			// closed before Handle started
			return nil
		default:
			return gerrors.ErrClientNotConnected
		}
	}

	stream := c.currentStream()
	inbound := make(chan *Envelope)
	received := make(chan error, 1)
	done := make(chan struct{})
	receiving := make(chan struct{})
	go c.receive(stream, inbound, received, done, receiving)

	handlerCtx, cancelHandlers := context.WithCancel(ctx)
	work := make(chan *Envelope)
	limiter := c.config.limiter()
	group := new(errgroup.Group)
	for range c.config.maxConcurrentRequests {
		group.Go(func() error {
			for envelope := range work {
				if limiter != nil {
					// a cancelled wait still answers the request
					_ = limiter.Wait(handlerCtx)
				}
				c.handleRequest(handlerCtx, handler, envelope)
			}
			return nil
		})
	}

	deadline := timer.New(c.config.pingTimeout())
	deadline.Start()

	err := c.loop(ctx, inbound, received, work, deadline)

	deadline.Stop()
	cancelHandlers()
	close(work)
	close(done)
	_ = group.Wait()
	c.Close()
	<-receiving

	return err
}

// Close terminates the connection. It is safe to call more than once and concurrently with Handle.
func (c *Client[A, C, Q, R]) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(stateClosed)

		c.mu.Lock()
		stream, cancel := c.stream, c.cancel
		c.mu.Unlock()

		if stream != nil {
			c.sendLock.Lock()
			if err := stream.CloseSend(); err != nil {
				c.logger.Debugf("failed to close the sending side of the stream: %v", err)
			}
			c.sendLock.Unlock()
		}

		if cancel != nil {
			cancel()
		}
	})
}

// Connected reports whether the handshake completed and the connection is not closed
func (c *Client[A, C, Q, R]) Connected() bool {
	state := c.state.Load()
	return state == stateConnected || state == stateHandling
}

func (c *Client[A, C, Q, R]) loop(ctx context.Context, inbound <-chan *Envelope, received <-chan error, work chan<- *Envelope, deadline *timer.Timer) error {
	var pending []*Envelope
	for {
		var next chan<- *Envelope
		var head *Envelope
		if len(pending) > 0 {
			next = work
			head = pending[0]
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-received:
			switch {
			case c.state.Load() == stateClosed:
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				c.logger.Debug("reverse call stream completed by the backend")
				return nil
			default:
				return fmt.Errorf("reverse call stream failed: %w", err)
			}

		case <-deadline.C():
			c.metrics.RecordPingTimeout(ctx)
			c.logger.Warnf("no ping received within %s, closing the connection", deadline.Duration())
			return gerrors.ErrPingTimedOut

		case next <- head:
			pending[0] = nil
			pending = pending[1:]

		case envelope := <-inbound:
			switch envelope.Kind {
			case KindPing:
				deadline.Touch()
				if err := c.send(NewPong()); err != nil {
					return fmt.Errorf("failed to send pong: %w", err)
				}
			case KindRequest:
				if envelope.CallID == "" {
					c.logger.Warn("received a request without call id, ignoring it")
					continue
				}
				if !c.inFlight.Add(envelope.CallID) {
					c.logger.Warnf("request %s is already being handled, ignoring the duplicate", envelope.CallID)
					continue
				}
				pending = append(pending, envelope)
			default:
				c.logger.Warnf("received unexpected %s message, ignoring it", envelope.Kind)
			}
		}
	}
}

func (c *Client[A, C, Q, R]) receive(stream Stream, inbound chan<- *Envelope, received chan<- error, done <-chan struct{}, receiving chan<- struct{}) {
	defer close(receiving)
	for {
		envelope, err := stream.Recv()
		if err != nil {
			received <- err
			return
		}

		select {
		case inbound <- envelope:
		case <-done:
			return
		}
	}
}

func (c *Client[A, C, Q, R]) handleRequest(ctx context.Context, handler Handler[Q, R], envelope *Envelope) {
	callID := envelope.CallID
	defer c.inFlight.Remove(callID)

	response := c.respond(ctx, handler, envelope)
	response.Kind = KindResponse
	response.CallID = callID

	c.metrics.RecordRequest(ctx, response.Failed())
	if err := c.send(response); err != nil {
		c.logger.Warnf("failed to send the response to request %s: %v", callID, err)
	}
}

func (c *Client[A, C, Q, R]) respond(ctx context.Context, handler Handler[Q, R], envelope *Envelope) *Envelope {
	callID := envelope.CallID
	request, err := c.protocol.Request(envelope)
	if err != nil {
		c.logger.Warnf("failed to read request %s: %v", callID, err)
		return c.protocol.FailedResponse(callID, err)
	}

	result, err := invoke(ctx, handler, request)
	if err != nil {
		c.logger.Warnf("request %s failed: %v", callID, err)
		return c.protocol.FailedResponse(callID, err)
	}

	response, err := c.protocol.Response(callID, result)
	if err != nil {
		c.logger.Warnf("failed to write the response to request %s: %v", callID, err)
		return c.protocol.FailedResponse(callID, err)
	}
	return response
}

func (c *Client[A, C, Q, R]) send(envelope *Envelope) error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()
	stream := c.currentStream()
	if stream == nil {
		return gerrors.ErrClientNotConnected
	}
	return stream.Send(envelope)
}

func (c *Client[A, C, Q, R]) currentStream() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

func invoke[Q, R any](ctx context.Context, handler Handler[Q, R], request Q) (response R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gerrors.RecoveredPanic(r)
		}
	}()
	return handler(ctx, request)
}
