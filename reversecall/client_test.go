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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/telemetry"
)

func connected(t *testing.T, opts ...Option) (*testClient, *backend) {
	t.Helper()
	remote := newBackend()
	opts = append([]Option{WithLogger(log.DiscardLogger)}, opts...)
	client := NewClient(remote.dial, newTestProtocol(), opts...)
	remote.accept()
	response, err := client.Connect(context.Background(), []byte("arguments"))
	require.NoError(t, err)
	require.Equal(t, "accepted", string(response))
	require.True(t, client.Connected())

	arguments := remote.next(t, false)
	require.Equal(t, KindArguments, arguments.Kind)
	return client, remote
}

func handle(ctx context.Context, client *testClient, handler Handler[[]byte, []byte]) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- client.Handle(ctx, handler)
	}()
	return errc
}

func awaitResult(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Handle did not return")
		return nil
	}
}

func TestConnect(t *testing.T) {
	t.Run("With accepted handshake", func(t *testing.T) {
		remote := newBackend()
		client := NewClient(remote.dial, newTestProtocol(),
			WithLogger(log.DiscardLogger),
			WithPingInterval(2*time.Second),
			WithTelemetry(telemetry.New(telemetry.WithMeterProvider(noop.NewMeterProvider()))))

		remote.accept()
		response, err := client.Connect(context.Background(), []byte("tenant-a"))
		require.NoError(t, err)
		assert.Equal(t, "accepted", string(response))

		arguments := remote.next(t, false)
		assert.Equal(t, KindArguments, arguments.Kind)
		assert.Equal(t, 2*time.Second, arguments.PingInterval)
		assert.Equal(t, "tenant-a", string(arguments.Payload))

		client.Close()
		assert.False(t, client.Connected())
	})
	t.Run("With first message not a connect response", func(t *testing.T) {
		remote := newBackend()
		client := NewClient(remote.dial, newTestProtocol(), WithLogger(log.DiscardLogger))
		remote.request("call-1", "too early")

		_, err := client.Connect(context.Background(), []byte("arguments"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrDidNotReceiveConnectResponse)
		assert.False(t, client.Connected())
		remote.expectOnlyArguments(t)
	})
	t.Run("With stream completed before the connect response", func(t *testing.T) {
		remote := newBackend()
		client := NewClient(remote.dial, newTestProtocol(), WithLogger(log.DiscardLogger))
		remote.complete()

		_, err := client.Connect(context.Background(), []byte("arguments"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrDidNotReceiveConnectResponse)
		assert.ErrorIs(t, err, gerrors.ErrStreamCompleted)
		remote.expectOnlyArguments(t)
	})
	t.Run("With rejected handshake", func(t *testing.T) {
		remote := newBackend()
		client := NewClient(remote.dial, newTestProtocol(), WithLogger(log.DiscardLogger))
		remote.push(&Envelope{Kind: KindConnectResponse, Payload: []byte("rejected")})

		_, err := client.Connect(context.Background(), []byte("arguments"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrConnectRejected)
		assert.Contains(t, err.Error(), "unknown tenant")
	})
	t.Run("With dial failure", func(t *testing.T) {
		dial := func(context.Context) (Stream, error) { return nil, errors.New("connection refused") }
		client := NewClient(dial, newTestProtocol(), WithLogger(log.DiscardLogger))

		_, err := client.Connect(context.Background(), []byte("arguments"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
	t.Run("With cancelled handshake", func(t *testing.T) {
		remote := newBackend()
		client := NewClient(remote.dial, newTestProtocol(), WithLogger(log.DiscardLogger))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.Connect(ctx, []byte("arguments"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("With client used twice", func(t *testing.T) {
		client, _ := connected(t)
		defer client.Close()

		_, err := client.Connect(context.Background(), []byte("arguments"))
		assert.ErrorIs(t, err, gerrors.ErrClientAlreadyStarted)
	})
}

func TestHandle(t *testing.T) {
	t.Run("Before connect", func(t *testing.T) {
		remote := newBackend()
		client := NewClient(remote.dial, newTestProtocol(), WithLogger(log.DiscardLogger))
		err := client.Handle(context.Background(), echoHandler)
		assert.ErrorIs(t, err, gerrors.ErrClientNotConnected)
	})
	t.Run("With requests answered by call id", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		remote.request("call-1", "hello")
		response := remote.nextResponse(t)
		assert.Equal(t, KindResponse, response.Kind)
		assert.Equal(t, "call-1", response.CallID)
		assert.Equal(t, "echo:hello", string(response.Payload))
		assert.NoError(t, response.Err())

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With handler failure sent back as a failed response", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		remote.request("call-1", "fail")
		response := remote.nextResponse(t)
		assert.Equal(t, "call-1", response.CallID)
		assert.True(t, response.Failed())
		assert.Equal(t, "out of stock", response.Failure)

		var failure *gerrors.RequestFailure
		require.ErrorAs(t, response.Err(), &failure)
		assert.Equal(t, "call-1", failure.CallID())

		remote.request("call-2", "again")
		response = remote.nextResponse(t)
		assert.Equal(t, "call-2", response.CallID)
		assert.False(t, response.Failed())

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With handler panic sent back as a failed response", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		remote.request("call-1", "panic")
		response := remote.nextResponse(t)
		assert.Equal(t, "call-1", response.CallID)
		assert.True(t, response.Failed())
		assert.Contains(t, response.Failure, "kaboom")

		remote.request("call-2", "still alive")
		response = remote.nextResponse(t)
		assert.Equal(t, "echo:still alive", string(response.Payload))

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With throttled requests", func(t *testing.T) {
		client, remote := connected(t, WithRequestRate(20, 1))
		errc := handle(context.Background(), client, echoHandler)

		start := time.Now()
		for i := range 3 {
			remote.request(fmt.Sprintf("call-%d", i), "hello")
		}
		for range 3 {
			assert.False(t, remote.nextResponse(t).Failed())
		}
		// one token every 50ms after the initial burst
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With ping answered by pong", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		remote.push(NewPing())
		pong := remote.next(t, false)
		assert.Equal(t, KindPong, pong.Kind)

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With unexpected messages ignored", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		remote.push(&Envelope{Kind: KindConnectResponse})
		remote.push(&Envelope{Kind: KindRequest, Payload: []byte("no call id")})
		remote.expectSilence(t, 50*time.Millisecond)

		remote.request("call-1", "hello")
		assert.Equal(t, "call-1", remote.nextResponse(t).CallID)

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With missing pings", func(t *testing.T) {
		client, _ := connected(t, WithPingInterval(10*time.Millisecond), WithPingTimeoutFactor(2))
		errc := handle(context.Background(), client, echoHandler)

		assert.ErrorIs(t, awaitResult(t, errc), gerrors.ErrPingTimedOut)
		assert.False(t, client.Connected())
	})
	t.Run("With pings keeping the connection alive", func(t *testing.T) {
		client, remote := connected(t, WithPingInterval(20*time.Millisecond), WithPingTimeoutFactor(3))
		errc := handle(context.Background(), client, echoHandler)

		for range 10 {
			remote.push(NewPing())
			time.Sleep(10 * time.Millisecond)
		}

		select {
		case err := <-errc:
			t.Fatalf("connection closed while pinged: %v", err)
		default:
		}

		// pings stop: the deadline fires
		assert.ErrorIs(t, awaitResult(t, errc), gerrors.ErrPingTimedOut)
	})
	t.Run("With context cancelled", func(t *testing.T) {
		client, _ := connected(t)
		ctx, cancel := context.WithCancel(context.Background())
		errc := handle(ctx, client, echoHandler)

		cancel()
		assert.ErrorIs(t, awaitResult(t, errc), context.Canceled)
	})
	t.Run("With Close called", func(t *testing.T) {
		client, _ := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		client.Close()
		client.Close()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With Close called before Handle", func(t *testing.T) {
		client, _ := connected(t)
		client.Close()
		assert.NoError(t, client.Handle(context.Background(), echoHandler))
		assert.False(t, client.Connected())
	})
	t.Run("With Handle called twice", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		require.Eventually(t, func() bool {
			return client.state.Load() == stateHandling
		}, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, client.Handle(context.Background(), echoHandler), gerrors.ErrClientAlreadyStarted)

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With duplicate call id while in flight", func(t *testing.T) {
		client, remote := connected(t)
		release := make(chan struct{})
		var calls sync.WaitGroup
		calls.Add(1)
		handler := func(_ context.Context, request []byte) ([]byte, error) {
			calls.Done()
			<-release
			return request, nil
		}
		errc := handle(context.Background(), client, handler)

		remote.request("call-1", "first")
		calls.Wait()
		remote.request("call-1", "duplicate")
		remote.expectSilence(t, 50*time.Millisecond)

		close(release)
		response := remote.nextResponse(t)
		assert.Equal(t, "first", string(response.Payload))
		remote.expectSilence(t, 50*time.Millisecond)

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With requests handled in receipt order", func(t *testing.T) {
		client, remote := connected(t)
		errc := handle(context.Background(), client, echoHandler)

		for i := range 20 {
			remote.request(fmt.Sprintf("call-%d", i), fmt.Sprintf("%d", i))
		}
		for i := range 20 {
			response := remote.nextResponse(t)
			assert.Equal(t, fmt.Sprintf("call-%d", i), response.CallID)
		}

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With concurrent handlers", func(t *testing.T) {
		client, remote := connected(t, WithMaxConcurrentRequests(3))
		var started sync.WaitGroup
		started.Add(3)
		release := make(chan struct{})
		handler := func(_ context.Context, request []byte) ([]byte, error) {
			started.Done()
			<-release
			return request, nil
		}
		errc := handle(context.Background(), client, handler)

		remote.request("call-1", "a")
		remote.request("call-2", "b")
		remote.request("call-3", "c")
		// all three handlers run at the same time, otherwise this blocks
		started.Wait()
		close(release)

		seen := make(map[string]bool)
		for range 3 {
			seen[remote.nextResponse(t).CallID] = true
		}
		assert.Len(t, seen, 3)

		remote.complete()
		assert.NoError(t, awaitResult(t, errc))
	})
	t.Run("With handler context cancelled on close", func(t *testing.T) {
		client, remote := connected(t)
		started := make(chan struct{})
		cancelled := make(chan struct{})
		handler := func(ctx context.Context, request []byte) ([]byte, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		errc := handle(context.Background(), client, handler)

		remote.request("call-1", "slow")
		<-started
		remote.complete()
		assert.NoError(t, awaitResult(t, errc))

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("handler context was not cancelled")
		}
	})
}
