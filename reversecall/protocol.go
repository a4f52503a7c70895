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
	"fmt"

	gerrors "github.com/tochemey/eskit/errors"
)

// Protocol maps the domain types of one reverse call service to and from envelopes.
// Implementations must be pure: no I/O and no shared state.
//
// A is the connect arguments type, C the connect response type,
// Q the request type and R the response type.
type Protocol[A, C, Q, R any] interface {
	// Arguments builds the first envelope sent by the client.
	Arguments(arguments A) (*Envelope, error)
	// ConnectResponse extracts the handshake answer from the first envelope received.
	ConnectResponse(envelope *Envelope) (C, error)
	// ConnectFailure returns a non-nil error when the backend rejected the connection.
	ConnectFailure(response C) error
	// Request extracts a request from an envelope pushed by the backend.
	Request(envelope *Envelope) (Q, error)
	// Response builds the envelope answering the request with the given call id.
	Response(callID string, response R) (*Envelope, error)
	// FailedResponse builds the envelope answering the request with the given call id with a failure.
	FailedResponse(callID string, err error) *Envelope
}

// ProtocolOption configures the protocol built by NewProtocol
type ProtocolOption[C any] func(*protocolConfig[C])

type protocolConfig[C any] struct {
	connectFailure func(C) error
}

// WithConnectFailure sets the function that inspects a connect response and
// returns the rejection reason, if any.
func WithConnectFailure[C any](fn func(C) error) ProtocolOption[C] {
	return func(config *protocolConfig[C]) {
		config.connectFailure = fn
	}
}

type protocol[A, C, Q, R any] struct {
	arguments       Converter[A]
	connectResponse Converter[C]
	request         Converter[Q]
	response        Converter[R]
	config          *protocolConfig[C]
}

var _ Protocol[[]byte, []byte, []byte, []byte] = (*protocol[[]byte, []byte, []byte, []byte])(nil)

// NewProtocol builds a Protocol from one Converter per domain type.
func NewProtocol[A, C, Q, R any](
	arguments Converter[A],
	connectResponse Converter[C],
	request Converter[Q],
	response Converter[R],
	opts ...ProtocolOption[C]) Protocol[A, C, Q, R] {
	config := &protocolConfig[C]{
		connectFailure: func(C) error { return nil },
	}
	for _, opt := range opts {
		opt(config)
	}

	return &protocol[A, C, Q, R]{
		arguments:       arguments,
		connectResponse: connectResponse,
		request:         request,
		response:        response,
		config:          config,
	}
}

func (p *protocol[A, C, Q, R]) Arguments(arguments A) (*Envelope, error) {
	payload, err := p.arguments.Marshal(arguments)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindArguments, Payload: payload}, nil
}

func (p *protocol[A, C, Q, R]) ConnectResponse(envelope *Envelope) (C, error) {
	if envelope.Kind != KindConnectResponse {
		var zero C
		return zero, fmt.Errorf("got %s: %w", envelope.Kind, gerrors.ErrDidNotReceiveConnectResponse)
	}
	return p.connectResponse.Unmarshal(envelope.Payload)
}

func (p *protocol[A, C, Q, R]) ConnectFailure(response C) error {
	return p.config.connectFailure(response)
}

func (p *protocol[A, C, Q, R]) Request(envelope *Envelope) (Q, error) {
	if envelope.Kind != KindRequest {
		var zero Q
		return zero, gerrors.NewErrInvalidEnvelope(fmt.Errorf("expected Request, got %s", envelope.Kind))
	}
	return p.request.Unmarshal(envelope.Payload)
}

func (p *protocol[A, C, Q, R]) Response(callID string, response R) (*Envelope, error) {
	payload, err := p.response.Marshal(response)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindResponse, CallID: callID, Payload: payload}, nil
}

func (p *protocol[A, C, Q, R]) FailedResponse(callID string, err error) *Envelope {
	reason := "unknown failure"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}
	return &Envelope{Kind: KindResponse, CallID: callID, Failure: reason}
}
