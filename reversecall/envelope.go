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
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	gerrors "github.com/tochemey/eskit/errors"
)

// Kind tags the content of an Envelope
type Kind int32

const (
	// KindUnknown is the zero value and is never valid on the wire
	KindUnknown Kind = iota
	// KindArguments carries the connect arguments, sent once by the client
	KindArguments
	// KindConnectResponse carries the handshake answer, sent once by the backend
	KindConnectResponse
	// KindRequest carries a request pushed by the backend
	KindRequest
	// KindResponse carries the client answer to one request
	KindResponse
	// KindPing is a liveness probe sent by the backend
	KindPing
	// KindPong answers a ping
	KindPong
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindArguments:
		return "Arguments"
	case KindConnectResponse:
		return "ConnectResponse"
	case KindRequest:
		return "Request"
	case KindResponse:
		return "Response"
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(k))
	}
}

// Envelope is the single message type exchanged over a reverse call stream.
// Payload bytes are opaque; the Protocol converts them to domain types.
type Envelope struct {
	Kind Kind
	// CallID correlates a Request with its Response.
	CallID string
	// PingInterval is set on Arguments and tells the backend how often to ping.
	PingInterval time.Duration
	Payload      []byte
	// Failure is set on a Response when the request could not be handled.
	Failure string
}

// NewPing creates a ping envelope
func NewPing() *Envelope {
	return &Envelope{Kind: KindPing}
}

// NewPong creates a pong envelope
func NewPong() *Envelope {
	return &Envelope{Kind: KindPong}
}

// Failed reports whether the envelope is a failed response
func (e *Envelope) Failed() bool {
	return e.Failure != ""
}

// Err returns the failure carried by a response envelope as a RequestFailure, or nil.
func (e *Envelope) Err() error {
	if !e.Failed() {
		return nil
	}
	return gerrors.NewRequestFailure(e.CallID, e.Failure)
}

const (
	kindField         protowire.Number = 1
	callIDField       protowire.Number = 2
	pingIntervalField protowire.Number = 3
	payloadField      protowire.Number = 4
	failureField      protowire.Number = 5
)

// MarshalBinary encodes the envelope using the protobuf wire format.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if e.Kind <= KindUnknown || e.Kind > KindPong {
		return nil, gerrors.NewErrInvalidEnvelope(fmt.Errorf("cannot encode kind %s", e.Kind))
	}

	size := len(e.CallID) + len(e.Payload) + len(e.Failure) + 32
	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, kindField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	if e.CallID != "" {
		b = protowire.AppendTag(b, callIDField, protowire.BytesType)
		b = protowire.AppendString(b, e.CallID)
	}
	if e.PingInterval > 0 {
		b = protowire.AppendTag(b, pingIntervalField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.PingInterval))
	}
	if len(e.Payload) > 0 {
		b = protowire.AppendTag(b, payloadField, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Payload)
	}
	if e.Failure != "" {
		b = protowire.AppendTag(b, failureField, protowire.BytesType)
		b = protowire.AppendString(b, e.Failure)
	}
	return b, nil
}

// UnmarshalBinary decodes an envelope encoded with MarshalBinary.
// Unknown fields are skipped.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	*e = Envelope{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return gerrors.NewErrInvalidEnvelope(protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == kindField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return gerrors.NewErrInvalidEnvelope(protowire.ParseError(n))
			}
			if v > uint64(KindPong) {
				return gerrors.NewErrInvalidEnvelope(fmt.Errorf("unknown kind %d", v))
			}
			e.Kind = Kind(v)
			data = data[n:]
		case num == pingIntervalField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return gerrors.NewErrInvalidEnvelope(protowire.ParseError(n))
			}
			e.PingInterval = time.Duration(v)
			data = data[n:]
		case (num == callIDField || num == payloadField || num == failureField) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return gerrors.NewErrInvalidEnvelope(protowire.ParseError(n))
			}
			switch num {
			case callIDField:
				e.CallID = string(v)
			case payloadField:
				e.Payload = append([]byte(nil), v...)
			default:
				e.Failure = string(v)
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return gerrors.NewErrInvalidEnvelope(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if e.Kind <= KindUnknown || e.Kind > KindPong {
		return gerrors.NewErrInvalidEnvelope(fmt.Errorf("unknown kind %s", e.Kind))
	}
	return nil
}

// envelopeCodec is the gRPC codec forced on reverse call streams.
type envelopeCodec struct{}

const codecName = "eskit-envelope"

func (envelopeCodec) Marshal(v any) ([]byte, error) {
	envelope, ok := v.(*Envelope)
	if !ok {
		return nil, gerrors.NewErrInvalidEnvelope(fmt.Errorf("cannot marshal %T", v))
	}
	return envelope.MarshalBinary()
}

func (envelopeCodec) Unmarshal(data []byte, v any) error {
	envelope, ok := v.(*Envelope)
	if !ok {
		return gerrors.NewErrInvalidEnvelope(fmt.Errorf("cannot unmarshal into %T", v))
	}
	return envelope.UnmarshalBinary(data)
}

func (envelopeCodec) Name() string {
	return codecName
}
