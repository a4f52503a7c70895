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

package errors

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrDidNotReceiveConnectResponse is returned when the first message received on a
	// reverse call stream is not the connect response.
	ErrDidNotReceiveConnectResponse = errors.New("did not receive connect response")

	// ErrConnectRejected is returned when the backend answered the handshake with a failure.
	ErrConnectRejected = errors.New("connect request rejected")

	// ErrPingTimedOut is returned when no ping was received within the configured deadline.
	ErrPingTimedOut = errors.New("ping timed out")

	// ErrStreamCompleted is returned when the backend completed the stream before the handshake ended.
	ErrStreamCompleted = errors.New("stream completed")

	// ErrClientAlreadyStarted is returned when Connect or Handle is called more than once on a client.
	ErrClientAlreadyStarted = errors.New("reverse call client already started")

	// ErrClientNotConnected is returned when Handle is called before a successful Connect.
	ErrClientNotConnected = errors.New("reverse call client is not connected")

	// ErrInvalidEnvelope is returned when an envelope cannot be decoded or carries an unknown kind.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrRequestFailed is the category of every failure carried back in a response envelope.
	ErrRequestFailed = errors.New("request failed")

	// ErrMalformedIdentity is returned when a cluster identity key has no tenant separator.
	ErrMalformedIdentity = errors.New("malformed identity")

	// ErrKindRequired is returned when an identity or registration has an empty kind.
	ErrKindRequired = errors.New("entity kind is required")

	// ErrKindNotRegistered is returned when an entity type or kind has not been registered.
	ErrKindNotRegistered = errors.New("entity kind is not registered")

	// ErrKindAlreadyRegistered is returned when a kind or entity type is registered twice.
	ErrKindAlreadyRegistered = errors.New("entity kind is already registered")

	// ErrEntityConstruction is the category of entity factory failures.
	ErrEntityConstruction = errors.New("entity construction failed")

	// ErrUnexpectedEntityType is returned when an entity instance is not of the expected type.
	ErrUnexpectedEntityType = errors.New("unexpected entity type")

	// ErrEntityDeactivated is delivered to subscribers when the entity they observe is deactivated.
	ErrEntityDeactivated = errors.New("entity deactivated")

	// ErrEngineStopped is returned when an operation targets a stopped entity engine.
	ErrEngineStopped = errors.New("entity engine is stopped")

	// ErrSubscriptionClosed is returned when reading from a subscription that has already completed.
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrUnexpectedItemType is returned when a subscription receives an item of the wrong type.
	ErrUnexpectedItemType = errors.New("unexpected subscription item type")

	// ErrInvalidKeySelector is returned when a projection key selector cannot produce a key.
	ErrInvalidKeySelector = errors.New("invalid key selector")

	// ErrUnhandledEvent is returned when a projection has no handler for an event type.
	ErrUnhandledEvent = errors.New("unhandled event type")

	// ErrConcurrencyConflict is returned when events are committed against a stale aggregate version.
	ErrConcurrencyConflict = errors.New("aggregate version conflict")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTenantRequired is returned when a tenant-scoped operation receives an empty tenant.
	ErrTenantRequired = errors.New("tenant is required")
)

// NewErrMalformedIdentity formats an ErrMalformedIdentity with the offending key.
func NewErrMalformedIdentity(key string) error {
	return fmt.Errorf("key=(%s) %w", key, ErrMalformedIdentity)
}

// NewErrKindNotRegistered formats an ErrKindNotRegistered with the given kind or type name.
func NewErrKindNotRegistered(kind string) error {
	return fmt.Errorf("kind=(%s) %w", kind, ErrKindNotRegistered)
}

// NewErrKindAlreadyRegistered formats an ErrKindAlreadyRegistered with the given kind or type name.
func NewErrKindAlreadyRegistered(kind string) error {
	return fmt.Errorf("kind=(%s) %w", kind, ErrKindAlreadyRegistered)
}

// NewErrUnexpectedEntityType formats an ErrUnexpectedEntityType.
func NewErrUnexpectedEntityType(expected string, got any) error {
	return fmt.Errorf("expected=(%s) got=(%T) %w", expected, got, ErrUnexpectedEntityType)
}

// NewErrInvalidEnvelope wraps a decoding error with ErrInvalidEnvelope.
func NewErrInvalidEnvelope(err error) error {
	return errors.Join(ErrInvalidEnvelope, err)
}

// NewErrConnectRejected wraps the handshake failure reason with ErrConnectRejected.
func NewErrConnectRejected(err error) error {
	return errors.Join(ErrConnectRejected, err)
}

// NewErrInvalidConfig wraps validation violations with ErrInvalidConfig.
func NewErrInvalidConfig(err error) error {
	return errors.Join(ErrInvalidConfig, err)
}

// NewErrConcurrencyConflict formats an ErrConcurrencyConflict with the expected and actual versions.
func NewErrConcurrencyConflict(id string, expected, actual uint64) error {
	return fmt.Errorf("aggregate=(%s) expected=(%d) actual=(%d) %w", id, expected, actual, ErrConcurrencyConflict)
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

// RecoveredPanic turns a value returned by recover into a PanicError.
// It must be called from the deferred function that recovered.
func RecoveredPanic(r any) *PanicError {
	if pe, ok := r.(*PanicError); ok {
		return pe
	}

	// frames: RecoveredPanic, the deferred function, runtime.gopanic, the panicking function
	pc, fn, line, _ := runtime.Caller(3)
	location := fmt.Sprintf("%s[%s:%d]", runtime.FuncForPC(pc).Name(), fn, line)
	if err, ok := r.(error); ok {
		return NewPanicError(fmt.Errorf("%w at %s", err, location))
	}
	return NewPanicError(fmt.Errorf("%v at %s", r, location))
}

// ConstructionError is returned when an entity factory fails to build an instance.
// It matches ErrEntityConstruction and unwraps to the factory error.
type ConstructionError struct {
	identity string
	err      error
}

var _ error = (*ConstructionError)(nil)

// NewConstructionError returns an instance of ConstructionError
func NewConstructionError(identity string, err error) *ConstructionError {
	return &ConstructionError{identity: identity, err: err}
}

// Identity returns the identity of the entity that failed to construct.
func (c *ConstructionError) Identity() string {
	return c.identity
}

// Error implements the standard error interface
func (c *ConstructionError) Error() string {
	return fmt.Sprintf("entity=(%s) %s: %v", c.identity, ErrEntityConstruction.Error(), c.err)
}

// Is reports whether target is ErrEntityConstruction.
func (c *ConstructionError) Is(target error) bool {
	return target == ErrEntityConstruction
}

func (c *ConstructionError) Unwrap() error {
	return c.err
}

// RequestFailure is the failure carried back by a response envelope.
// It matches ErrRequestFailed.
type RequestFailure struct {
	callID string
	reason string
}

var _ error = (*RequestFailure)(nil)

// NewRequestFailure returns an instance of RequestFailure
func NewRequestFailure(callID, reason string) *RequestFailure {
	return &RequestFailure{callID: callID, reason: reason}
}

// CallID returns the correlation id of the failed request.
func (r *RequestFailure) CallID() string {
	return r.callID
}

// Reason returns the failure reason.
func (r *RequestFailure) Reason() string {
	return r.reason
}

// Error implements the standard error interface
func (r *RequestFailure) Error() string {
	return fmt.Sprintf("call=(%s) %s: %s", r.callID, ErrRequestFailed.Error(), r.reason)
}

// Is reports whether target is ErrRequestFailed.
func (r *RequestFailure) Is(target error) bool {
	return target == ErrRequestFailed
}
