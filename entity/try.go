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

package entity

// Try is the result of an entity operation: either a value or the failure that prevented it.
// The failure is kept as returned so callers can match it with errors.Is and errors.As.
type Try[T any] struct {
	value T
	err   error
}

// Success returns a successful Try holding value
func Success[T any](value T) Try[T] {
	return Try[T]{value: value}
}

// Failure returns a failed Try holding err. A nil err is reported as a success with the zero value.
func Failure[T any](err error) Try[T] {
	return Try[T]{err: err}
}

// IsSuccess reports whether the operation succeeded
func (t Try[T]) IsSuccess() bool {
	return t.err == nil
}

// Value returns the value. It is the zero value when the operation failed.
func (t Try[T]) Value() T {
	return t.value
}

// Err returns the failure, or nil
func (t Try[T]) Err() error {
	return t.err
}

// Get unwraps the Try into the usual Go pair
func (t Try[T]) Get() (T, error) {
	return t.value, t.err
}

// mapTry converts a Try[any] into a Try[T], failing when the value is not a T.
func mapTry[T any](result Try[any], convert func(any) (T, error)) Try[T] {
	if !result.IsSuccess() {
		return Failure[T](result.Err())
	}
	value, err := convert(result.Value())
	if err != nil {
		return Failure[T](err)
	}
	return Success(value)
}
