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

	"google.golang.org/protobuf/proto"
)

// Converter turns a domain value into envelope payload bytes and back.
type Converter[T any] interface {
	Marshal(value T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

type protoConverter[T proto.Message] struct {
	newFn func() T
}

// ProtoConverter creates a Converter for protocol buffer messages.
// newFn returns an empty message to unmarshal into.
func ProtoConverter[T proto.Message](newFn func() T) Converter[T] {
	return &protoConverter[T]{newFn: newFn}
}

func (c *protoConverter[T]) Marshal(value T) ([]byte, error) {
	bytea, err := proto.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", value, err)
	}
	return bytea, nil
}

func (c *protoConverter[T]) Unmarshal(data []byte) (T, error) {
	message := c.newFn()
	if err := proto.Unmarshal(data, message); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal %T: %w", message, err)
	}
	return message, nil
}

type bytesConverter struct{}

// BytesConverter passes payloads through untouched.
func BytesConverter() Converter[[]byte] {
	return bytesConverter{}
}

func (bytesConverter) Marshal(value []byte) ([]byte, error) {
	return value, nil
}

func (bytesConverter) Unmarshal(data []byte) ([]byte, error) {
	return data, nil
}
