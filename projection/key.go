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

package projection

import (
	"fmt"
	"reflect"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	gerrors "github.com/tochemey/eskit/errors"
)

// KeySelector returns the key of the read model an event applies to
type KeySelector func(event Event) (string, error)

// FromEventSourceID keys read models by the event source id
func FromEventSourceID() KeySelector {
	return func(event Event) (string, error) {
		return nonEmpty("event source id", event.Context.EventSourceID)
	}
}

// FromPartitionID keys read models by the partition id
func FromPartitionID() KeySelector {
	return func(event Event) (string, error) {
		return nonEmpty("partition id", event.Context.PartitionID)
	}
}

// Static applies every event to the single read model with the given key
func Static(key string) KeySelector {
	return func(Event) (string, error) {
		return nonEmpty("static key", key)
	}
}

// FromOccurred keys read models by the commit time of the event formatted with layout,
// for instance "2006-01-02" for one read model per day.
func FromOccurred(layout string) KeySelector {
	return func(event Event) (string, error) {
		if event.Context.Occurred.IsZero() {
			return "", fmt.Errorf("event has no occurred time: %w", gerrors.ErrInvalidKeySelector)
		}
		return nonEmpty("occurred format", event.Context.Occurred.Format(layout))
	}
}

// FromProperty keys read models by a property of the event content.
// The path is dot separated and walks maps keyed by string, struct fields and protobuf message fields.
func FromProperty(path string) KeySelector {
	segments := strings.Split(path, ".")
	return func(event Event) (string, error) {
		value := event.Content
		for _, segment := range segments {
			next, ok := property(value, segment)
			if !ok {
				return "", fmt.Errorf("property %s not found on %T: %w", path, event.Content, gerrors.ErrInvalidKeySelector)
			}
			value = next
		}
		return nonEmpty("property "+path, fmt.Sprint(value))
	}
}

func property(value any, name string) (any, bool) {
	if message, ok := value.(proto.Message); ok {
		return protoField(message.ProtoReflect(), name)
	}

	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		field := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !field.IsValid() {
			return nil, false
		}
		return field.Interface(), true
	case reflect.Struct:
		field := v.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	default:
		return nil, false
	}
}

func protoField(message protoreflect.Message, name string) (any, bool) {
	fields := message.Descriptor().Fields()
	field := fields.ByName(protoreflect.Name(name))
	if field == nil {
		field = fields.ByJSONName(name)
	}
	if field == nil {
		return nil, false
	}

	value := message.Get(field)
	if field.Message() != nil && !field.IsList() && !field.IsMap() {
		return value.Message().Interface(), true
	}
	return value.Interface(), true
}

func nonEmpty(source, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%s is empty: %w", source, gerrors.ErrInvalidKeySelector)
	}
	return key, nil
}
