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

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestChain(t *testing.T) {
	t.Run("With no violation", func(t *testing.T) {
		err := New().
			AddValidator(NewEmptyStringValidator("kind", "K")).
			AddValidator(NewPositiveDurationValidator("pingInterval", time.Second)).
			AddValidator(NewNonNegativeDurationValidator("window", 0)).
			AddAssertion(true, "never").
			Validate()
		assert.NoError(t, err)
	})
	t.Run("With all errors", func(t *testing.T) {
		err := New(AllErrors()).
			AddValidator(NewEmptyStringValidator("kind", "  ")).
			AddValidator(NewPositiveDurationValidator("pingInterval", 0)).
			AddValidator(NewNonNegativeDurationValidator("window", -time.Second)).
			AddAssertion(false, "factor must be positive").
			Validate()
		require.Error(t, err)
		errs := multierr.Errors(err)
		require.Len(t, errs, 4)
		assert.EqualError(t, errs[0], "the [kind] is required")
		assert.EqualError(t, errs[1], "the [pingInterval] must be greater than zero")
		assert.EqualError(t, errs[2], "the [window] must not be negative")
		assert.EqualError(t, errs[3], "factor must be positive")
	})
	t.Run("With fail fast", func(t *testing.T) {
		err := New(FailFast()).
			AddAssertion(false, "first").
			AddAssertion(false, "second").
			Validate()
		assert.EqualError(t, err, "first")
	})
}
