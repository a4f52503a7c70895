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

// Package identity maps a tenant-scoped entity key to the single opaque key
// used to address a virtual entity, and back.
//
// The key format is "{tenant}:{entityKey}". The first colon is the separator:
// the tenant never contains one, while the entity key is opaque and may.
package identity

import (
	"fmt"
	"strings"

	gerrors "github.com/tochemey/eskit/errors"
)

const separator = ":"

// kindSeparator joins the kind and the key in String.
const kindSeparator = "/"

// ClusterIdentity addresses one entity instance. It is immutable and comparable.
type ClusterIdentity struct {
	kind      string
	key       string
	tenant    string
	entityKey string
}

// New creates the identity of the entity identified by the given tenant and key, for the given kind.
func New(kind, tenant, entityKey string) (ClusterIdentity, error) {
	if strings.TrimSpace(kind) == "" {
		return ClusterIdentity{}, gerrors.ErrKindRequired
	}
	if strings.Contains(tenant, separator) {
		return ClusterIdentity{}, fmt.Errorf("tenant=(%s) must not contain %q: %w", tenant, separator, gerrors.ErrMalformedIdentity)
	}
	return ClusterIdentity{
		kind:      kind,
		key:       Compose(tenant, entityKey),
		tenant:    tenant,
		entityKey: entityKey,
	}, nil
}

// Parse rebuilds an identity from a kind and a composed key.
func Parse(kind, key string) (ClusterIdentity, error) {
	if strings.TrimSpace(kind) == "" {
		return ClusterIdentity{}, gerrors.ErrKindRequired
	}
	tenant, entityKey, err := Decompose(key)
	if err != nil {
		return ClusterIdentity{}, err
	}
	return ClusterIdentity{
		kind:      kind,
		key:       key,
		tenant:    tenant,
		entityKey: entityKey,
	}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and static identities.
func MustParse(kind, key string) ClusterIdentity {
	id, err := Parse(kind, key)
	if err != nil {
		panic(err)
	}
	return id
}

// Compose joins a tenant and an entity key into a cluster key.
func Compose(tenant, entityKey string) string {
	return tenant + separator + entityKey
}

// Decompose splits a cluster key at its first separator.
// It returns ErrMalformedIdentity when the key has no separator.
func Decompose(key string) (tenant, entityKey string, err error) {
	tenant, entityKey, found := strings.Cut(key, separator)
	if !found {
		return "", "", gerrors.NewErrMalformedIdentity(key)
	}
	return tenant, entityKey, nil
}

// Kind returns the entity kind
func (c ClusterIdentity) Kind() string {
	return c.kind
}

// Key returns the composed "{tenant}:{entityKey}" key
func (c ClusterIdentity) Key() string {
	return c.key
}

// Tenant returns the tenant part of the key
func (c ClusterIdentity) Tenant() string {
	return c.tenant
}

// EntityKey returns the entity key part of the key
func (c ClusterIdentity) EntityKey() string {
	return c.entityKey
}

// IsZero reports whether the identity is the zero value
func (c ClusterIdentity) IsZero() bool {
	return c.kind == "" && c.key == ""
}

// String returns "kind/key". It is unique per entity instance and is used as routing key.
func (c ClusterIdentity) String() string {
	return c.kind + kindSeparator + c.key
}
