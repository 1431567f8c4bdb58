package goIdentity

import (
	"fmt"
	"strings"
)

// Scope is a named permission unit a token may carry. Validation requires
// the token's scope set to be a superset of the scopes demanded by the
// operation.
//
//	Docs: docs/tokens.md
type Scope uint8

const (
	// ScopeRead is an exported constant or variable used by the identity engine.
	ScopeRead Scope = iota
	// ScopeWrite is an exported constant or variable used by the identity engine.
	ScopeWrite
	// ScopeAdmin is an exported constant or variable used by the identity engine.
	ScopeAdmin
	// ScopeService is an exported constant or variable used by the identity engine.
	ScopeService
	// ScopeLimited is an exported constant or variable used by the identity engine.
	ScopeLimited
	// ScopeFull is an exported constant or variable used by the identity engine.
	ScopeFull

	scopeCount
)

var scopeNames = [scopeCount]string{
	"read",
	"write",
	"admin",
	"service",
	"limited",
	"full",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Scope) String() string {
	if s >= scopeCount {
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
	return scopeNames[s]
}

// ParseScope describes the parsescope operation and its observable behavior.
//
// ParseScope may return an error when input validation, dependency calls, or security checks fail.
// ParseScope does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseScope(s string) (Scope, error) {
	for i, name := range scopeNames {
		if name == s {
			return Scope(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, s)
}

// ScopeSet is a bitmask over the closed [Scope] enumeration. The zero value
// is the empty set. Sets are value types; all operations return new sets
// and never mutate the receiver, which keeps them safe to embed in shared
// token records.
type ScopeSet uint8

// NewScopeSet builds a set from individual scopes.
func NewScopeSet(scopes ...Scope) ScopeSet {
	var set ScopeSet
	for _, s := range scopes {
		set = set.With(s)
	}
	return set
}

// With returns the receiver with the given scope added.
func (set ScopeSet) With(s Scope) ScopeSet {
	if s >= scopeCount {
		return set
	}
	return set | (1 << s)
}

// Without returns the receiver with the given scope removed.
func (set ScopeSet) Without(s Scope) ScopeSet {
	if s >= scopeCount {
		return set
	}
	return set &^ (1 << s)
}

// Has reports whether the scope is present.
func (set ScopeSet) Has(s Scope) bool {
	if s >= scopeCount {
		return false
	}
	return set&(1<<s) != 0
}

// Union returns the combined set.
func (set ScopeSet) Union(other ScopeSet) ScopeSet {
	return set | other
}

// Superset reports whether every scope in required is present in set.
// An empty requirement is always satisfied.
func (set ScopeSet) Superset(required ScopeSet) bool {
	return set&required == required
}

// Empty reports whether no scope is present.
func (set ScopeSet) Empty() bool {
	return set == 0
}

// Scopes expands the set into the individual scopes, in enum order.
func (set ScopeSet) Scopes() []Scope {
	out := make([]Scope, 0, scopeCount)
	for s := Scope(0); s < scopeCount; s++ {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (set ScopeSet) String() string {
	parts := make([]string, 0, scopeCount)
	for _, s := range set.Scopes() {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ",")
}

// ParseScopeSet parses a comma-separated scope list. Empty input yields the
// empty set.
func ParseScopeSet(s string) (ScopeSet, error) {
	var set ScopeSet
	if s == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		scope, err := ParseScope(part)
		if err != nil {
			return 0, err
		}
		set = set.With(scope)
	}
	return set, nil
}
