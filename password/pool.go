package password

import (
	"context"
	"errors"
)

// Pool defines a public type used by goIdentity APIs.
//
// Pool instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Pool bounds how many hashing or verification operations run at once.
// Argon2id work is memory hard, so an unbounded burst of logins can exhaust
// a host; the pool applies backpressure instead. Callers park on the
// semaphore until a slot frees or their context ends.
type Pool struct {
	hasher Hasher
	slots  chan struct{}
}

// NewPool describes the newpool operation and its observable behavior.
//
// NewPool may return an error when input validation, dependency calls, or security checks fail.
// NewPool does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewPool(hasher Hasher, size int) (*Pool, error) {
	if hasher == nil {
		return nil, errors.New("nil hasher")
	}
	if size < 1 {
		return nil, errors.New("pool size must be >= 1")
	}
	return &Pool{
		hasher: hasher,
		slots:  make(chan struct{}, size),
	}, nil
}

// Hasher describes the hasher operation and its observable behavior.
//
// Hasher may return an error when input validation, dependency calls, or security checks fail.
// Hasher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Pool) Hasher() Hasher { return p.hasher }

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()
	return p.hasher.Hash(password)
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	return p.VerifyWith(ctx, p.hasher, password, encodedHash)
}

// VerifyWith describes the verifywith operation and its observable behavior.
//
// VerifyWith may return an error when input validation, dependency calls, or security checks fail.
// VerifyWith does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Pool) VerifyWith(ctx context.Context, hasher Hasher, password, encodedHash string) (bool, error) {
	if hasher == nil {
		return false, errors.New("nil hasher")
	}
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.release()
	return hasher.Verify(password, encodedHash)
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() { <-p.slots }
