// Package workers bounds the concurrency of CPU-bound work (PDF parsing,
// DOCX parsing, OCR, text decoding) so file-heavy users cannot starve the
// scheduler for everyone else.
package workers

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded execution slot pool. Acquiring a slot blocks until one
// is free or the context is cancelled.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool with the given number of slots.
func NewPool(size int64) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Do runs fn on one of the pool's slots, waiting for a free slot first.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Run is the result-bearing variant of Pool.Do.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// Run2 is Run for functions returning two values.
func Run2[A, B any](ctx context.Context, p *Pool, fn func() (A, B, error)) (A, B, error) {
	var a A
	var b B
	err := p.Do(ctx, func() error {
		var err error
		a, b, err = fn()
		return err
	})
	return a, b, err
}
