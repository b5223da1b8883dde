// Package confirm serializes destructive actions and submissions: deletes
// wait for an explicit confirmation, and submissions hold an in-flight flag
// that is released on every exit path.
package confirm

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNothingPending is returned by Confirm when no target was requested.
	ErrNothingPending = errors.New("no action awaiting confirmation")

	// ErrInFlight is returned when a submission is already running.
	ErrInFlight = errors.New("a submission is already in progress")
)

// Gate holds at most one target awaiting confirmation.
type Gate[T any] struct {
	mu      sync.Mutex
	target  T
	pending bool
}

// Request records target and opens the confirmation. A newer request replaces
// an older unconfirmed one.
func (g *Gate[T]) Request(target T) {
	g.mu.Lock()
	g.target = target
	g.pending = true
	g.mu.Unlock()
}

// Pending returns the target awaiting confirmation.
func (g *Gate[T]) Pending() (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target, g.pending
}

// Cancel closes the confirmation without running anything.
func (g *Gate[T]) Cancel() {
	g.mu.Lock()
	g.clear()
	g.mu.Unlock()
}

// Confirm closes the confirmation and runs action on the recorded target.
func (g *Gate[T]) Confirm(ctx context.Context, action func(context.Context, T) error) error {
	g.mu.Lock()
	if !g.pending {
		g.mu.Unlock()
		return ErrNothingPending
	}
	target := g.target
	g.clear()
	g.mu.Unlock()

	return action(ctx, target)
}

func (g *Gate[T]) clear() {
	var zero T
	g.target = zero
	g.pending = false
}

// InFlight guards a submission. The zero value is ready to use.
type InFlight struct {
	mu   sync.Mutex
	busy bool
}

// Busy reports whether a submission is running; the triggering control is
// disabled while it is.
func (f *InFlight) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Run executes fn with the flag set. It returns ErrInFlight without calling fn
// when another Run is active.
func (f *InFlight) Run(ctx context.Context, fn func(context.Context) error) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.busy = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	return fn(ctx)
}
