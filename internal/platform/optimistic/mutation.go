// Package optimistic applies a change locally before its remote commit is
// confirmed and reverts it if the commit fails or does not answer in time.
// Mutations are keyed; a newer mutation on a key supersedes the one in
// flight, whose result is then discarded.
package optimistic

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "habitsync/internal/platform/errors"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusFailed     Status = "failed"
	StatusSuperseded Status = "superseded"
)

// Mutation is the record of one optimistic change. Restored is the value
// written back when RolledBack is set.
type Mutation[T any] struct {
	Key        string
	Previous   T
	Next       T
	Status     Status
	Err        error
	RolledBack bool
	Restored   T
}

// Spec describes a mutation to run.
//
// Apply writes a value into the local copy; it is called with Next
// immediately and with the last committed value of Key on rollback.
// Commit performs the remote write. Settled, if set, observes the terminal
// mutation.
type Spec[T any] struct {
	Key      string
	Previous T
	Next     T
	Apply    func(T)
	Commit   func(ctx context.Context) error
	Settled  func(Mutation[T])
}

// Ticket lets the caller wait for a mutation to settle.
type Ticket[T any] struct {
	done chan struct{}
	mu   sync.Mutex
	m    Mutation[T]
}

func (t *Ticket[T]) Done() <-chan struct{} {
	return t.done
}

// Mutation returns the current snapshot of the mutation.
func (t *Ticket[T]) Mutation() Mutation[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m
}

// Wait blocks until the mutation settles or ctx ends.
func (t *Ticket[T]) Wait(ctx context.Context) (Mutation[T], error) {
	select {
	case <-t.done:
		return t.Mutation(), nil
	case <-ctx.Done():
		return t.Mutation(), ctx.Err()
	}
}

func (t *Ticket[T]) settle(status Status, err error, rolledBack bool, restored T) Mutation[T] {
	t.mu.Lock()
	t.m.Status = status
	t.m.Err = err
	t.m.RolledBack = rolledBack
	t.m.Restored = restored
	m := t.m
	t.mu.Unlock()
	close(t.done)
	return m
}

// keyState tracks one key. committed is the newest value the remote side
// accepted, or the local value when the key was last idle; committedGen is
// the generation that wrote it, zero for the idle value.
type keyState[T any] struct {
	gen          uint64
	inflight     int
	committed    T
	committedGen uint64
}

type Runner[T any] struct {
	timeout time.Duration

	mu   sync.Mutex
	keys map[string]*keyState[T]
	wg   sync.WaitGroup
}

// NewRunner returns a runner that fails commits not settled within timeout.
func NewRunner[T any](timeout time.Duration) *Runner[T] {
	return &Runner[T]{timeout: timeout, keys: map[string]*keyState[T]{}}
}

func (r *Runner[T]) key(name string) *keyState[T] {
	ks, ok := r.keys[name]
	if !ok {
		ks = &keyState[T]{}
		r.keys[name] = ks
	}
	return ks
}

// Run applies spec.Next synchronously and commits in the background.
//
// A failed mutation restores the newest committed value of its key rather
// than its own Previous, which may belong to a superseded mutation that
// never reached the remote side. When the last mutation in flight on a key
// settles after the newest one failed, the key is restored once more so
// the local copy ends on what the remote side accepted.
func (r *Runner[T]) Run(ctx context.Context, spec Spec[T]) *Ticket[T] {
	ticket := &Ticket[T]{
		done: make(chan struct{}),
		m:    Mutation[T]{Key: spec.Key, Previous: spec.Previous, Next: spec.Next, Status: StatusPending},
	}

	r.mu.Lock()
	ks := r.key(spec.Key)
	if ks.inflight == 0 {
		ks.committed = spec.Previous
		ks.committedGen = 0
	}
	ks.gen++
	gen := ks.gen
	ks.inflight++
	spec.Apply(spec.Next)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.commit(context.WithoutCancel(ctx), spec.Commit)

		r.mu.Lock()
		ks.inflight--
		if err == nil && gen > ks.committedGen {
			ks.committed = spec.Next
			ks.committedGen = gen
		}
		var (
			status   Status
			rollback bool
		)
		switch {
		case ks.gen != gen:
			status = StatusSuperseded
			if err == nil {
				err = apperrors.ErrSuperseded
			} else {
				err = fmt.Errorf("%w: %w", apperrors.ErrSuperseded, err)
			}
			rollback = ks.inflight == 0 && ks.committedGen != ks.gen
		case err != nil:
			status = StatusFailed
			rollback = true
		default:
			status = StatusCommitted
		}
		var restored T
		if rollback {
			restored = ks.committed
			spec.Apply(restored)
		}
		r.mu.Unlock()

		m := ticket.settle(status, err, rollback, restored)
		if spec.Settled != nil {
			spec.Settled(m)
		}
	}()
	return ticket
}

// Pending reports whether a mutation on key has not settled yet.
func (r *Runner[T]) Pending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ks, ok := r.keys[key]
	return ok && ks.inflight > 0
}

// ApplyIfIdle runs fn only when no mutation on key is in flight. It holds
// the runner lock so fn cannot interleave with an apply or a rollback.
func (r *Runner[T]) ApplyIfIdle(key string, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ks, ok := r.keys[key]; ok && ks.inflight > 0 {
		return false
	}
	fn()
	return true
}

// Wait blocks until every started mutation has settled.
func (r *Runner[T]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner[T]) commit(ctx context.Context, commit func(context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	result := make(chan error, 1)
	go func() {
		result <- commit(ctx)
	}()
	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrCommitFailed, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", apperrors.ErrCommitTimeout, r.timeout)
	}
}
