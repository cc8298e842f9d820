package social

import (
	"context"
	"sync"
)

// OpState is the lifecycle of one optimistic toggle.
type OpState int

const (
	// OpOptimistic means the local change is applied and not yet persisted.
	OpOptimistic OpState = iota
	// OpConfirmed means the backend reached the state the key settled on.
	OpConfirmed
	// OpFailed means the write failed and local state was rolled back.
	OpFailed
)

func (s OpState) String() string {
	switch s {
	case OpOptimistic:
		return "optimistic"
	case OpConfirmed:
		return "confirmed"
	case OpFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Op is the handle returned by a toggle. Every toggle on the same key is
// resolved together when the key settles: all confirmed once the backend
// matches the latest desired state, or all failed on rollback.
type Op struct {
	value bool
	done  chan struct{}

	mu    sync.Mutex
	state OpState
	err   error
}

func newOp(value bool) *Op {
	return &Op{value: value, done: make(chan struct{})}
}

// Value is the membership the toggle produced locally (true = following
// or liked).
func (o *Op) Value() bool {
	return o.value
}

// Done is closed once the op is confirmed or failed.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the op resolves or ctx is done. It returns the op's
// error, or ctx.Err() if ctx ended first.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the failure cause, nil while optimistic or once confirmed.
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// State returns the current lifecycle state.
func (o *Op) State() OpState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Op) resolve(err error) {
	o.mu.Lock()
	if o.state != OpOptimistic {
		o.mu.Unlock()
		return
	}
	if err != nil {
		o.state = OpFailed
		o.err = err
	} else {
		o.state = OpConfirmed
	}
	o.mu.Unlock()
	close(o.done)
}
