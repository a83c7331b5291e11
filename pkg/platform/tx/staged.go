package tx

import (
	"context"
	"sync"
)

type stagedKey struct{}

// Staged holds writes to in-memory side stores that belong to an in-memory
// transaction. They are applied on commit and dropped on rollback.
type Staged struct {
	mu     sync.Mutex
	writes []func()
}

// WithStaged returns ctx carrying a staging buffer. owner is false when ctx
// already carried one; the outer transaction flushes it.
func WithStaged(ctx context.Context) (_ context.Context, staged *Staged, owner bool) {
	if s, ok := ctx.Value(stagedKey{}).(*Staged); ok {
		return ctx, s, false
	}
	s := &Staged{}
	return context.WithValue(ctx, stagedKey{}, s), s, true
}

// Stage queues write on the transaction in ctx, or runs it now when ctx
// carries none.
func Stage(ctx context.Context, write func()) {
	s, ok := ctx.Value(stagedKey{}).(*Staged)
	if !ok {
		write()
		return
	}
	s.mu.Lock()
	s.writes = append(s.writes, write)
	s.mu.Unlock()
}

// Flush applies queued writes in order and empties the buffer.
func (s *Staged) Flush() {
	s.mu.Lock()
	writes := s.writes
	s.writes = nil
	s.mu.Unlock()
	for _, w := range writes {
		w()
	}
}
