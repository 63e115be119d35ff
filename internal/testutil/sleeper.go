package testutil

import (
	"context"
	"sync"
	"time"
)

// Sleeper is a poll-interval stand-in that returns immediately and records
// each requested pause.
type Sleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

// Sleep records d. It honours an already cancelled context.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses = append(s.pauses, d)
	return nil
}

// Pauses returns the recorded pauses.
func (s *Sleeper) Pauses() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}
