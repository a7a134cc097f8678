package peg

import (
	"context"
	"log/slog"
	"time"
)

const (
	// InitDelay is the one-time grace period before the first cycle, giving
	// the counter-chain endpoint time to become reachable.
	InitDelay = 10 * time.Second
	// RefreshDelay is the wait inserted after a cycle that reported delay
	// required.
	RefreshDelay = 10 * time.Second
)

// Loop owns the periodic execution of sync cycles. Exactly one cycle runs at
// a time; a cycle that reports no delay is followed immediately by the next
// one while more data may be available. Every wait aborts promptly on
// context cancellation.
type Loop struct {
	sync         *Synchronizer
	initDelay    time.Duration
	refreshDelay time.Duration
	poke         chan struct{}
}

// NewLoop creates a loop with the standard delays.
func NewLoop(s *Synchronizer) *Loop {
	return &Loop{
		sync:         s,
		initDelay:    InitDelay,
		refreshDelay: RefreshDelay,
		poke:         make(chan struct{}, 1),
	}
}

// Poke cuts short the current refresh wait so the next cycle starts
// immediately, e.g. when the counter chain announces a new matured block.
// Safe to call from any goroutine; pokes coalesce.
func (l *Loop) Poke() {
	select {
	case l.poke <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("starting matured deposit sync loop",
		"init_delay", l.initDelay,
		"refresh_delay", l.refreshDelay,
	)
	if err := l.wait(ctx, l.initDelay); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delayRequired, err := l.sync.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sync cycle failed", "err", err)
			delayRequired = true
		}
		if !delayRequired {
			continue
		}
		if err := l.wait(ctx, l.refreshDelay); err != nil {
			return err
		}
	}
}

// wait sleeps for d, returning early on a poke or on cancellation.
func (l *Loop) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.poke:
		return nil
	case <-timer.C:
		return nil
	}
}
