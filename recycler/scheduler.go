package recycler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// PassFunc runs one pass.
type PassFunc func(ctx context.Context) error

// Scheduler runs a pass after an initial delay and then once per interval,
// measured from the end of the previous pass. Passes never overlap. Stop
// prevents future passes but does not interrupt one in progress.
type Scheduler struct {
	pass         PassFunc
	interval     time.Duration
	initialDelay time.Duration
	logFn        LogFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewScheduler(pass PassFunc, interval, initialDelay time.Duration, logFn LogFunc) *Scheduler {
	if logFn == nil {
		logFn = log.Printf
	}
	return &Scheduler{
		pass:         pass,
		interval:     interval,
		initialDelay: initialDelay,
		logFn:        logFn,
	}
}

// Start begins the schedule. It returns false if already running.
func (s *Scheduler) Start(parent context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(ctx, s.done)
	return true
}

// Stop cancels future passes. It returns false if not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.cancel()
	s.running = false
	return true
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done returns a channel closed when the most recently started loop exits.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// The pass outlives a Stop issued while it runs.
			if err := s.runOnce(context.WithoutCancel(ctx)); err != nil {
				s.logFn("recycler: ERROR during pass: %v", err)
			}
			timer.Reset(s.interval)
		}
	}
}

// runOnce converts panics into errors so the schedule keeps going.
func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return s.pass(ctx)
}
