package recycler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestSchedulerRunsRepeatedly(t *testing.T) {
	var n atomic.Int32
	s := NewScheduler(func(context.Context) error {
		n.Add(1)
		return nil
	}, 10*time.Millisecond, time.Millisecond, (&logCapture{}).logf)

	if !s.Start(context.Background()) {
		t.Fatal("Start returned false")
	}
	waitFor(t, func() bool { return n.Load() >= 3 })
	s.Stop()
	<-s.Done()
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(func(context.Context) error { return nil }, time.Hour, time.Hour, (&logCapture{}).logf)
	if !s.Start(context.Background()) {
		t.Fatal("first Start returned false")
	}
	if s.Start(context.Background()) {
		t.Error("second Start should be a no-op")
	}
	if !s.Running() {
		t.Error("expected running")
	}
	if !s.Stop() {
		t.Error("Stop returned false")
	}
	if s.Stop() {
		t.Error("second Stop should be a no-op")
	}
	<-s.Done()
}

func TestSchedulerStopPreventsFuturePasses(t *testing.T) {
	var n atomic.Int32
	s := NewScheduler(func(context.Context) error {
		n.Add(1)
		return nil
	}, 20*time.Millisecond, time.Millisecond, (&logCapture{}).logf)
	s.Start(context.Background())
	waitFor(t, func() bool { return n.Load() >= 1 })
	s.Stop()
	<-s.Done()

	got := n.Load()
	time.Sleep(60 * time.Millisecond)
	if n.Load() != got {
		t.Errorf("passes ran after Stop: %d -> %d", got, n.Load())
	}
}

func TestSchedulerStopDoesNotInterruptPass(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var ctxErr atomic.Value
	s := NewScheduler(func(ctx context.Context) error {
		close(entered)
		<-release
		ctxErr.Store(fmt.Sprint(ctx.Err()))
		return nil
	}, time.Hour, time.Millisecond, (&logCapture{}).logf)

	s.Start(context.Background())
	<-entered
	s.Stop()
	close(release)
	<-s.Done()
	if got := ctxErr.Load(); got != "<nil>" {
		t.Errorf("pass context err = %v, want nil", got)
	}
}

func TestSchedulerSurvivesErrorsAndPanics(t *testing.T) {
	var n atomic.Int32
	logs := &logCapture{}
	s := NewScheduler(func(context.Context) error {
		switch n.Add(1) {
		case 1:
			return errors.New("bus down")
		case 2:
			panic("boom")
		}
		return nil
	}, 5*time.Millisecond, time.Millisecond, logs.logf)

	s.Start(context.Background())
	waitFor(t, func() bool { return n.Load() >= 3 })
	s.Stop()
	<-s.Done()

	var sawErr, sawPanic bool
	for _, line := range logs.all() {
		if strings.Contains(line, "ERROR during pass: bus down") {
			sawErr = true
		}
		if strings.Contains(line, "ERROR during pass: panic: boom") {
			sawPanic = true
		}
	}
	if !sawErr || !sawPanic {
		t.Errorf("logs = %v", logs.all())
	}
}

func TestSchedulerPassesDoNotOverlap(t *testing.T) {
	var active, maxActive, n atomic.Int32
	s := NewScheduler(func(context.Context) error {
		cur := active.Add(1)
		for {
			m := maxActive.Load()
			if cur <= m || maxActive.CompareAndSwap(m, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		n.Add(1)
		return nil
	}, time.Millisecond, time.Millisecond, (&logCapture{}).logf)

	s.Start(context.Background())
	waitFor(t, func() bool { return n.Load() >= 4 })
	s.Stop()
	<-s.Done()
	if maxActive.Load() != 1 {
		t.Errorf("max concurrent passes = %d", maxActive.Load())
	}
}
