package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingCapturer struct {
	n   atomic.Int32
	err error
}

func (c *countingCapturer) Capture(context.Context) (string, error) {
	c.n.Add(1)
	return "/tmp/x.JPG", c.err
}

func TestSchedulerCaptures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &countingCapturer{}
	s := New(ctx, c)

	if err := s.Begin(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if s.Interval() != 10*time.Millisecond {
		t.Errorf("interval = %s", s.Interval())
	}
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	n := c.n.Load()
	if n < 2 {
		t.Fatalf("captures = %d, want >= 2", n)
	}

	time.Sleep(50 * time.Millisecond)
	// one tick may already have been in flight when Stop was called
	if after := c.n.Load(); after > n+1 {
		t.Errorf("captures after stop = %d, before = %d", after, n)
	}
	if s.Interval() != 0 {
		t.Errorf("interval after stop = %s", s.Interval())
	}
}

func TestSchedulerKeepsGoingOnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &countingCapturer{err: errors.New("camera is not open")}
	s := New(ctx, c)
	if err := s.Begin(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if c.n.Load() < 2 {
		t.Errorf("captures = %d, want >= 2", c.n.Load())
	}
}

func TestBeginRejectsZero(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, &countingCapturer{})
	if err := s.Begin(0); err == nil {
		t.Error("expected error for zero interval")
	}
}
