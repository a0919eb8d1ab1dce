package button

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakePin struct {
	pressed atomic.Bool
}

func (p *fakePin) Pressed() bool {
	return p.pressed.Load()
}

func TestWatchFiresOncePerPress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pin := &fakePin{}
	var presses atomic.Int32
	done := make(chan struct{})
	go func() {
		Watch(ctx, pin, 5*time.Millisecond, func() { presses.Add(1) })
		close(done)
	}()

	pin.pressed.Store(true)
	time.Sleep(100 * time.Millisecond)
	if n := presses.Load(); n != 1 {
		t.Fatalf("presses while held = %d, want 1", n)
	}

	pin.pressed.Store(false)
	time.Sleep(50 * time.Millisecond)
	pin.pressed.Store(true)
	time.Sleep(100 * time.Millisecond)
	if n := presses.Load(); n != 2 {
		t.Fatalf("presses after second press = %d, want 2", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchIgnoresGlitch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	reads := 0
	pin := pinFunc(func() bool {
		reads++
		// pressed on every other poll only
		return reads%2 == 0
	})
	fired := false
	Watch(ctx, pin, 5*time.Millisecond, func() { fired = true })
	if fired {
		t.Error("glitching pin triggered a press")
	}
}

type pinFunc func() bool

func (f pinFunc) Pressed() bool { return f() }
