package camera

import (
	"sync"
)

// loop runs posted functions one at a time, in posting order. Posting never blocks,
// so device callbacks may post from inside a call made by the loop itself.
type loop struct {
	lock   sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newLoop() *loop {
	return &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *loop) post(fn func()) bool {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.lock.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *loop) drain() []func() {
	l.lock.Lock()
	defer l.lock.Unlock()
	q := l.queue
	l.queue = nil
	return q
}

func (l *loop) close() {
	l.lock.Lock()
	l.closed = true
	l.queue = nil
	l.lock.Unlock()
}
