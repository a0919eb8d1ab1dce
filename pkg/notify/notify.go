// Package notify delivers short user-facing notices, the service's equivalent of a toast.
package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Duration is how long a notice should stay on screen.
type Duration int

const (
	Short Duration = iota
	Long
)

func (d Duration) String() string {
	switch d {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return fmt.Sprintf("Duration(%d)", int(d))
	}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	switch string(text) {
	case "short":
		*d = Short
	case "long":
		*d = Long
	default:
		return fmt.Errorf("unknown notice duration %q", text)
	}
	return nil
}

type Notice struct {
	Text     string    `json:"text"`
	Duration Duration  `json:"duration"`
	Time     time.Time `json:"time"`
}

type Notifier interface {
	Notify(n Notice)
}

// Multi sends every notice to each notifier in order.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

type LogNotifier struct {
	Logger *zap.SugaredLogger
}

func (l LogNotifier) Notify(n Notice) {
	l.Logger.Infof("notice(%s): %s", n.Duration, n.Text)
}

// Recorder keeps the most recent notices.
type Recorder struct {
	lock    sync.Mutex
	limit   int
	notices []Notice
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 1
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(n Notice) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.notices = append(r.notices, n)
	if over := len(r.notices) - r.limit; over > 0 {
		r.notices = append(r.notices[:0:0], r.notices[over:]...)
	}
}

// Notices returns the recorded notices, oldest first.
func (r *Recorder) Notices() []Notice {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]Notice(nil), r.notices...)
}
