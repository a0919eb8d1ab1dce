package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"netcamera/pkg/utils"
)

// Capturer takes one picture and returns the written path.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// Scheduler captures at a fixed interval until stopped. Ticks that arrive while a
// capture is still running are dropped by the ticker.
type Scheduler struct {
	t        *time.Ticker
	capturer Capturer
	interval time.Duration
	lock     sync.Mutex
	logger   *zap.SugaredLogger
}

func New(ctx context.Context, capturer Capturer) *Scheduler {
	t := time.NewTicker(time.Second)
	t.Stop()

	s := &Scheduler{
		t:        t,
		capturer: capturer,
		logger:   utils.GetLogger(),
	}
	s.startDeal(ctx)

	return s
}

func (s *Scheduler) Begin(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be > 0")
	}
	s.lock.Lock()
	s.interval = interval
	s.lock.Unlock()
	s.t.Reset(interval)
	s.logger.Infof("scheduler: capturing every %s", interval)

	return nil
}

func (s *Scheduler) Stop() {
	s.logger.Info("scheduler: stopped")
	s.t.Stop()
	s.lock.Lock()
	s.interval = 0
	s.lock.Unlock()
}

// Interval returns the current interval, zero when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.interval
}

func (s *Scheduler) startDeal(ctx context.Context) {
	go func(s *Scheduler) {
		for {
			select {
			case start := <-s.t.C:
				if s.Interval() == 0 {
					s.logger.Warn("scheduler: tick after stop")
					continue
				}
				s.logger.Debugf("scheduler: starting deal: %v", start)
				path, err := s.capturer.Capture(ctx)
				if err != nil {
					s.logger.Errorf("scheduler: capture err: %s", err)
					continue
				}
				s.logger.Infof("scheduler: took %s to save %s", time.Since(start), path)
			case <-ctx.Done():
				s.t.Stop()
				s.logger.Info("scheduler: stopped!")
				return
			}
		}
	}(s)
}
