package supervisor

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Doer describes an action to be done.
type Doer interface {
	Do() error
	Shutdown()
}

// MultiDoer is a slice of doers executed in turn.
type MultiDoer []Doer

// Do executes each doer in turn, returning the first error.
func (md MultiDoer) Do() error {
	for _, doer := range md {
		err := doer.Do()
		if err != nil {
			return err
		}
	}

	return nil
}

// Shutdown shuts down each doer in turn.
func (md MultiDoer) Shutdown() {
	for _, doer := range md {
		doer.Shutdown()
	}
}

// Scheduler runs a doer on a fixed period in the background and whenever it
// is poked. Runs are serial; a poke during a run schedules at most one more.
type Scheduler struct {
	doer   Doer
	period time.Duration
	logger log.FieldLogger

	run  chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a new scheduler and starts its background worker. A
// period of zero disables periodic runs, leaving only pokes.
func NewScheduler(doer Doer, period time.Duration, logger log.FieldLogger) *Scheduler {
	s := &Scheduler{
		doer:   doer,
		period: period,
		logger: logger,
		run:    make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go s.work()

	return s
}

// Do signals the scheduler to run the doer as soon as possible. It never
// blocks; the handler poking the scheduler must not wait on the work.
func (s *Scheduler) Do() error {
	select {
	case s.run <- struct{}{}:
	default:
	}

	return nil
}

// Shutdown stops the scheduler, waiting for a run in flight to finish.
func (s *Scheduler) Shutdown() {
	close(s.stop)
	<-s.done

	s.doer.Shutdown()
}

func (s *Scheduler) work() {
	defer close(s.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.period > 0 {
		ticker = time.NewTicker(s.period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
		case <-s.run:
		case <-s.stop:
			return
		}

		err := s.doer.Do()
		if err != nil {
			s.logger.WithError(err).Error("Scheduled doer failed")
		}
	}
}
