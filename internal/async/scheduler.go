package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// RunFunc performs one ingestion run.
type RunFunc func(ctx context.Context) entity.RunResult

// Scheduler runs RunFunc on an interval and on demand, never two at once.
// A trigger that arrives while a run is in flight is dropped.
type Scheduler struct {
	run      RunFunc
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	onStart  bool
	onResult func(entity.RunResult)

	running sync.Mutex
	trigger chan string
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
	last   *entity.RunResult
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithRunOnStart(b bool) Option {
	return func(s *Scheduler) { s.onStart = b }
}

// WithOnResult registers a hook called after every completed run.
func WithOnResult(fn func(entity.RunResult)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

func NewScheduler(run RunFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		run:      run,
		logger:   logger,
		interval: 15 * time.Minute,
		timeout:  30 * time.Minute,
		trigger:  make(chan string, 1),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the polling loop. Calling it more than once has no effect.
func (s *Scheduler) Start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go s.loop()
	})
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	s.logger.Info("scheduler.started", "interval", s.interval.String(), "run_on_start", s.onStart)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.onStart {
		s.RunNow(context.Background(), "startup")
	}
	for {
		select {
		case <-s.stop:
			s.logger.Info("scheduler.stopped")
			return
		case <-ticker.C:
			s.RunNow(context.Background(), "interval")
		case reason := <-s.trigger:
			s.RunNow(context.Background(), reason)
		}
	}
}

// Trigger asks the loop for a run soon. It never blocks; a trigger already
// queued absorbs later ones.
func (s *Scheduler) Trigger(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("scheduler.trigger.closed", "reason", reason)
		return
	}
	select {
	case s.trigger <- reason:
		s.logger.Debug("scheduler.trigger.queued", "reason", reason)
	default:
		s.logger.Debug("scheduler.trigger.coalesced", "reason", reason)
	}
}

// RunNow runs synchronously unless a run is already in flight, in which case
// it returns false without running.
func (s *Scheduler) RunNow(ctx context.Context, reason string) (entity.RunResult, bool) {
	if !s.running.TryLock() {
		s.logger.Warn("scheduler.run.skipped", "reason", reason, "cause", "run in progress")
		return entity.RunResult{}, false
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("scheduler.run.begin", "reason", reason)
	res := s.run(ctx)

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if s.onResult != nil {
		s.onResult(res)
	}
	return res, true
}

// Last returns the most recent run result, if any.
func (s *Scheduler) Last() (entity.RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return entity.RunResult{}, false
	}
	return *s.last, true
}

// Shutdown stops the loop and waits for an in-flight run up to ctx.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
		// wait out a RunNow issued from outside the loop
		s.running.Lock()
		s.running.Unlock()
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("scheduler.shutdown.interrupted")
	case <-done:
		s.logger.Info("scheduler.shutdown.ok")
	}
}
