package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a sweep every 300 000 ms.
const DefaultSchedule = "@every 5m"

var ErrRunning = errors.New("sweeper already running")

// Job is one periodic maintenance task.
type Job func(ctx context.Context) error

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts standard cron fields with optional seconds and
// descriptors such as "@every 5m".
func ParseSchedule(expression string) (cron.Schedule, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, errors.New("cron expression cannot be empty")
	}

	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	return schedule, nil
}

// Sweeper runs a Job on a cron schedule until stopped or until the context
// given to Start ends. Each Start gets its own cron engine, so a stopped
// sweeper can be started again.
type Sweeper struct {
	name       string
	expression string
	schedule   cron.Schedule
	job        Job
	logger     *slog.Logger
	timeout    time.Duration
	runs       atomic.Int64

	mu     sync.Mutex
	engine *cron.Cron
	cancel context.CancelFunc
	exited chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJobTimeout bounds each run of the job.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Sweeper) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func New(name, expression string, job Job, opts ...Option) (*Sweeper, error) {
	if job == nil {
		return nil, errors.New("job cannot be nil")
	}

	schedule, err := ParseSchedule(expression)
	if err != nil {
		return nil, err
	}

	s := &Sweeper{
		name:       name,
		expression: expression,
		schedule:   schedule,
		job:        job,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start schedules the job. Running jobs receive a context that is cancelled
// by Stop or by ctx.
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("sweeper is nil")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return ErrRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	engine := cron.New(cron.WithParser(parser))
	engine.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.Run(runCtx); err != nil {
			s.logger.Error("sweep failed", "sweeper", s.name, "error", err)
		}
	}))
	engine.Start()

	exited := make(chan struct{})
	s.engine, s.cancel, s.exited = engine, cancel, exited

	go func() {
		defer close(exited)

		<-runCtx.Done()
		<-engine.Stop().Done()

		s.mu.Lock()
		if s.engine == engine {
			s.engine = nil
		}
		s.mu.Unlock()

		s.logger.Debug("sweeper stopped", "sweeper", s.name)
	}()

	s.logger.Debug("sweeper started", "sweeper", s.name, "schedule", s.expression)

	return nil
}

// Stop cancels the schedule and waits for an in-flight run to return. Calling
// it on a stopped sweeper does nothing.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.engine == nil {
		s.mu.Unlock()
		return
	}
	cancel, exited := s.cancel, s.exited
	s.mu.Unlock()

	cancel()
	<-exited
}

func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine != nil
}

// Runs counts how many times the job has been invoked.
func (s *Sweeper) Runs() int64 {
	return s.runs.Load()
}

// Run executes the job once, synchronously.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("sweeper is nil")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.runs.Add(1)

	return s.job(ctx)
}
