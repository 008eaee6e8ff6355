package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tartampluch/go-uster-waste/internal/config"
)

// ParseSchedule returns the cron schedule for spec, or "@every interval" when
// spec is empty. Standard five-field expressions and descriptors are accepted.
func ParseSchedule(spec string, interval time.Duration) (cron.Schedule, error) {
	if spec == "" {
		if interval <= 0 {
			return nil, fmt.Errorf("%s: %s", config.ErrSchedule, config.ErrInterval)
		}
		spec = fmt.Sprintf(config.FormatEverySchedule, interval)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrSchedule, err)
	}
	return sched, nil
}

// Scheduler triggers Refresh on every registered coordinator.
type Scheduler struct {
	registry *Registry
	schedule cron.Schedule
	spec     string

	mu      sync.Mutex
	cron    *cron.Cron
	stop    chan struct{}
	running bool
}

// NewScheduler builds a scheduler for the registry. See ParseSchedule for spec.
func NewScheduler(registry *Registry, spec string, interval time.Duration) (*Scheduler, error) {
	sched, err := ParseSchedule(spec, interval)
	if err != nil {
		return nil, err
	}
	if spec == "" {
		spec = fmt.Sprintf(config.FormatEverySchedule, interval)
	}
	return &Scheduler{registry: registry, schedule: sched, spec: spec}, nil
}

// Start runs an initial refresh in the background, then refreshes on the
// schedule until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(config.ErrSchedulerRunning)
	}

	logger := cronLogger{log: slog.With(config.LogKeyComponent, config.CompScheduler)}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		logger.log.Info(config.MsgScheduledRun)
		s.refreshAll(ctx)
	}))
	s.cron.Start()
	s.stop = make(chan struct{})
	s.running = true

	logger.log.Info(config.MsgSchedulerStart,
		config.LogKeySchedule, s.spec,
		config.LogKeyNextRun, s.Next(time.Now()),
		config.LogKeyCount, len(s.registry.List()),
	)

	go s.refreshAll(ctx)
	go func(run chan struct{}) {
		select {
		case <-ctx.Done():
			s.halt(run)
		case <-run:
		}
	}(s.stop)
	return nil
}

// Stop halts the schedule and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.halt(nil)
}

// halt stops the current run. A non-nil run only stops the run it identifies,
// so a cancelled context cannot stop a later Start.
func (s *Scheduler) halt(run chan struct{}) {
	s.mu.Lock()
	if !s.running || (run != nil && run != s.stop) {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	close(s.stop)
	s.mu.Unlock()

	slog.Info(config.MsgSchedulerStop, config.LogKeyComponent, config.CompScheduler)
	<-c.Stop().Done()
}

// Next reports the next planned run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s *Scheduler) refreshAll(ctx context.Context) {
	// Failures are already logged per location by the coordinators.
	_, _ = s.registry.RefreshAll(ctx, false)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, config.LogKeyError, err)...)
}
