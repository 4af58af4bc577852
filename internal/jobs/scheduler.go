package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"bistro/auth/internal/config"
	"bistro/auth/internal/tasks"
)

// Scheduler triggers the session reaper on a cron schedule, either by
// sweeping in process or by handing a sweep task to the worker stream.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.ReaperConfig
	sweeper tasks.Sweeper
	queue   *redis.Client
	stream  string
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

func NewScheduler(
	cfg config.ReaperConfig,
	sweeper tasks.Sweeper,
	queue *redis.Client,
	stream string,
	timeout time.Duration,
	log zerolog.Logger,
) *Scheduler {
	log = log.With().Str("component", "scheduler").Str("mode", cfg.Mode).Logger()
	logger := cronLogger{log: log}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{
		cron:    c,
		cfg:     cfg,
		sweeper: sweeper,
		queue:   queue,
		stream:  stream,
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if s.cfg.Mode == config.ReaperModeQueue && s.queue == nil {
		return fmt.Errorf("reaper mode %q needs a redis client", s.cfg.Mode)
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.run); err != nil {
		return fmt.Errorf("schedule reaper %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out with a sweep still running")
	}
}

func (s *Scheduler) run() {
	if err := s.Trigger(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("scheduled sweep failed")
	}
}

// Trigger performs one scheduled tick.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if s.cfg.Mode == config.ReaperModeQueue {
		return s.enqueueSweep(ctx)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	_, err := s.sweeper.Sweep(ctx)
	return err
}

func (s *Scheduler) enqueueSweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: tasks.SweepTask(s.now()),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue sweep: %w", err)
	}
	s.log.Debug().Str("message_id", id).Msg("sweep enqueued")
	return nil
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
