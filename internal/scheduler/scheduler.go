// Package scheduler repeats the scrape and merge cycle on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"robotregistry/internal/logging"
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is one scheduled cycle. Errors are logged, never fatal to the
// schedule.
type Job func(ctx context.Context) error

// Parse validates a schedule spec: five or six fields, or a descriptor such
// as "@hourly" or "@every 30m".
func Parse(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

type Scheduler struct {
	spec string
	job  Job
	loc  *time.Location
}

func New(spec string, job Job, loc *time.Location) (*Scheduler, error) {
	if _, err := Parse(spec); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{spec: spec, job: job, loc: loc}, nil
}

// Run executes the job on schedule until ctx is done, then waits for a
// running job to return. A tick that arrives while the previous job is
// still running is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	cl := cronLogger{log}

	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(s.spec, func() {
		start := time.Now()
		log.Info().Msg("Scheduled run starting")
		if err := s.job(ctx); err != nil {
			log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Scheduled run failed")
			return
		}
		log.Info().Dur("elapsed", time.Since(start)).Msg("Scheduled run finished")
	})
	if err != nil {
		return err
	}

	c.Start()
	log.Info().Str("schedule", s.spec).Time("next", c.Entry(id).Next).Msg("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("Scheduler stopped")
	return nil
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
