package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"pulseboard/internal/platform/logger"
	"pulseboard/internal/services/orchestrator/domain"
)

// DefaultSchedule runs nightly at 03:00 (six fields, seconds first)
const DefaultSchedule = "0 0 3 * * *"

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct{ l logger.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}

// Schedule registers a full run on spec; the caller starts and stops the returned cron
// overlapping ticks are skipped and panics inside a run are recovered
func (s *Svc) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	cl := cronLogger{l: s.log.With().Str("mod", "orchestrator").Logger()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Run(ctx, domain.RunRequest{}); err != nil {
			cl.Error(err, "scheduled run failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: bad schedule %q: %w", spec, err)
	}
	return c, nil
}
