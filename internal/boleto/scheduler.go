package boleto

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

// Scheduler runs every reminder kind once a day at the configured local time.
type Scheduler struct {
	runner   Runner
	enabled  bool
	runAt    int
	loc      *time.Location
	interval time.Duration
	lastRun  string
	log      *zap.Logger
}

func NewScheduler(cfg *config.Config, runner Runner, log *zap.Logger) (*Scheduler, error) {
	runAt, err := cfg.Schedule.RunAtMinutes()
	if err != nil {
		return nil, &config.ConfigurationError{Field: "SCHEDULE_RUN_AT", Reason: err.Error()}
	}
	return &Scheduler{
		runner:   runner,
		enabled:  cfg.Schedule.Enabled,
		runAt:    runAt,
		loc:      cfg.Schedule.Location(),
		interval: time.Minute,
		log:      log.Named("boleto.scheduler"),
	}, nil
}

// Start ties the ticker to the fx lifecycle. It does nothing when disabled.
func (s *Scheduler) Start(lc fx.Lifecycle) {
	if !s.enabled {
		s.log.Info("in-process scheduler disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.log.Info("starting boleto scheduler", zap.Int("run_at_minutes", s.runAt), zap.String("tz", s.loc.String()))
			go func() {
				defer close(stopped)
				ctx := context.Background()
				for {
					select {
					case now := <-ticker.C:
						s.tick(ctx, now)
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("stopping boleto scheduler")
			ticker.Stop()
			close(done)
			select {
			case <-stopped:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// tick runs every kind once the local run time has passed, at most once per
// calendar day. It reports whether it ran.
func (s *Scheduler) tick(ctx context.Context, now time.Time) bool {
	local := now.In(s.loc)
	day := local.Format(time.DateOnly)
	if day == s.lastRun || local.Hour()*60+local.Minute() < s.runAt {
		return false
	}
	s.lastRun = day
	for _, kind := range Kinds() {
		res, err := s.runner.Run(ctx, kind.Offset())
		if err != nil {
			s.log.Error("scheduled run failed", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		s.log.Info("scheduled run done",
			zap.String("kind", string(kind)),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
		)
	}
	return true
}
