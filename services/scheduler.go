// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type SchedulerConfig struct {
	ChallengeInterval time.Duration
	ArenaInterval     time.Duration
	ReconcileInterval time.Duration
}

type tickJob struct {
	name  string
	every time.Duration
	run   func(ctx context.Context) error
}

// StartTickScheduler runs the challenge tick, the arena tick and match reconciliation on
// independent intervals. Singleton mode drops a run while the previous one of the same
// job is still going. The caller shuts the scheduler down.
func StartTickScheduler(ctx context.Context, cfg SchedulerConfig, challenges *ChallengeService, tournaments *TournamentService, log *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	jobs := []tickJob{
		{name: "challenge-tick", every: cfg.ChallengeInterval, run: challenges.Tick},
		{name: "arena-tick", every: cfg.ArenaInterval, run: tournaments.RunArenaTick},
		{name: "match-reconcile", every: cfg.ReconcileInterval, run: tournaments.ReconcileMatches},
	}
	for _, job := range jobs {
		job := job
		if job.every <= 0 {
			log.Info("tick job disabled", zap.String("job", job.name))
			continue
		}
		_, err := sched.NewJob(
			gocron.DurationJob(job.every),
			gocron.NewTask(func() {
				if err := job.run(ctx); err != nil {
					log.Error("tick failed", zap.String("job", job.name), zap.Error(err))
				}
			}),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
		log.Info("tick job scheduled", zap.String("job", job.name), zap.Duration("every", job.every))
	}

	sched.Start()
	return sched, nil
}
