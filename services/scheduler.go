// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRefreshScheduler runs the same refresh cycle as the manual trigger on a
// fixed interval. Overlap with manual runs is harmless: the watermark makes a
// duplicate pass over the same window a no-op.
func (s *LeaderboardService) StartRefreshScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()

			outcome, err := s.Refresh(runCtx)
			if err != nil {
				log.Printf("❌ [Scheduler] Scheduled refresh failed: %v", err)
				return
			}
			log.Printf("⏰ [Scheduler] %s (%d users, %d assignments)",
				outcome.Message, outcome.Stats.TotalUsers, len(outcome.Stats.PointsAssignments))
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("⏰ Refresh scheduler started (every %s)", interval)
	return sched, nil
}
