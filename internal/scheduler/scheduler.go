package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"garageBooking/pkg/logger"

	"github.com/robfig/cron/v3"
)

// PaymentExpirer sweeps stale checkouts and lapsed subscriptions.
type PaymentExpirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

const jobTimeout = 2 * time.Minute

type Scheduler struct {
	cron     *cron.Cron
	payments PaymentExpirer
	schedule string
}

func NewScheduler(payments PaymentExpirer, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Get().Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:     c,
		payments: payments,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.expirePayments); err != nil {
		return fmt.Errorf("schedule payment-expiry job: %w", err)
	}
	logger.Info("scheduled payment-expiry job", "schedule", s.schedule)

	s.cron.Start()
	return nil
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logger.Warn("scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) expirePayments() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	expired, err := s.payments.ExpireLapsed(ctx)
	if err != nil {
		logger.Error("payment-expiry job failed", "error", err, "expired", expired)
		return
	}
	logger.Info("payment-expiry job finished", "expired", expired, "duration", time.Since(start).String())
}
