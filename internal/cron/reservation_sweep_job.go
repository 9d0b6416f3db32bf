package cron

import (
	"context"
	"fmt"

	"github.com/mosaicmart/backoffice/pkg/logger"
	"github.com/mosaicmart/backoffice/pkg/metrics"
)

const (
	sweepJobName          = "reservation_sweep"
	defaultSweepBatchSize = 100
)

type expiredReleaser interface {
	ReleaseExpired(ctx context.Context, batchSize int) (int, error)
}

// ReservationSweepJob releases reservations whose TTL elapsed without a
// user action. It drains in batches so a large backlog after downtime
// still clears in one cycle.
type ReservationSweepJob struct {
	reservations expiredReleaser
	metrics      *metrics.SweepMetrics
	logg         *logger.Logger
	batchSize    int
}

// NewReservationSweepJob builds the sweep job.
func NewReservationSweepJob(reservations expiredReleaser, sweepMetrics *metrics.SweepMetrics, logg *logger.Logger, batchSize int) (*ReservationSweepJob, error) {
	if reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &ReservationSweepJob{
		reservations: reservations,
		metrics:      sweepMetrics,
		logg:         logg,
		batchSize:    batchSize,
	}, nil
}

func (j *ReservationSweepJob) Name() string {
	return sweepJobName
}

func (j *ReservationSweepJob) Run(ctx context.Context) error {
	total := 0
	for {
		released, err := j.reservations.ReleaseExpired(ctx, j.batchSize)
		total += released
		j.metrics.AddSwept(released)
		if err != nil {
			j.logg.Error(j.logg.WithField(ctx, "released", total), "reservation sweep aborted", err)
			return err
		}
		if released < j.batchSize {
			break
		}
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "released", total), "released expired reservations")
	}
	return nil
}
