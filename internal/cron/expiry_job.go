package cron

import (
	"context"
	"fmt"

	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
)

const (
	ListingExpiryJobName = "listing-expiry"

	defaultSweepBatch = 500
	maxSweepRounds    = 20
)

// Expirer marks overdue available listings as expired, at most limit hosted
// rows per call, and reports how many changed.
type Expirer interface {
	ExpireListings(ctx context.Context, limit int) (int, error)
}

type ListingExpiryJobParams struct {
	Expirer Expirer
	Logger  *logger.Logger
	Metrics *metrics.CronJobMetrics
	Batch   int
}

// ListingExpiryJob sweeps in batches until a round comes back short.
type ListingExpiryJob struct {
	expirer Expirer
	logg    *logger.Logger
	metrics *metrics.CronJobMetrics
	batch   int
}

func NewListingExpiryJob(p ListingExpiryJobParams) (*ListingExpiryJob, error) {
	if p.Expirer == nil {
		return nil, fmt.Errorf("expirer required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := p.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &ListingExpiryJob{expirer: p.Expirer, logg: p.Logger, metrics: p.Metrics, batch: batch}, nil
}

func (j *ListingExpiryJob) Name() string { return ListingExpiryJobName }

func (j *ListingExpiryJob) Run(ctx context.Context) error {
	total := 0
	for round := 0; round < maxSweepRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.expirer.ExpireListings(ctx, j.batch)
		total += n
		j.metrics.AddExpired(n)
		if err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "expired", total), "cron.listing_expiry_partial")
			return err
		}
		if n < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "cron.listing_expiry_done")
	return nil
}
