package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeocodeBackfiller interface {
	BackfillGeocode(ctx context.Context, limit int) (int, error)
}

type GeocodeBackfillJob struct {
	backfiller GeocodeBackfiller
	batch      int
}

func NewGeocodeBackfillJob(backfiller GeocodeBackfiller, batch int) *GeocodeBackfillJob {
	return &GeocodeBackfillJob{backfiller: backfiller, batch: batch}
}

func (j *GeocodeBackfillJob) Name() string {
	return "geocode_backfill"
}

func (j *GeocodeBackfillJob) Run(ctx context.Context) error {
	if j.backfiller == nil {
		return nil
	}
	batch := j.batch
	if batch <= 0 {
		batch = 50
	}
	located, err := j.backfiller.BackfillGeocode(ctx, batch)
	if located > 0 {
		logutil.GetLogger(ctx).Info("listings geocoded", zap.Int("count", located))
	}
	return err
}
