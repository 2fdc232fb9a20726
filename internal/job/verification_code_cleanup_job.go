package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CodePurger interface {
	PurgeExpired(ctx context.Context, before int64) (int64, error)
}

type VerificationCodeCleanupJob struct {
	purger CodePurger
	grace  time.Duration
	now    func() time.Time
}

// NewVerificationCodeCleanupJob removes codes that expired more than grace ago.
func NewVerificationCodeCleanupJob(purger CodePurger, grace time.Duration) *VerificationCodeCleanupJob {
	return &VerificationCodeCleanupJob{purger: purger, grace: grace, now: time.Now}
}

func (j *VerificationCodeCleanupJob) Name() string {
	return "verification_code_cleanup"
}

func (j *VerificationCodeCleanupJob) Run(ctx context.Context) error {
	if j.purger == nil {
		return nil
	}
	grace := j.grace
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	cutoff := j.now().Add(-grace).Unix()
	removed, err := j.purger.PurgeExpired(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired verification codes removed", zap.Int64("count", removed))
	}
	return nil
}
