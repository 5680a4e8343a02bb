package repository

import (
	"context"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/pitabwire/util"
	"gorm.io/gorm"
)

type loginAttemptRepository struct {
	db DBProvider
}

// NewLoginAttemptRepository creates a new instance of LoginAttemptRepository
func NewLoginAttemptRepository(db DBProvider) LoginAttemptRepository {
	return &loginAttemptRepository{
		db: db,
	}
}

func (r *loginAttemptRepository) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = util.IDString()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	return r.db.DB(ctx, false).Create(attempt).Error
}

func (r *loginAttemptRepository) SummarizeFailuresByIP(
	ctx context.Context, ip string, since time.Time) (*models.FailedAttemptsSummary, error) {

	// every query needs a fresh statement, gorm chains are not reusable after a finisher
	failures := func() *gorm.DB {
		return r.db.DB(ctx, true).Model(&models.LoginAttempt{}).
			Where("origin_ip = ? AND success = ? AND attempted_at > ?", ip, false, since)
	}

	var failedCount int64
	if err := failures().Count(&failedCount).Error; err != nil {
		return nil, err
	}

	summary := &models.FailedAttemptsSummary{}
	if failedCount == 0 {
		return summary, nil
	}

	var accounts int64
	if err := failures().Where("subject_id <> ''").Distinct("subject_id").Count(&accounts).Error; err != nil {
		return nil, err
	}

	var first, last models.LoginAttempt
	if err := failures().Order("attempted_at asc").Take(&first).Error; err != nil {
		return nil, err
	}
	if err := failures().Order("attempted_at desc").Take(&last).Error; err != nil {
		return nil, err
	}

	summary.FailedCount = &failedCount
	summary.AccountsAffected = &accounts
	summary.FirstFailureAt = &first.AttemptedAt
	summary.LastFailureAt = &last.AttemptedAt
	return summary, nil
}
