package repository

import (
	"context"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/pitabwire/util"
)

type banRepository struct {
	db DBProvider
}

// NewBanRepository creates a new instance of BanRepository
func NewBanRepository(db DBProvider) BanRepository {
	return &banRepository{
		db: db,
	}
}

func (r *banRepository) GetBySubject(ctx context.Context, subjectID string, level models.BanLevel) ([]*models.Ban, error) {
	var bans []*models.Ban

	query := r.db.DB(ctx, true).Where("subject_id = ?", subjectID)
	if level != models.BanLevelAny {
		query = query.Where("level = ?", level)
	}

	err := query.Order("created_at").Find(&bans).Error
	if err != nil {
		return nil, err
	}
	return bans, nil
}

func (r *banRepository) Save(ctx context.Context, ban *models.Ban) error {
	if ban.ID == "" {
		ban.ID = util.IDString()
		return r.db.DB(ctx, false).Create(ban).Error
	}
	return r.db.DB(ctx, false).Save(ban).Error
}
