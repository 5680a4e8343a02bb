package repository

import (
	"context"
	"errors"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/pitabwire/util"
	"gorm.io/gorm"
)

type userRepository struct {
	db DBProvider
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db DBProvider) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.DB(ctx, true).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	var user models.User
	err := r.db.DB(ctx, true).First(&user, "username = ? OR email = ?", username, email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetPermissions(ctx context.Context, userID string) ([]string, error) {
	var permissions []string
	err := r.db.DB(ctx, true).Model(&models.UserPermission{}).
		Where("user_id = ?", userID).
		Order("permission").
		Pluck("permission", &permissions).Error
	if err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = util.IDString()
		return r.db.DB(ctx, false).Create(user).Error
	}
	return r.db.DB(ctx, false).Save(user).Error
}

func (r *userRepository) SavePermission(ctx context.Context, permission *models.UserPermission) error {
	if permission.ID == "" {
		permission.ID = util.IDString()
	}
	return r.db.DB(ctx, false).Create(permission).Error
}
