package repository

import (
	"context"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"gorm.io/gorm"
)

// DBProvider hands out gorm sessions for reads (replica) and writes (primary). *frame.Service satisfies it.
type DBProvider interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB
}

// UserRepository handles database operations for User entities and their permissions
type UserRepository interface {
	// GetByID retrieves a user by ID, nil when no such user exists
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByUsernameOrEmail retrieves the user whose username or email matches, nil when none does
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	// GetPermissions lists the technical names of the permissions granted to a user
	GetPermissions(ctx context.Context, userID string) ([]string, error)
	// Save creates or updates a user record
	Save(ctx context.Context, user *models.User) error
	// SavePermission grants a permission to a user
	SavePermission(ctx context.Context, permission *models.UserPermission) error
}

// BanRepository handles database operations for Ban entities
type BanRepository interface {
	// GetBySubject lists active and inactive bans of a subject, models.BanLevelAny skips the level filter
	GetBySubject(ctx context.Context, subjectID string, level models.BanLevel) ([]*models.Ban, error)
	// Save creates or updates a ban record
	Save(ctx context.Context, ban *models.Ban) error
}

// LoginAttemptRepository is the append only log of login attempts
type LoginAttemptRepository interface {
	// Append stores a new login attempt
	Append(ctx context.Context, attempt *models.LoginAttempt) error
	// SummarizeFailuresByIP aggregates failed attempts from ip made after since
	SummarizeFailuresByIP(ctx context.Context, ip string, since time.Time) (*models.FailedAttemptsSummary, error)
}
