package models

import (
	"time"

	"github.com/pitabwire/frame"
	"gorm.io/datatypes"
)

type User struct {
	frame.BaseModel
	Username         string  `gorm:"type:varchar(100);uniqueIndex" json:"username"`
	Email            string  `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	PasswordHash     string  `gorm:"type:varchar(255)"             json:"-"`
	SteamID          *string `gorm:"type:varchar(50)"              json:"steam_id,omitempty"`
	GogID            *string `gorm:"type:varchar(100)"             json:"gog_id,omitempty"`
	FailedLoginCount int     `json:"-"`
}

// HasLinkedPlatform reports whether a steam or gog account is attached to the user.
func (u *User) HasLinkedPlatform() bool {
	return (u.SteamID != nil && *u.SteamID != "") || (u.GogID != nil && *u.GogID != "")
}

type UserPermission struct {
	frame.BaseModel
	UserID     string `gorm:"type:varchar(50);index"`
	Permission string `gorm:"type:varchar(100)"`
}

type BanLevel string

const (
	BanLevelAny    BanLevel = ""
	BanLevelChat   BanLevel = "CHAT"
	BanLevelGlobal BanLevel = "GLOBAL"
)

type Ban struct {
	frame.BaseModel
	SubjectID    string   `gorm:"type:varchar(50);index"`
	IssuerID     string   `gorm:"type:varchar(50)"`
	Level        BanLevel `gorm:"type:varchar(20)"`
	Reason       string   `gorm:"type:text"`
	ExpiresAt    *time.Time
	RevokedAt    *time.Time
	RevokedBy    string `gorm:"type:varchar(50)"`
	RevokeReason string `gorm:"type:text"`
}

// IsActive is true while the ban has neither expired nor been revoked. A nil ExpiresAt never expires.
func (b *Ban) IsActive(asOf time.Time) bool {
	if b.RevokedAt != nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(asOf)
}

type AttemptOutcome string

const (
	AttemptOutcomeSuccess      AttemptOutcome = "success"
	AttemptOutcomeThrottled    AttemptOutcome = "throttled"
	AttemptOutcomeUnknownUser  AttemptOutcome = "unknown_user"
	AttemptOutcomeBadPassword  AttemptOutcome = "bad_password"
	AttemptOutcomeBanned       AttemptOutcome = "banned"
	AttemptOutcomeLinkRequired AttemptOutcome = "link_required"
)

// LoginAttempt is append only. SubjectID stays empty when no account could be resolved.
type LoginAttempt struct {
	frame.BaseModel
	SubjectID   string         `gorm:"type:varchar(50);index"`
	OriginIP    string         `gorm:"type:varchar(64);index"`
	AttemptedAt time.Time      `gorm:"index"`
	Success     bool           `gorm:"index"`
	Outcome     AttemptOutcome `gorm:"type:varchar(30)"`
	Properties  datatypes.JSONMap
}

// FailedAttemptsSummary aggregates the failed attempts of one origin IP. Every field is nil when nothing failed.
type FailedAttemptsSummary struct {
	FailedCount      *int64
	AccountsAffected *int64
	FirstFailureAt   *time.Time
	LastFailureAt    *time.Time
}

func (s *FailedAttemptsSummary) Failures() int64 {
	if s == nil || s.FailedCount == nil {
		return 0
	}
	return *s.FailedCount
}

func (s *FailedAttemptsSummary) Accounts() int64 {
	if s == nil || s.AccountsAffected == nil {
		return 0
	}
	return *s.AccountsAffected
}

// Challenge is the part of a hydra login or consent request the resolver works with.
type Challenge struct {
	ID                string   `json:"challenge"`
	ClientID          string   `json:"client_id"`
	RequestURL        string   `json:"request_url"`
	RequestedAudience []string `json:"requested_access_token_audience"`
	RequestedScopes   []string `json:"requested_scope"`
	Subject           string   `json:"subject"`
	Skip              bool     `json:"skip"`
}

func (c *Challenge) RequestsScope(scope string) bool {
	for _, s := range c.RequestedScopes {
		if s == scope {
			return true
		}
	}
	return false
}
