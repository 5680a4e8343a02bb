package business

import (
	"context"
	"fmt"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/config"
	"github.com/antinvestor/service-login-consent/apps/default/service/repository"
	"github.com/pitabwire/util"
	"github.com/pkg/errors"
)

// ThrottlePolicy holds the limits applied to the failures of a single origin IP.
type ThrottlePolicy struct {
	AttemptThreshold int64
	AccountThreshold int64
	Cooldown         time.Duration
	Lookback         time.Duration
}

func ThrottlePolicyFromConfig(cfg *config.LoginConsentConfig) ThrottlePolicy {
	return ThrottlePolicy{
		AttemptThreshold: int64(cfg.FailedLoginAttemptThreshold),
		AccountThreshold: int64(cfg.FailedLoginAccountThreshold),
		Cooldown:         cfg.ThrottlingCooldown(),
		Lookback:         cfg.FailureLookback(),
	}
}

type ThrottleDecision struct {
	Throttled        bool
	FailedCount      int64
	AccountsAffected int64
	LastFailureAt    *time.Time
}

// ThrottleGuard decides from the attempt ledger whether an origin IP may attempt a login.
type ThrottleGuard struct {
	ledger repository.LoginAttemptRepository
	policy ThrottlePolicy
}

func NewThrottleGuard(ledger repository.LoginAttemptRepository, policy ThrottlePolicy) *ThrottleGuard {
	return &ThrottleGuard{
		ledger: ledger,
		policy: policy,
	}
}

// Evaluate throttles originIP when the failures or distinct accounts in the lookback window exceed their
// thresholds and the last failure happened within the cooldown. A ledger error fails closed.
func (g *ThrottleGuard) Evaluate(ctx context.Context, originIP string, now time.Time) (ThrottleDecision, error) {
	logger := util.Log(ctx).WithField("origin_ip", originIP)

	summary, err := g.ledger.SummarizeFailuresByIP(ctx, originIP, now.Add(-g.policy.Lookback))
	if err != nil {
		logger.WithError(err).Error("could not summarize failed login attempts")
		return ThrottleDecision{Throttled: true},
			errors.WithStack(fmt.Errorf("%w: %w: %w", ErrThrottleLookup, ErrCollaboratorUnavailable, err))
	}

	decision := ThrottleDecision{
		FailedCount:      summary.Failures(),
		AccountsAffected: summary.Accounts(),
	}
	if summary != nil {
		decision.LastFailureAt = summary.LastFailureAt
	}

	// Thresholds are the most failures tolerated: with a threshold of 10 the 11th failure throttles.
	overLimit := decision.FailedCount > g.policy.AttemptThreshold ||
		decision.AccountsAffected > g.policy.AccountThreshold
	if !overLimit || decision.LastFailureAt == nil {
		return decision, nil
	}

	decision.Throttled = !decision.LastFailureAt.Before(now.Add(-g.policy.Cooldown))
	if decision.Throttled {
		logger.WithFields(map[string]any{
			"failed_count":      decision.FailedCount,
			"accounts_affected": decision.AccountsAffected,
			"last_failure_at":   decision.LastFailureAt,
		}).Warn("origin ip is throttled")
	}

	return decision, nil
}
