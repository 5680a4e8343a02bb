package business

import (
	"context"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/antinvestor/service-login-consent/apps/default/service/repository"
	"github.com/pitabwire/util"
)

// BanDecision is blocked while the subject holds an active GLOBAL ban. A nil Until on a blocked
// decision means the ban never expires.
type BanDecision struct {
	Blocked bool
	Until   *time.Time
	Reason  string
}

func (d BanDecision) Permanent() bool {
	return d.Blocked && d.Until == nil
}

type BanEvaluator struct {
	ledger repository.BanRepository
}

func NewBanEvaluator(ledger repository.BanRepository) *BanEvaluator {
	return &BanEvaluator{ledger: ledger}
}

// Evaluate loads every ban of the subject and keeps only the active GLOBAL ones.
func (e *BanEvaluator) Evaluate(ctx context.Context, subjectID string, asOf time.Time) (BanDecision, error) {
	bans, err := e.ledger.GetBySubject(ctx, subjectID, models.BanLevelAny)
	if err != nil {
		return BanDecision{}, collaboratorError("ban lookup", err)
	}

	var decision BanDecision
	for _, ban := range bans {
		if ban == nil || ban.Level != models.BanLevelGlobal || !ban.IsActive(asOf) {
			continue
		}

		switch {
		case !decision.Blocked:
			decision = BanDecision{Blocked: true, Until: ban.ExpiresAt, Reason: ban.Reason}
		case decision.Until == nil:
			// already permanent
		case ban.ExpiresAt == nil || ban.ExpiresAt.After(*decision.Until):
			decision.Until = ban.ExpiresAt
			decision.Reason = ban.Reason
		}
	}

	if decision.Blocked {
		util.Log(ctx).WithFields(map[string]any{
			"subject_id": subjectID,
			"until":      decision.Until,
			"permanent":  decision.Permanent(),
		}).Warn("subject holds an active global ban")
	}

	return decision, nil
}
