package verification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/joelikes8/Random-bot/internal/policy"
	"github.com/joelikes8/Random-bot/internal/storage"
)

type Outcome int

const (
	OutcomeVerified Outcome = iota + 1
	OutcomeCodeNotFound
	OutcomeAccountFetchFailed
	OutcomeNoPendingBinding
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeCodeNotFound:
		return "code_not_found"
	case OutcomeAccountFetchFailed:
		return "account_fetch_failed"
	case OutcomeNoPendingBinding:
		return "no_pending_binding"
	default:
		return "unknown"
	}
}

const (
	ConfirmedByKnownAccount = "known_account"
	ConfirmedByOverride     = "override"
	ConfirmedByProfile      = "profile"
)

type Confirmation struct {
	Outcome Outcome
	// Via says which branch produced a Verified outcome.
	Via string
}

// Overridden reports whether the code check was skipped.
func (c Confirmation) Overridden() bool {
	return c.Via == ConfirmedByKnownAccount || c.Via == ConfirmedByOverride
}

type Confirmer struct {
	policy   policy.Policy
	profiles ProfileFetcher
	clock    Clock
	logger   *zap.Logger
}

func NewConfirmer(p policy.Policy, profiles ProfileFetcher, logger *zap.Logger) *Confirmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{policy: p, profiles: profiles, clock: realClock{}, logger: logger}
}

func (c *Confirmer) WithClock(clock Clock) {
	c.clock = clock
}

// Confirm decides the outcome for a pending binding. It never writes; the
// caller persists a Verified result.
func (c *Confirmer) Confirm(ctx context.Context, binding storage.Binding) Confirmation {
	if binding.IssuedCode == "" {
		return Confirmation{Outcome: OutcomeNoPendingBinding}
	}
	if c.policy.IsKnownAccount(binding.ExternalAccountID) {
		return Confirmation{Outcome: OutcomeVerified, Via: ConfirmedByKnownAccount}
	}
	if c.policy.ForceUsernameOverride() {
		return Confirmation{Outcome: OutcomeVerified, Via: ConfirmedByOverride}
	}

	description, ok := c.fetchDescription(ctx, binding.ExternalAccountID)
	if !ok {
		return Confirmation{Outcome: OutcomeAccountFetchFailed}
	}
	// exact and case-sensitive
	if strings.Contains(description, binding.IssuedCode) {
		return Confirmation{Outcome: OutcomeVerified, Via: ConfirmedByProfile}
	}
	return Confirmation{Outcome: OutcomeCodeNotFound}
}

func (c *Confirmer) fetchDescription(ctx context.Context, accountID string) (string, bool) {
	attempts := 1
	if c.policy.RestrictedNetwork() {
		attempts = 2
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := c.clock.Sleep(ctx, c.policy.ProfileRetryDelay()); err != nil {
				return "", false
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.policy.LookupTimeout())
		profile, err := c.profiles.FetchProfile(callCtx, accountID)
		cancel()
		if err == nil {
			return profile.Description, true
		}
		c.logger.Debug("profile fetch failed",
			zap.String("account_id", accountID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return "", false
}
