package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joelikes8/Random-bot/internal/policy"
)

const (
	ViaOverride = "override"
	ViaPrimary  = "primary"
	ViaFallback = "fallback"
	ViaRetry    = "retry"
)

// Resolution is the outcome of one successful Resolve call.
type Resolution struct {
	AccountID string
	Username  string
	Via       string
}

// Overridden reports whether the result came from the forced fallback
// instead of a real lookup.
func (r Resolution) Overridden() bool {
	return r.Via == ViaFallback
}

type Resolver struct {
	policy  policy.Policy
	lookups []Lookup
	clock   Clock
	logger  *zap.Logger
}

// NewResolver tries lookups in order: the first is the primary endpoint, the
// rest are fallbacks.
func NewResolver(p policy.Policy, lookups []Lookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{policy: p, lookups: lookups, clock: realClock{}, logger: logger}
}

func (r *Resolver) WithClock(clock Clock) {
	r.clock = clock
}

// Resolve turns a claimed username into an account id. It returns
// ErrNotFound once every path is exhausted; upstream failures never escape.
func (r *Resolver) Resolve(ctx context.Context, claimed string) (Resolution, error) {
	name := strings.TrimSpace(claimed)
	if name == "" {
		return Resolution{}, ErrNotFound
	}

	if known, ok := r.policy.MatchKnown(name); ok {
		return Resolution{AccountID: known.AccountID, Username: name, Via: ViaOverride}, nil
	}

	if r.policy.ForceUsernameOverride() {
		if closest, ok := r.policy.ClosestKnown(name); ok {
			r.logger.Warn("username resolution overridden",
				zap.String("event", EventPolicyOverride),
				zap.String("username", name),
				zap.String("account_id", closest.AccountID),
			)
			return Resolution{AccountID: closest.AccountID, Username: name, Via: ViaFallback}, nil
		}
	}

	attempts := r.policy.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := r.clock.Sleep(ctx, time.Duration(attempt-1)*time.Second); err != nil {
				break
			}
		}
		account, index, ok := r.tryLookups(ctx, name, attempt)
		if !ok {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		via := endpointVia(index)
		if attempt > 1 {
			via = ViaRetry
		}
		return Resolution{AccountID: account.ID, Username: account.Username, Via: via}, nil
	}

	if system, ok := r.policy.MatchSystem(name); ok {
		return Resolution{AccountID: system.AccountID, Username: name, Via: ViaOverride}, nil
	}
	return Resolution{}, ErrNotFound
}

func (r *Resolver) tryLookups(ctx context.Context, name string, attempt int) (accountMatch, int, bool) {
	for i, lookup := range r.lookups {
		callCtx, cancel := context.WithTimeout(ctx, r.policy.LookupTimeout())
		result, err := lookup.LookupUsername(callCtx, name)
		cancel()
		if err == nil && result.ID != "" {
			username := result.Username
			if username == "" {
				username = name
			}
			return accountMatch{ID: result.ID, Username: username}, i, true
		}
		r.logger.Debug("username lookup failed",
			zap.String("endpoint", lookup.Name()),
			zap.Int("attempt", attempt),
			zap.String("username", name),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return accountMatch{}, 0, false
		}
	}
	return accountMatch{}, 0, false
}

type accountMatch struct {
	ID       string
	Username string
}

func endpointVia(index int) string {
	if index == 0 {
		return ViaPrimary
	}
	return fmt.Sprintf("%s-%d", ViaFallback, index)
}
