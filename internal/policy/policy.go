// Package policy holds the process-wide environment policy that decides
// timeouts, retry counts and the test-identity override paths. A Policy is
// built once at startup and passed by value; it is never mutated afterwards.
package policy

import (
	"strings"
	"time"

	"github.com/joelikes8/Random-bot/internal/config"
)

const (
	standaloneTimeout   = 10 * time.Second
	restrictedTimeout   = 20 * time.Second
	standaloneAttempts  = 1
	restrictedAttempts  = 3
	maxRestrictedTries  = 5
	defaultTestIdentity = 0
)

// Identity is a username mapped to a fixed external account id.
type Identity struct {
	Username  string
	AccountID string
}

type Policy struct {
	restricted     bool
	forceOverride  bool
	timeout        time.Duration
	attempts       int
	identities     []Identity
	systemAccounts []Identity
}

// SystemAccounts are platform-owned accounts known to always exist. They are
// the last resort after every lookup attempt failed.
func SystemAccounts() []Identity {
	return []Identity{
		{Username: "roblox", AccountID: "1"},
		{Username: "builderman", AccountID: "156"},
	}
}

func New(cfg config.EnvironmentConfig) Policy {
	p := Policy{
		restricted:     cfg.RestrictedNetwork,
		forceOverride:  cfg.ForceUsernameOverride,
		timeout:        standaloneTimeout,
		attempts:       standaloneAttempts,
		systemAccounts: SystemAccounts(),
	}
	if p.restricted {
		p.timeout = restrictedTimeout
		p.attempts = restrictedAttempts
	}
	if cfg.LookupTimeoutSeconds > 0 {
		p.timeout = time.Duration(cfg.LookupTimeoutSeconds) * time.Second
	}
	if p.restricted && cfg.RetryCount > 0 {
		p.attempts = cfg.RetryCount
		if p.attempts > maxRestrictedTries {
			p.attempts = maxRestrictedTries
		}
	}

	source := cfg.KnownTestIdentities
	if len(source) == 0 {
		source = config.DefaultTestIdentities()
	}
	for _, item := range source {
		name := strings.ToLower(strings.TrimSpace(item.Username))
		if name == "" || item.AccountID == "" {
			continue
		}
		p.identities = append(p.identities, Identity{Username: name, AccountID: item.AccountID})
	}
	return p
}

func (p Policy) RestrictedNetwork() bool { return p.restricted }

func (p Policy) ForceUsernameOverride() bool { return p.forceOverride }

// LookupTimeout bounds a single network call.
func (p Policy) LookupTimeout() time.Duration { return p.timeout }

// Attempts is how many times the lookup chain runs. It is always 1 outside
// restricted networks.
func (p Policy) Attempts() int { return p.attempts }

// ProfileRetryDelay is the pause before the single profile re-fetch allowed
// on restricted networks.
func (p Policy) ProfileRetryDelay() time.Duration { return 2 * time.Second }

func (p Policy) Identities() []Identity {
	out := make([]Identity, len(p.identities))
	copy(out, p.identities)
	return out
}

// MatchKnown returns the test identity whose username equals name, ignoring case.
func (p Policy) MatchKnown(name string) (Identity, bool) {
	return match(p.identities, name)
}

// MatchSystem returns the platform system account named name, ignoring case.
func (p Policy) MatchSystem(name string) (Identity, bool) {
	return match(p.systemAccounts, name)
}

// ClosestKnown picks the first test identity whose username contains name or
// is contained in it. Without a match it returns the default test identity.
func (p Policy) ClosestKnown(name string) (Identity, bool) {
	if len(p.identities) == 0 {
		return Identity{}, false
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower != "" {
		for _, item := range p.identities {
			if strings.Contains(lower, item.Username) || strings.Contains(item.Username, lower) {
				return item, true
			}
		}
	}
	return p.identities[defaultTestIdentity], true
}

// IsKnownAccount reports whether accountID belongs to a test identity or a
// system account. Codes are never checked for those accounts.
func (p Policy) IsKnownAccount(accountID string) bool {
	if accountID == "" {
		return false
	}
	for _, item := range p.identities {
		if item.AccountID == accountID {
			return true
		}
	}
	for _, item := range p.systemAccounts {
		if item.AccountID == accountID {
			return true
		}
	}
	return false
}

func match(items []Identity, name string) (Identity, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return Identity{}, false
	}
	for _, item := range items {
		if item.Username == lower {
			return item, true
		}
	}
	return Identity{}, false
}
