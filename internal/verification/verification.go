// Package verification proves that a Discord user owns a Roblox account.
//
// A claimed username is resolved to an account id, a short code is issued and
// stored with the requester's binding, and confirmation later checks that
// the code appears in the account's public profile text. The environment
// policy decides timeouts, retries and the override paths used when the
// Roblox APIs are unreachable from the deployment.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/joelikes8/Random-bot/internal/roblox"
	"github.com/joelikes8/Random-bot/internal/storage"
)

var (
	// ErrNotFound is a user input error: no endpoint knows the claimed username.
	ErrNotFound = errors.New("verification: username not found")
	// ErrPersistence wraps storage failures. Callers ask the user to retry.
	ErrPersistence = errors.New("verification: persistence failure")
	// ErrNoBinding is returned by updates for requesters that never verified.
	ErrNoBinding = errors.New("verification: no binding for requester")
)

// Lookup resolves a username against one endpoint.
type Lookup interface {
	Name() string
	LookupUsername(ctx context.Context, name string) (roblox.Account, error)
}

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accountID string) (roblox.Profile, error)
}

type BindingStore interface {
	UpsertBinding(ctx context.Context, requesterID, accountID, username, code string) error
	GetBinding(ctx context.Context, requesterID string) (storage.Binding, error)
	MarkVerified(ctx context.Context, requesterID, code string, when time.Time) (storage.Binding, error)
}

type Auditor interface {
	Log(ctx context.Context, level, requesterID, event, details string)
}

// Clock lets tests record backoff delays instead of sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	EventRequested       = "verification_requested"
	EventNotFound        = "username_not_found"
	EventConfirmed       = "verification_confirmed"
	EventCodeNotFound    = "code_not_found"
	EventFetchFailed     = "account_fetch_failed"
	EventPolicyOverride  = "policy_override"
	EventPersistenceFail = "persistence_failure"
)
