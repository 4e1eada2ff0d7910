package verification

import (
	"context"
	"sync"
	"time"

	"github.com/joelikes8/Random-bot/internal/roblox"
)

type fakeLookup struct {
	name    string
	mu      sync.Mutex
	calls   int
	respond func(call int) (roblox.Account, error)
}

func (f *fakeLookup) Name() string { return f.name }

func (f *fakeLookup) LookupUsername(ctx context.Context, name string) (roblox.Account, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeLookup) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func missingLookup(name string) *fakeLookup {
	return &fakeLookup{name: name, respond: func(int) (roblox.Account, error) {
		return roblox.Account{}, roblox.ErrNoMatch
	}}
}

func foundLookup(name string, account roblox.Account) *fakeLookup {
	return &fakeLookup{name: name, respond: func(int) (roblox.Account, error) {
		return account, nil
	}}
}

type fakeProfiles struct {
	mu          sync.Mutex
	calls       int
	failures    int
	description string
	// onFetch runs before each fetch returns, outside the lock.
	onFetch func()
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, accountID string) (roblox.Profile, error) {
	f.mu.Lock()
	f.calls++
	call, failures, description, onFetch := f.calls, f.failures, f.description, f.onFetch
	f.mu.Unlock()

	if onFetch != nil {
		onFetch()
	}
	if call <= failures {
		return roblox.Profile{}, roblox.ErrStatus
	}
	return roblox.Profile{ID: accountID, Description: description}, nil
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type auditEntry struct {
	level       string
	requesterID string
	event       string
	details     string
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAuditor) Log(ctx context.Context, level, requesterID, event, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{level: level, requesterID: requesterID, event: event, details: details})
}

func (r *recordingAuditor) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		events = append(events, entry.event)
	}
	return events
}
