// Package roblox talks to the public Roblox web APIs used during
// verification: username lookups, profile text and group membership.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/joelikes8/Random-bot/internal/config"
)

var (
	// ErrNoMatch means the endpoint answered but had no account for the input.
	ErrNoMatch = errors.New("roblox: no matching account")
	// ErrStatus wraps every non-200 response.
	ErrStatus = errors.New("roblox: unexpected status")
)

const (
	securityCookie = ".ROBLOSECURITY"
	userAgent      = "verifybot/1.0"
	maxErrorBody   = 4 << 10
)

// Account is a resolved Roblox user.
type Account struct {
	ID       string
	Username string
}

type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	usersURL  string
	legacyURL string
	groupsURL string
}

// NewClient builds a client whose requests share one rate limiter. The
// optional auth cookie is scoped to the users and groups hosts.
func NewClient(cfg config.RobloxConfig) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:      &http.Client{Jar: jar, Timeout: time.Minute},
		limiter:   newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		usersURL:  strings.TrimRight(cfg.UsersBaseURL, "/"),
		legacyURL: strings.TrimRight(cfg.LegacyBaseURL, "/"),
		groupsURL: strings.TrimRight(cfg.GroupsBaseURL, "/"),
	}

	if cfg.Cookie != "" {
		for _, base := range []string{c.usersURL, c.groupsURL} {
			u, err := url.Parse(base)
			if err != nil || u.Host == "" {
				return nil, fmt.Errorf("invalid roblox base url %q", base)
			}
			jar.SetCookies(u, []*http.Cookie{{Name: securityCookie, Value: cfg.Cookie, Path: "/"}})
		}
	}
	return c, nil
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// UsernamesLookup returns the primary lookup endpoint.
func (c *Client) UsernamesLookup() UsernamesLookup { return UsernamesLookup{client: c} }

// SearchLookup returns the user search endpoint, used as the first fallback.
func (c *Client) SearchLookup() SearchLookup { return SearchLookup{client: c} }

// LegacyLookup returns the legacy API endpoint, used as the last fallback.
func (c *Client) LegacyLookup() LegacyLookup { return LegacyLookup{client: c} }

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s returned %d", ErrStatus, method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", req.URL.Path, err)
	}
	return nil
}
