package roblox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelikes8/Random-bot/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler, cookie string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.RobloxConfig{
		UsersBaseURL:  server.URL,
		LegacyBaseURL: server.URL,
		GroupsBaseURL: server.URL,
		Cookie:        cookie,
	})
	require.NoError(t, err)
	return client
}

func TestUsernamesLookup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/usernames/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Usernames          []string `json:"usernames"`
			ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"realplayer123"}, body.Usernames)
		_, _ = w.Write([]byte(`{"data":[{"requestedUsername":"realplayer123","id":555,"name":"RealPlayer123"}]}`))
	})
	client := newTestClient(t, mux, "")

	got, err := client.UsernamesLookup().LookupUsername(context.Background(), "realplayer123")
	require.NoError(t, err)
	assert.Equal(t, Account{ID: "555", Username: "RealPlayer123"}, got)
}

func TestUsernamesLookupEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}), "")

	_, err := client.UsernamesLookup().LookupUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestLookupStatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}), "")

	_, err := client.SearchLookup().LookupUsername(context.Background(), "anyone")
	require.ErrorIs(t, err, ErrStatus)
}

func TestSearchLookupRequiresExactName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/search", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":7,"name":"RealPlayer1234"},{"id":555,"name":"RealPlayer123"}]}`))
	}), "")

	got, err := client.SearchLookup().LookupUsername(context.Background(), "REALPLAYER123")
	require.NoError(t, err)
	assert.Equal(t, "555", got.ID)

	_, err = client.SearchLookup().LookupUsername(context.Background(), "RealPlayer")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestLegacyLookup(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "builderman" {
			_, _ = w.Write([]byte(`{"Id":156,"Username":"builderman"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"errorMessage":"User not found"}`))
	}), "")

	got, err := client.LegacyLookup().LookupUsername(context.Background(), "builderman")
	require.NoError(t, err)
	assert.Equal(t, Account{ID: "156", Username: "builderman"}, got)

	_, err = client.LegacyLookup().LookupUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestFetchProfileSendsCookie(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/555", r.URL.Path)
		cookie, err := r.Cookie(securityCookie)
		if assert.NoError(t, err) {
			assert.Equal(t, "secret", cookie.Value)
		}
		_, _ = w.Write([]byte(`{"id":555,"name":"RealPlayer123","displayName":"Real","description":"code: AB12CD","isBanned":false}`))
	}), "secret")

	profile, err := client.FetchProfile(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, "code: AB12CD", profile.Description)
	assert.Equal(t, "Real", profile.DisplayName)
}

func TestInGroup(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/555/groups/roles", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"group":{"id":42,"name":"Fans"},"role":{"name":"Member","rank":1}}]}`))
	}), "")

	ok, err := client.InGroup(context.Background(), "555", "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.InGroup(context.Background(), "555", "43")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchProfile(ctx, "1")
	require.Error(t, err)
}
