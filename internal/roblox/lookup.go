package roblox

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

type UsernamesLookup struct {
	client *Client
}

func (UsernamesLookup) Name() string { return "usernames" }

func (l UsernamesLookup) LookupUsername(ctx context.Context, name string) (Account, error) {
	body := map[string]any{
		"usernames":          []string{name},
		"excludeBannedUsers": false,
	}
	var resp struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := l.client.postJSON(ctx, l.client.usersURL+"/v1/usernames/users", body, &resp); err != nil {
		return Account{}, err
	}
	if len(resp.Data) == 0 || resp.Data[0].ID == 0 {
		return Account{}, ErrNoMatch
	}
	return account(resp.Data[0].ID, resp.Data[0].Name), nil
}

type SearchLookup struct {
	client *Client
}

func (SearchLookup) Name() string { return "search" }

// LookupUsername only accepts a search hit whose name equals the input,
// ignoring case. Partial hits are not matches.
func (l SearchLookup) LookupUsername(ctx context.Context, name string) (Account, error) {
	query := url.Values{}
	query.Set("keyword", name)
	query.Set("limit", "10")

	var resp struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := l.client.getJSON(ctx, l.client.usersURL+"/v1/users/search?"+query.Encode(), &resp); err != nil {
		return Account{}, err
	}
	for _, item := range resp.Data {
		if item.ID != 0 && strings.EqualFold(item.Name, name) {
			return account(item.ID, item.Name), nil
		}
	}
	return Account{}, ErrNoMatch
}

type LegacyLookup struct {
	client *Client
}

func (LegacyLookup) Name() string { return "legacy" }

func (l LegacyLookup) LookupUsername(ctx context.Context, name string) (Account, error) {
	query := url.Values{}
	query.Set("username", name)

	// unknown users still come back as 200 with an error body and no Id
	var resp struct {
		ID       int64  `json:"Id"`
		Username string `json:"Username"`
	}
	if err := l.client.getJSON(ctx, l.client.legacyURL+"/users/get-by-username?"+query.Encode(), &resp); err != nil {
		return Account{}, err
	}
	if resp.ID == 0 {
		return Account{}, ErrNoMatch
	}
	return account(resp.ID, resp.Username), nil
}

func account(id int64, username string) Account {
	return Account{ID: strconv.FormatInt(id, 10), Username: username}
}
