package roblox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Profile is the public part of a user page. Description is the free text
// where users paste their verification code.
type Profile struct {
	ID          string
	Name        string
	DisplayName string
	Description string
	Created     time.Time
	IsBanned    bool
}

type Group struct {
	ID   string
	Name string
	Role string
	Rank int
}

func (c *Client) FetchProfile(ctx context.Context, accountID string) (Profile, error) {
	var resp struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		DisplayName string    `json:"displayName"`
		Description string    `json:"description"`
		Created     time.Time `json:"created"`
		IsBanned    bool      `json:"isBanned"`
	}
	endpoint := fmt.Sprintf("%s/v1/users/%s", c.usersURL, url.PathEscape(accountID))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return Profile{}, err
	}
	if resp.ID == 0 {
		return Profile{}, ErrNoMatch
	}
	return Profile{
		ID:          strconv.FormatInt(resp.ID, 10),
		Name:        resp.Name,
		DisplayName: resp.DisplayName,
		Description: resp.Description,
		Created:     resp.Created,
		IsBanned:    resp.IsBanned,
	}, nil
}

func (c *Client) UserGroups(ctx context.Context, accountID string) ([]Group, error) {
	var resp struct {
		Data []struct {
			Group struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"group"`
			Role struct {
				Name string `json:"name"`
				Rank int    `json:"rank"`
			} `json:"role"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/v1/users/%s/groups/roles", c.groupsURL, url.PathEscape(accountID))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(resp.Data))
	for _, item := range resp.Data {
		groups = append(groups, Group{
			ID:   strconv.FormatInt(item.Group.ID, 10),
			Name: item.Group.Name,
			Role: item.Role.Name,
			Rank: item.Role.Rank,
		})
	}
	return groups, nil
}

// InGroup reports whether the account is a member of groupID.
func (c *Client) InGroup(ctx context.Context, accountID, groupID string) (bool, error) {
	groups, err := c.UserGroups(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, group := range groups {
		if group.ID == groupID {
			return true, nil
		}
	}
	return false, nil
}
