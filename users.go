package bird

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go-bird/features"
)

// currentUserURLs are tried in order until one yields an id and username.
var currentUserURLs = []string{
	"https://x.com/i/api/account/settings.json",
	legacyRESTBase + "/account/settings.json",
	"https://x.com/i/api/account/verify_credentials.json?skip_status=true&include_entities=false",
	legacyRESTBase + "/account/verify_credentials.json?skip_status=true&include_entities=false",
}

var (
	settingsScreenNameRe = regexp.MustCompile(`"screen_name":"([^"]+)"`)
	settingsUserIDRe     = regexp.MustCompile(`"user_id"\s*:\s*"(\d+)"`)
	settingsNameRe       = regexp.MustCompile(`"name":"([^"\\]*(?:\\.[^"\\]*)*)"`)
)

const opCurrentUser = "CurrentUser"

type userService struct{ c *core }

// CurrentUser returns the account behind the session. The result is cached
// for the life of the client.
func (s userService) CurrentUser(ctx context.Context) (*CurrentUser, error) {
	return s.c.currentUser(ctx)
}

func (c *core) currentUser(ctx context.Context) (*CurrentUser, error) {
	c.mu.Lock()
	me := c.me
	c.mu.Unlock()
	if me != nil {
		return me, nil
	}

	var lastErr error
	for _, u := range currentUserURLs {
		resp, err := c.do(ctx, request{operation: opCurrentUser, method: "GET", url: u})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.status >= 400 {
			lastErr = httpError(opCurrentUser, resp)
			continue
		}
		me = parseCurrentUser(resp.body)
		if me == nil {
			lastErr = fmt.Errorf("%s: failed to parse current user", opCurrentUser)
			continue
		}
		c.mu.Lock()
		c.me = me
		c.userID = me.ID
		c.mu.Unlock()
		return me, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: %w", opCurrentUser, ErrNotFound)
	}
	return nil, lastErr
}

// parseCurrentUser reads the settings or verify_credentials payload, with
// regex fallbacks for bodies that are not plain JSON objects.
func parseCurrentUser(body []byte) *CurrentUser {
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	_ = dec.Decode(&data)

	screenName := jsonString(data["screen_name"])
	name := jsonString(data["name"])
	id := firstNonEmpty(jsonString(data["user_id"]), jsonString(data["id"]), jsonString(data["id_str"]))

	text := string(body)
	if screenName == "" {
		if m := settingsScreenNameRe.FindStringSubmatch(text); m != nil {
			screenName = m[1]
		}
	}
	if id == "" {
		if m := settingsUserIDRe.FindStringSubmatch(text); m != nil {
			id = m[1]
		}
	}
	if name == "" {
		if m := settingsNameRe.FindStringSubmatch(text); m != nil {
			name = m[1]
		}
	}
	if screenName == "" || id == "" {
		return nil
	}
	return &CurrentUser{ID: id, Username: screenName, Name: firstNonEmpty(name, screenName)}
}

// jsonString renders a decoded string or number; other values yield "".
func jsonString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return ""
}

// UserByScreenName fetches a profile by handle. A leading @ is ignored.
func (s userService) UserByScreenName(ctx context.Context, handle string) (*User, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	user, err := fetch(ctx, s.c, endpoint[*User]{
		operation: OpUserByScreenName,
		variables: []map[string]any{{
			"screen_name":              handle,
			"withSafetyModeUserFields": true,
		}},
		features: s.c.cfg.Features.Build(features.SetFollowing),
		decode: func(body []byte) (*User, error) {
			var raw struct {
				Data struct {
					User struct {
						Result *userNode `json:"result"`
					} `json:"user"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, err
			}
			return mapUser(raw.Data.User.Result), nil
		},
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%s %q: %w", OpUserByScreenName, handle, ErrNotFound)
	}
	return user, nil
}

// Following pages through the accounts userID follows.
func (s userService) Following(ctx context.Context, userID string, opts PageOptions) (*Page[*User], error) {
	return s.followGraph(ctx, OpFollowing, "friends", userID, opts)
}

// Followers pages through the accounts following userID.
func (s userService) Followers(ctx context.Context, userID string, opts PageOptions) (*Page[*User], error) {
	return s.followGraph(ctx, OpFollowers, "followers", userID, opts)
}

// followGraph reads a follow list over GraphQL. A page that fails for a
// reason other than a rejected query id is served from the REST list
// endpoint instead, which ends pagination.
func (s userService) followGraph(ctx context.Context, operation, restKind, userID string, opts PageOptions) (*Page[*User], error) {
	feats := s.c.cfg.Features.Build(features.SetFollowing)
	return paginate(ctx, opts, func(ctx context.Context, cursor string, count int) (page[*User], error) {
		p, had404, err := fetchTracked(ctx, s.c, endpoint[page[*User]]{
			operation: operation,
			variables: []map[string]any{withCursor(map[string]any{
				"userId":                 userID,
				"count":                  count,
				"includePromotedContent": false,
				"withClientEventToken":   false,
				"withBirdwatchNotes":     false,
				"withVoice":              true,
			}, cursor)},
			features: feats,
			decode:   userPageDecoder(userTimelineInstructions),
		})
		if err == nil || had404 || ctx.Err() != nil {
			return p, err
		}
		s.c.log.Warn("graphql follow list failed, using REST",
			slog.String("op", operation), slog.Any("error", err))
		users, restErr := s.c.restFollowList(ctx, restKind, userID, count)
		if restErr != nil {
			s.c.log.Debug("REST follow list failed", slog.String("op", operation), slog.Any("error", restErr))
			return p, err
		}
		return page[*User]{items: users}, nil
	})
}

type restUser struct {
	IDStr           string      `json:"id_str"`
	ID              json.Number `json:"id"`
	ScreenName      string      `json:"screen_name"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	FollowersCount  int         `json:"followers_count"`
	FriendsCount    int         `json:"friends_count"`
	StatusesCount   int         `json:"statuses_count"`
	ListedCount     int         `json:"listed_count"`
	Verified        bool        `json:"verified"`
	ProfileImageURL string      `json:"profile_image_url_https"`
	CreatedAt       string      `json:"created_at"`
}

// restFollowList reads 1.1/{friends,followers}/list.json, trying the web
// host before the legacy API host.
func (c *core) restFollowList(ctx context.Context, kind, userID string, count int) ([]*User, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("count", strconv.Itoa(count))
	q.Set("skip_status", "true")
	q.Set("include_user_entities", "false")
	operation := kind + "/list"

	var lastErr error
	for _, base := range []string{restBase, legacyRESTBase} {
		resp, err := c.do(ctx, request{
			operation: operation,
			method:    "GET",
			url:       base + "/" + kind + "/list.json?" + q.Encode(),
		})
		if err != nil {
			lastErr = err
			continue
		}
		if resp.status >= 400 {
			lastErr = httpError(operation, resp)
			continue
		}
		var raw struct {
			Users []restUser `json:"users"`
		}
		if err := json.Unmarshal(resp.body, &raw); err != nil {
			lastErr = fmt.Errorf("decode %s: %w", operation, err)
			continue
		}
		users := make([]*User, 0, len(raw.Users))
		for _, u := range raw.Users {
			id := firstNonEmpty(u.IDStr, u.ID.String())
			if id == "" || u.ScreenName == "" {
				continue
			}
			users = append(users, &User{
				ID:              id,
				Username:        u.ScreenName,
				Name:            firstNonEmpty(u.Name, u.ScreenName),
				Description:     strings.TrimSpace(u.Description),
				Followers:       u.FollowersCount,
				Following:       u.FriendsCount,
				TweetCount:      u.StatusesCount,
				ListedCount:     u.ListedCount,
				Verified:        u.Verified,
				ProfileImageURL: u.ProfileImageURL,
				CreatedAt:       parseTwitterTime(u.CreatedAt),
			})
		}
		return users, nil
	}
	if lastErr == nil {
		lastErr = errors.New(operation + ": no endpoint answered")
	}
	return nil, lastErr
}
