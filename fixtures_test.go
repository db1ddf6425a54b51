package bird

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-bird/features"
	"github.com/anatolykoptev/go-bird/queryids"
)

type obj = map[string]any

// --- fake transport ---

type fakeCall struct {
	method  string
	url     string
	headers map[string]string
	body    string
}

// queryID and operation return the GraphQL path segments of the call.
func (c fakeCall) queryID() string {
	id, _ := graphqlTarget(c.url)
	return id
}

func (c fakeCall) operation() string {
	_, op := graphqlTarget(c.url)
	return op
}

// variables decodes the GraphQL variables from the query string or body.
func (c fakeCall) variables(t *testing.T) obj {
	t.Helper()
	var vars obj
	if c.method == "GET" {
		u, err := url.Parse(c.url)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal([]byte(u.Query().Get("variables")), &vars))
		return vars
	}
	var body struct {
		Variables obj `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.body), &body))
	return body.Variables
}

type fakeReply struct {
	status  int
	body    string
	headers map[string]string
	err     error
}

func okReply(body string) fakeReply { return fakeReply{status: 200, body: body} }

func statusReply(code int) fakeReply { return fakeReply{status: code, body: `{}`} }

type fakeDoer struct {
	mu     sync.Mutex
	calls  []fakeCall
	handle func(call fakeCall, n int) fakeReply
}

func (f *fakeDoer) DoWithHeaderOrder(method, rawURL string, headers map[string]string, body io.Reader, _ []string) ([]byte, map[string]string, int, error) {
	var b []byte
	if body != nil {
		b, _ = io.ReadAll(body)
	}
	call := fakeCall{method: method, url: rawURL, headers: headers, body: string(b)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()

	r := f.handle(call, n)
	return []byte(r.body), r.headers, r.status, r.err
}

func (f *fakeDoer) recorded() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func graphqlTarget(rawURL string) (queryID, operation string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	rest, found := strings.CutPrefix(u.Host+u.Path, "x.com/i/api/graphql/")
	if !found {
		return "", ""
	}
	queryID, operation, _ = strings.Cut(rest, "/")
	return queryID, operation
}

// --- fake bundle site for query id refreshes ---

const (
	testPage   = "https://x.com/?lang=en"
	testBundle = "https://abs.twimg.com/responsive-web/client-web/main.abc123.js"
)

type bundleSite struct {
	mu    sync.Mutex
	ids   map[string]string
	calls int
}

func (s *bundleSite) fetch(_ context.Context, u string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch u {
	case testPage:
		s.calls++
		if len(s.ids) == 0 {
			return "", errors.New("offline")
		}
		return `<html><script src="` + testBundle + `"></script></html>`, nil
	case testBundle:
		var b strings.Builder
		for op, id := range s.ids {
			b.WriteString(`e.exports={queryId:"` + id + `",operationName:"` + op + `"};`)
		}
		return b.String(), nil
	}
	return "", errors.New("not found")
}

func (s *bundleSite) refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- client rig ---

type rig struct {
	client *Client
	doer   *fakeDoer
	site   *bundleSite

	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *rig) slept() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func newRig(t *testing.T, handle func(call fakeCall, n int) fakeReply, opts ...func(*ClientConfig)) *rig {
	t.Helper()
	dir := t.TempDir()
	r := &rig{doer: &fakeDoer{handle: handle}, site: &bundleSite{}}
	logger := slog.New(slog.DiscardHandler)

	cfg := ClientConfig{
		AuthToken: "auth",
		CT0:       "csrf0",
		Transport: r.doer,
		QueryIDs: queryids.New(queryids.Options{
			CachePath:   filepath.Join(dir, "query-ids-cache.json"),
			Fetch:       r.site.fetch,
			Pages:       []string{testPage},
			Concurrency: 1,
			Logger:      logger,
		}),
		Features: features.NewResolver(features.Options{
			CachePath: filepath.Join(dir, "features.json"),
			Logger:    logger,
		}),
		Logger: logger,
		sleep: func(d time.Duration) {
			r.mu.Lock()
			r.sleeps = append(r.sleeps, d)
			r.mu.Unlock()
		},
		rand: func() float64 { return 0 },
	}
	for _, o := range opts {
		o(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	r.client = c
	return r
}

// --- payload builders ---

func userResult(id, screenName string) obj {
	return obj{
		"__typename": "User",
		"rest_id":    id,
		"legacy": obj{
			"screen_name":     screenName,
			"name":            strings.ToUpper(screenName),
			"followers_count": 10,
			"friends_count":   5,
		},
	}
}

func tweetResult(id, screenName, text string) obj {
	return obj{
		"__typename": "Tweet",
		"rest_id":    id,
		"core":       obj{"user_results": obj{"result": userResult("u-"+screenName, screenName)}},
		"legacy": obj{
			"full_text":           text,
			"created_at":          "Wed Oct 10 20:19:24 +0000 2018",
			"conversation_id_str": id,
			"reply_count":         1,
			"retweet_count":       2,
			"favorite_count":      3,
			"quote_count":         4,
		},
		"views": obj{"count": "99"},
	}
}

func tweetEntry(tweet obj) obj {
	return obj{
		"entryId": "tweet-" + tweet["rest_id"].(string),
		"content": obj{
			"entryType":   "TimelineTimelineItem",
			"itemContent": obj{"__typename": "TimelineTweet", "tweet_results": obj{"result": tweet}},
		},
	}
}

func userEntry(user obj) obj {
	return obj{
		"entryId": "user-" + user["rest_id"].(string),
		"content": obj{
			"entryType":   "TimelineTimelineItem",
			"itemContent": obj{"__typename": "TimelineUser", "user_results": obj{"result": user}},
		},
	}
}

func cursorEntry(cursorType, value string) obj {
	return obj{
		"entryId": "cursor-" + strings.ToLower(cursorType),
		"content": obj{
			"entryType":  "TimelineTimelineCursor",
			"cursorType": cursorType,
			"value":      value,
		},
	}
}

func addEntries(entries ...obj) []obj {
	return []obj{{"type": "TimelineAddEntries", "entries": entries}}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func decodeInstructions(t *testing.T, raw []obj) []timelineInstruction {
	t.Helper()
	var in []timelineInstruction
	require.NoError(t, json.Unmarshal([]byte(mustJSON(t, raw)), &in))
	return in
}

func bookmarksBody(t *testing.T, entries ...obj) string {
	return mustJSON(t, obj{"data": obj{"bookmark_timeline_v2": obj{"timeline": obj{"instructions": addEntries(entries...)}}}})
}

func userTimelineBody(t *testing.T, entries ...obj) string {
	return mustJSON(t, obj{"data": obj{"user": obj{"result": obj{"timeline": obj{"timeline": obj{"instructions": addEntries(entries...)}}}}}})
}

const settingsURL = "https://x.com/i/api/account/settings.json"

// withAccount answers the settings lookup before delegating to next.
func withAccount(next func(call fakeCall, n int) fakeReply) func(call fakeCall, n int) fakeReply {
	return func(call fakeCall, n int) fakeReply {
		if call.url == settingsURL {
			return okReply(`{"screen_name":"alice","user_id":"42","name":"Alice"}`)
		}
		return next(call, n)
	}
}
