package bird

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go-bird/features"
)

type mutationService struct{ c *core }

// mutate POSTs a GraphQL mutation. A 404 forces a query id refresh and a
// retry with the new id; a second 404 is retried against the bare GraphQL
// endpoint with the id in the body only.
func (c *core) mutate(ctx context.Context, operation string, vars map[string]any, feats features.Flags, referer string) (*response, error) {
	post := func(target, queryID string) (*response, error) {
		body, err := json.Marshal(graphqlBody{Variables: vars, Features: feats, QueryID: queryID})
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", operation, err)
		}
		return c.do(ctx, request{
			operation: operation,
			method:    "POST",
			url:       target,
			body:      body,
			headers:   map[string]string{"referer": referer},
		})
	}

	queryID := c.queryID(operation)
	resp, err := post(operationURL(queryID, operation), queryID)
	if err != nil || resp.status != 404 {
		return resp, err
	}

	c.log.Info("mutation query id rejected, refreshing", slog.String("op", operation))
	if _, rerr := c.cfg.QueryIDs.Refresh(ctx, refreshTargets, true); rerr != nil {
		c.log.Warn("query id refresh failed", slog.String("op", operation), slog.Any("error", rerr))
	}
	queryID = c.queryID(operation)
	resp, err = post(operationURL(queryID, operation), queryID)
	if err != nil || resp.status != 404 {
		return resp, err
	}
	return post(graphqlBase, queryID)
}

// Unbookmark removes a tweet from the current account's bookmarks.
func (s mutationService) Unbookmark(ctx context.Context, tweetID string) error {
	return s.tweetAction(ctx, OpDeleteBookmark, map[string]any{"tweet_id": tweetID}, tweetID)
}

// Like favorites a tweet.
func (s mutationService) Like(ctx context.Context, tweetID string) error {
	return s.tweetAction(ctx, OpFavoriteTweet, map[string]any{"tweet_id": tweetID}, tweetID)
}

// Retweet reposts a tweet.
func (s mutationService) Retweet(ctx context.Context, tweetID string) error {
	return s.tweetAction(ctx, OpCreateRetweet, map[string]any{"tweet_id": tweetID, "dark_request": false}, tweetID)
}

// tweetAction runs a mutation on one tweet. Any errors entry fails it.
func (s mutationService) tweetAction(ctx context.Context, operation string, vars map[string]any, tweetID string) error {
	resp, err := s.c.mutate(ctx, operation, vars, nil, "https://x.com/i/status/"+tweetID)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return httpError(operation, resp)
	}
	if errs := parseAPIErrors(resp.body); len(errs) > 0 {
		return &UpstreamError{Operation: operation, Status: resp.status, Message: formatErrors(errs), Codes: errorCodes(errs)}
	}
	return nil
}

// CreateTweet posts a tweet and returns its id.
func (s mutationService) CreateTweet(ctx context.Context, text string, mediaIDs ...string) (string, error) {
	return s.createTweet(ctx, text, "", mediaIDs)
}

// Reply posts a reply to inReplyToID and returns its id.
func (s mutationService) Reply(ctx context.Context, text, inReplyToID string, mediaIDs ...string) (string, error) {
	return s.createTweet(ctx, text, inReplyToID, mediaIDs)
}

func (s mutationService) createTweet(ctx context.Context, text, inReplyToID string, mediaIDs []string) (string, error) {
	if _, err := s.c.currentUser(ctx); err != nil {
		s.c.log.Debug("client user id unavailable", slog.Any("error", err))
	}

	entities := make([]map[string]any, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		entities = append(entities, map[string]any{"media_id": id, "tagged_users": []string{}})
	}
	vars := map[string]any{
		"tweet_text":   text,
		"dark_request": false,
		"media": map[string]any{
			"media_entities":     entities,
			"possibly_sensitive": false,
		},
		"semantic_annotation_ids": []string{},
	}
	if inReplyToID != "" {
		vars["reply"] = map[string]any{
			"in_reply_to_tweet_id":   inReplyToID,
			"exclude_reply_user_ids": []string{},
		}
	}

	resp, err := s.c.mutate(ctx, OpCreateTweet, vars,
		s.c.cfg.Features.Build(features.SetTweetCreate), "https://x.com/compose/post")
	if err != nil {
		return "", err
	}
	if resp.status >= 400 {
		return "", httpError(OpCreateTweet, resp)
	}

	if errs := parseAPIErrors(resp.body); len(errs) > 0 {
		ue := &UpstreamError{Operation: OpCreateTweet, Status: resp.status, Message: formatErrors(errs), Codes: errorCodes(errs)}
		if errors.Is(ue, ErrAutomated) {
			s.c.log.Warn("CreateTweet flagged as automated, trying statuses/update", slog.Any("error", ue))
			id, ferr := s.c.statusUpdate(ctx, text, inReplyToID, mediaIDs)
			if ferr == nil {
				return id, nil
			}
			s.c.log.Debug("statuses/update fallback failed", slog.Any("error", ferr))
		}
		return "", ue
	}

	var raw struct {
		Data struct {
			CreateTweet struct {
				TweetResults struct {
					Result struct {
						RestID string `json:"rest_id"`
					} `json:"result"`
				} `json:"tweet_results"`
			} `json:"create_tweet"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &raw); err != nil {
		return "", fmt.Errorf("unmarshal %s: %w", OpCreateTweet, err)
	}
	tweetID := raw.Data.CreateTweet.TweetResults.Result.RestID
	if tweetID == "" {
		return "", fmt.Errorf("%s returned empty tweet ID: %s", OpCreateTweet, truncateBytes(resp.body, 200))
	}
	return tweetID, nil
}

// statusUpdate posts through the legacy 1.1 form endpoint.
func (c *core) statusUpdate(ctx context.Context, text, inReplyToID string, mediaIDs []string) (string, error) {
	const operation = "statuses/update"
	form := url.Values{}
	form.Set("status", text)
	form.Set("tweet_mode", "extended")
	if inReplyToID != "" {
		form.Set("in_reply_to_status_id", inReplyToID)
		form.Set("auto_populate_reply_metadata", "true")
	}
	if len(mediaIDs) > 0 {
		form.Set("media_ids", strings.Join(mediaIDs, ","))
	}

	resp, err := c.do(ctx, request{
		operation: operation,
		method:    "POST",
		url:       statusUpdateURL,
		body:      []byte(form.Encode()),
		headers:   map[string]string{"content-type": "application/x-www-form-urlencoded"},
	})
	if err != nil {
		return "", err
	}
	if resp.status >= 400 {
		return "", httpError(operation, resp)
	}
	var raw struct {
		IDStr string      `json:"id_str"`
		ID    json.Number `json:"id"`
	}
	if err := json.Unmarshal(resp.body, &raw); err != nil {
		return "", fmt.Errorf("unmarshal %s: %w", operation, err)
	}
	if id := firstNonEmpty(raw.IDStr, raw.ID.String()); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%s returned no id: %s", operation, truncateBytes(resp.body, 200))
}
