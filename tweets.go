package bird

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/anatolykoptev/go-bird/features"
)

// tweetDetailExtras are layered onto the tweetDetail preset for TweetDetail.
var tweetDetailExtras = features.Flags{
	"articles_preview_enabled":                                                true,
	"articles_rest_api_enabled":                                               true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
	"creator_subscriptions_tweet_preview_api_enabled":                         true,
	"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
	"view_counts_everywhere_api_enabled":                                      true,
	"longform_notetweets_consumption_enabled":                                 true,
	"responsive_web_twitter_article_tweet_consumption_enabled":                true,
	"freedom_of_speech_not_reach_fetch_enabled":                               true,
	"standardized_nudges_misinfo":                                             true,
	"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
	"rweb_video_timestamps_enabled":                                           true,
}

type tweetService struct{ c *core }

// conversation is the decoded TweetDetail payload.
type conversation struct {
	focal        *tweetNode
	instructions []timelineInstruction
}

func (s tweetService) detail(ctx context.Context, id string) (*conversation, error) {
	base := features.Defaults(features.SetTweetDetail)
	for k, v := range tweetDetailExtras {
		base[k] = v
	}
	return fetch(ctx, s.c, endpoint[*conversation]{
		operation: OpTweetDetail,
		method:    methodGETThenPOST,
		variables: []map[string]any{{
			"focalTweetId":                           id,
			"with_rux_injections":                    false,
			"rankingMode":                            "Relevance",
			"includePromotedContent":                 true,
			"withCommunity":                          true,
			"withQuickPromoteEligibilityTweetFields": true,
			"withBirdwatchNotes":                     true,
			"withVoice":                              true,
		}},
		features: s.c.cfg.Features.Apply(features.SetTweetDetail, base),
		decode: func(body []byte) (*conversation, error) {
			var raw struct {
				Data struct {
					TweetResult struct {
						Result *tweetNode `json:"result"`
					} `json:"tweetResult"`
					Threaded struct {
						Instructions []timelineInstruction `json:"instructions"`
					} `json:"threaded_conversation_with_injections_v2"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, err
			}
			return &conversation{
				focal:        raw.Data.TweetResult.Result,
				instructions: raw.Data.Threaded.Instructions,
			}, nil
		},
	})
}

// Tweet fetches a single tweet. Articles whose payload carries only a title
// are completed from the author's article timeline.
func (s tweetService) Tweet(ctx context.Context, id string) (*Tweet, error) {
	conv, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	node := conv.focal.unwrap()
	if node == nil {
		node = findTweetInInstructions(conv.instructions, id)
	}
	t := mapTweet(node, s.c.cfg.quoteDepth())
	if t == nil {
		return nil, fmt.Errorf("%s %s: %w", OpTweetDetail, id, ErrNotFound)
	}

	if title := articleTitle(node.Article); title != "" {
		if text := articleText(node.Article); text == "" || text == title {
			s.completeArticle(ctx, t, node)
		}
	}
	return t, nil
}

// completeArticle replaces t.Text with the article plain text when the
// author's article timeline has it. Failures leave t unchanged.
func (s tweetService) completeArticle(ctx context.Context, t *Tweet, node *tweetNode) {
	author := node.Core.UserResults.Result.unwrap()
	if author == nil || author.RestID == "" {
		return
	}
	title, plain, err := s.articlePlainText(ctx, author.RestID, t.ID)
	if err != nil {
		s.c.log.Debug("article text lookup failed", slog.String("tweet", t.ID), slog.Any("error", err))
		return
	}
	switch {
	case plain == "":
	case title != "":
		t.Text = title + "\n\n" + plain
	default:
		t.Text = plain
	}
}

func (s tweetService) articlePlainText(ctx context.Context, userID, tweetID string) (title, plain string, err error) {
	type articlePayload struct{ title, plain string }
	out, err := fetch(ctx, s.c, endpoint[articlePayload]{
		operation: OpUserArticlesTweets,
		variables: []map[string]any{{
			"userId":                                 userID,
			"count":                                  20,
			"includePromotedContent":                 true,
			"withVoice":                              true,
			"withQuickPromoteEligibilityTweetFields": true,
			"withBirdwatchNotes":                     true,
			"withCommunity":                          true,
			"withSafetyModeUserFields":               true,
			"withSuperFollowsUserFields":             true,
			"withDownvotePerspective":                false,
			"withReactionsMetadata":                  false,
			"withReactionsPerspective":               false,
			"withSuperFollowsTweetFields":            true,
			"withSuperFollowsReplyCount":             false,
			"withClientEventToken":                   false,
		}},
		features:     s.c.cfg.Features.Build(features.SetArticle),
		fieldToggles: features.ArticleFieldToggles(),
		decode: func(body []byte) (articlePayload, error) {
			in, err := userTimelineInstructions(body)
			if err != nil {
				return articlePayload{}, err
			}
			node := findTweetInInstructions(in, tweetID)
			if node == nil {
				return articlePayload{}, nil
			}
			var article map[string]any
			if len(node.Article) > 0 {
				_ = json.Unmarshal(node.Article, &article)
			}
			return articlePayload{
				title: firstText(lookup(article, "article_results", "result", "title"), lookup(article, "title")),
				plain: firstText(lookup(article, "article_results", "result", "plain_text"), lookup(article, "plain_text")),
			}, nil
		},
	})
	return out.title, out.plain, err
}

// articleTitle returns the article title of a raw article node.
func articleTitle(raw json.RawMessage) string {
	var article map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &article) != nil {
		return ""
	}
	return firstText(lookup(article, "article_results", "result", "title"), lookup(article, "title"))
}

// Replies returns the direct replies to id found in its conversation.
func (s tweetService) Replies(ctx context.Context, id string) ([]*Tweet, error) {
	conv, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	var replies []*Tweet
	for _, t := range parseTweetsFromInstructions(conv.instructions, s.c.cfg.quoteDepth()) {
		if t.InReplyToID == id {
			replies = append(replies, t)
		}
	}
	return replies, nil
}

// Thread returns the tweets sharing id's conversation, oldest first.
func (s tweetService) Thread(ctx context.Context, id string) ([]*Tweet, error) {
	conv, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	tweets := parseTweetsFromInstructions(conv.instructions, s.c.cfg.quoteDepth())
	return threadOf(tweets, id), nil
}

// threadOf filters tweets to the conversation of id and sorts them by
// creation time. Tweets without a timestamp sort first.
func threadOf(tweets []*Tweet, id string) []*Tweet {
	root := id
	for _, t := range tweets {
		if t.ID == id && t.ConversationID != "" {
			root = t.ConversationID
			break
		}
	}
	var thread []*Tweet
	for _, t := range tweets {
		if t.ConversationID == root {
			thread = append(thread, t)
		}
	}
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return thread
}
