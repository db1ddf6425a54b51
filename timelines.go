package bird

import (
	"context"

	"github.com/anatolykoptev/go-bird/features"
)

type timelineService struct{ c *core }

// tweetTimeline pages a retry-flagged GET timeline. vars builds the
// variable sets for one page.
func (s timelineService) tweetTimeline(ctx context.Context, operation, set string, path instructionPath, opts PageOptions, vars func(cursor string, count int) []map[string]any) (*Page[*Tweet], error) {
	feats := s.c.cfg.Features.Build(set)
	decode := tweetPageDecoder(path, s.c.cfg.quoteDepth())
	return paginate(ctx, opts, func(ctx context.Context, cursor string, count int) (page[*Tweet], error) {
		return fetch(ctx, s.c, endpoint[page[*Tweet]]{
			operation: operation,
			variables: vars(cursor, count),
			features:  feats,
			retry:     true,
			decode:    decode,
		})
	})
}

// Bookmarks pages through the current account's bookmarks.
func (s timelineService) Bookmarks(ctx context.Context, opts PageOptions) (*Page[*Tweet], error) {
	return s.tweetTimeline(ctx, OpBookmarks, features.SetBookmarks, bookmarkInstructions, opts,
		func(cursor string, count int) []map[string]any {
			return []map[string]any{withCursor(map[string]any{
				"count":                    count,
				"includePromotedContent":   false,
				"withDownvotePerspective":  false,
				"withReactionsMetadata":    false,
				"withReactionsPerspective": false,
			}, cursor)}
		})
}

// BookmarkFolder pages through one bookmark folder. Each page is requested
// with a count first and, unless rate limited, retried without one.
func (s timelineService) BookmarkFolder(ctx context.Context, folderID string, opts PageOptions) (*Page[*Tweet], error) {
	return s.tweetTimeline(ctx, OpBookmarkFolderTimeline, features.SetBookmarks, bookmarkInstructions, opts,
		func(cursor string, count int) []map[string]any {
			base := map[string]any{
				"bookmark_collection_id": folderID,
				"includePromotedContent": true,
			}
			withCount := withCursor(base, cursor)
			withCount["count"] = count
			return []map[string]any{withCount, withCursor(base, cursor)}
		})
}

// Likes pages through tweets liked by the current account.
func (s timelineService) Likes(ctx context.Context, opts PageOptions) (*Page[*Tweet], error) {
	me, err := s.c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.tweetTimeline(ctx, OpLikes, features.SetLikes, userTimelineInstructions, opts,
		func(cursor string, count int) []map[string]any {
			return []map[string]any{withCursor(map[string]any{
				"userId":                 me.ID,
				"count":                  count,
				"includePromotedContent": false,
				"withClientEventToken":   false,
				"withBirdwatchNotes":     false,
				"withVoice":              true,
			}, cursor)}
		})
}

// UserTweets pages through a user's own tweets.
func (s timelineService) UserTweets(ctx context.Context, userID string, opts PageOptions) (*Page[*Tweet], error) {
	return s.tweetTimeline(ctx, OpUserTweets, features.SetUserTweets, userTimelineInstructions, opts,
		func(cursor string, count int) []map[string]any {
			return []map[string]any{withCursor(map[string]any{
				"userId":                                 userID,
				"count":                                  count,
				"includePromotedContent":                 false,
				"withQuickPromoteEligibilityTweetFields": true,
				"withVoice":                              true,
				"withV2Timeline":                         true,
			}, cursor)}
		})
}
