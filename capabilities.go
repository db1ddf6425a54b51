package bird

import "context"

// UserLookup resolves accounts and follow graphs.
type UserLookup interface {
	CurrentUser(ctx context.Context) (*CurrentUser, error)
	UserByScreenName(ctx context.Context, handle string) (*User, error)
	Following(ctx context.Context, userID string, opts PageOptions) (*Page[*User], error)
	Followers(ctx context.Context, userID string, opts PageOptions) (*Page[*User], error)
}

// ListOps reads lists owned by or containing the current account.
type ListOps interface {
	OwnedLists(ctx context.Context) ([]*List, error)
	ListMemberships(ctx context.Context) ([]*List, error)
	ListByID(ctx context.Context, listID string) (*List, error)
	ListTimeline(ctx context.Context, listID string, opts PageOptions) (*Page[*Tweet], error)
}

// TimelineOps reads the paginated personal timelines.
type TimelineOps interface {
	Bookmarks(ctx context.Context, opts PageOptions) (*Page[*Tweet], error)
	BookmarkFolder(ctx context.Context, folderID string, opts PageOptions) (*Page[*Tweet], error)
	Likes(ctx context.Context, opts PageOptions) (*Page[*Tweet], error)
	UserTweets(ctx context.Context, userID string, opts PageOptions) (*Page[*Tweet], error)
}

// SearchOps runs latest-first tweet search.
type SearchOps interface {
	Search(ctx context.Context, query string, opts PageOptions) (*Page[*Tweet], error)
}

// TweetOps reads a single tweet and its conversation.
type TweetOps interface {
	Tweet(ctx context.Context, id string) (*Tweet, error)
	Replies(ctx context.Context, id string) ([]*Tweet, error)
	Thread(ctx context.Context, id string) ([]*Tweet, error)
}

// Mutations change account state.
type Mutations interface {
	Unbookmark(ctx context.Context, tweetID string) error
	Like(ctx context.Context, tweetID string) error
	Retweet(ctx context.Context, tweetID string) error
	CreateTweet(ctx context.Context, text string, mediaIDs ...string) (string, error)
	Reply(ctx context.Context, text, inReplyToID string, mediaIDs ...string) (string, error)
}

var (
	_ UserLookup  = (*Client)(nil)
	_ ListOps     = (*Client)(nil)
	_ TimelineOps = (*Client)(nil)
	_ SearchOps   = (*Client)(nil)
	_ TweetOps    = (*Client)(nil)
	_ Mutations   = (*Client)(nil)
)
