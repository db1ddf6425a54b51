package bird

import "time"

// Author is the display identity attached to a tweet.
type Author struct {
	Username string
	Name     string
}

// Media is a photo, video or animated GIF attached to a tweet.
type Media struct {
	Type       string // photo, video, animated_gif
	URL        string
	PreviewURL string
	Width      int
	Height     int
	VideoURL   string // highest-bitrate MP4 for video and animated_gif
	DurationMs int
}

// Tweet represents a single tweet.
type Tweet struct {
	ID             string
	Text           string
	Author         Author
	AuthorID       string
	CreatedAt      time.Time
	Replies        int
	Retweets       int
	Likes          int
	Quotes         int
	Views          int
	ConversationID string
	InReplyToID    string
	QuotedTweet    *Tweet
	Media          []Media
}

// EntityID implements Entity.
func (t *Tweet) EntityID() string { return t.ID }

// User represents an X account profile.
type User struct {
	ID              string
	Username        string
	Name            string
	Description     string
	Followers       int
	Following       int
	TweetCount      int
	ListedCount     int
	IsBlueVerified  bool
	Verified        bool
	ProfileImageURL string
	CreatedAt       time.Time
}

// EntityID implements Entity.
func (u *User) EntityID() string { return u.ID }

// List is a user-curated list.
type List struct {
	ID              string
	Name            string
	Description     string
	MemberCount     int
	SubscriberCount int
	IsPrivate       bool
	CreatedAt       time.Time
	Owner           *ListOwner
}

// ListOwner identifies the account that owns a list.
type ListOwner struct {
	ID       string
	Username string
	Name     string
}

// EntityID implements Entity.
func (l *List) EntityID() string { return l.ID }

// Entity is anything a paginated fetch can deduplicate.
type Entity interface {
	EntityID() string
}

// PageOptions bounds a paginated fetch.
type PageOptions struct {
	// Limit is the maximum number of entities to return. Zero means unbounded.
	Limit int
	// MaxPages stops after this many pages. Zero means no ceiling.
	MaxPages int
	// Cursor resumes a previous fetch.
	Cursor string
}

// Page is the result of a paginated fetch.
type Page[T Entity] struct {
	Items []T
	// NextCursor is set when the fetch stopped before the timeline ran out.
	NextCursor string
}

// CurrentUser is the account behind the session cookies.
type CurrentUser struct {
	ID       string
	Username string
	Name     string
}
