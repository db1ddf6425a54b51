package bird

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// twitterTimeLayout is the created_at format used by legacy objects.
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// --- Timeline types ---

type timelineObj struct {
	Instructions []timelineInstruction `json:"instructions"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
	Entry   *timelineEntry  `json:"entry"`
}

// allEntries returns entries followed by the single replaced entry, if any.
func (in timelineInstruction) allEntries() []timelineEntry {
	if in.Entry == nil {
		return in.Entries
	}
	return append(in.Entries[:len(in.Entries):len(in.Entries)], *in.Entry)
}

type timelineEntry struct {
	EntryID string          `json:"entryId"`
	Content timelineContent `json:"content"`
}

type timelineContent struct {
	EntryType   string               `json:"entryType"`
	TypeName    string               `json:"__typename"`
	CursorType  string               `json:"cursorType"`
	Value       string               `json:"value"`
	ItemContent *itemContent         `json:"itemContent"`
	Item        *itemWrapper         `json:"item"`
	Items       []timelineModuleItem `json:"items"`
}

type itemWrapper struct {
	ItemContent *itemContent `json:"itemContent"`
}

// timelineModuleItem is one element of a TimelineTimelineModule entry.
type timelineModuleItem struct {
	Item        *itemWrapper `json:"item"`
	ItemContent *itemContent `json:"itemContent"`
	Content     *itemWrapper `json:"content"`
}

type itemContent struct {
	TypeName     string `json:"__typename"`
	TweetResults struct {
		Result *tweetNode `json:"result"`
	} `json:"tweet_results"`
	UserResults struct {
		Result *userNode `json:"result"`
	} `json:"user_results"`
	ListResults struct {
		Result *listNode `json:"result"`
	} `json:"list_results"`
	List *legacyListNode `json:"list"`
}

// itemContents enumerates every item content an entry can carry, in
// document order.
func (c timelineContent) itemContents() []*itemContent {
	var out []*itemContent
	push := func(ic *itemContent) {
		if ic != nil {
			out = append(out, ic)
		}
	}
	push(c.ItemContent)
	if c.Item != nil {
		push(c.Item.ItemContent)
	}
	for _, it := range c.Items {
		if it.Item != nil {
			push(it.Item.ItemContent)
		}
		push(it.ItemContent)
		if it.Content != nil {
			push(it.Content.ItemContent)
		}
	}
	return out
}

type userNode struct {
	TypeName       string    `json:"__typename"`
	RestID         string    `json:"rest_id"`
	User           *userNode `json:"user"`
	IsBlueVerified bool      `json:"is_blue_verified"`
	Legacy         struct {
		Name            string `json:"name"`
		ScreenName      string `json:"screen_name"`
		Description     string `json:"description"`
		FollowersCount  int    `json:"followers_count"`
		FriendsCount    int    `json:"friends_count"`
		StatusesCount   int    `json:"statuses_count"`
		ListedCount     int    `json:"listed_count"`
		CreatedAt       string `json:"created_at"`
		Verified        bool   `json:"verified"`
		ProfileImageURL string `json:"profile_image_url_https"`
	} `json:"legacy"`
	Core struct {
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
		CreatedAt  string `json:"created_at"`
	} `json:"core"`
	Avatar struct {
		ImageURL string `json:"image_url"`
	} `json:"avatar"`
}

func (u *userNode) unwrap() *userNode {
	if u != nil && u.TypeName == "UserWithVisibilityResults" && u.User != nil {
		return u.User
	}
	return u
}

func (u *userNode) screenName() string {
	return firstNonEmpty(u.Legacy.ScreenName, u.Core.ScreenName)
}

func (u *userNode) displayName() string {
	return firstNonEmpty(u.Legacy.Name, u.Core.Name, u.screenName())
}

type tweetNode struct {
	TypeName string     `json:"__typename"`
	RestID   string     `json:"rest_id"`
	Tweet    *tweetNode `json:"tweet"`
	Core     struct {
		UserResults struct {
			Result *userNode `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy struct {
		FullText             string `json:"full_text"`
		CreatedAt            string `json:"created_at"`
		ReplyCount           int    `json:"reply_count"`
		RetweetCount         int    `json:"retweet_count"`
		FavoriteCount        int    `json:"favorite_count"`
		QuoteCount           int    `json:"quote_count"`
		ConversationIDStr    string `json:"conversation_id_str"`
		InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
		UserIDStr            string `json:"user_id_str"`
		Entities             struct {
			Media []mediaNode `json:"media"`
		} `json:"entities"`
		ExtendedEntities struct {
			Media []mediaNode `json:"media"`
		} `json:"extended_entities"`
	} `json:"legacy"`
	Views struct {
		Count string `json:"count"`
	} `json:"views"`
	NoteTweet struct {
		NoteTweetResults struct {
			Result json.RawMessage `json:"result"`
		} `json:"note_tweet_results"`
	} `json:"note_tweet"`
	Article json.RawMessage `json:"article"`
	Quoted  struct {
		Result *tweetNode `json:"result"`
	} `json:"quoted_status_result"`
}

// unwrap returns the inner tweet of a TweetWithVisibilityResults node.
func (t *tweetNode) unwrap() *tweetNode {
	if t != nil && t.Tweet != nil {
		return t.Tweet
	}
	return t
}

type listNode struct {
	TypeName string    `json:"__typename"`
	RestID   string    `json:"rest_id"`
	Name     string    `json:"name"`
	List     *listNode `json:"list"`
	Legacy   struct {
		Name            string          `json:"name"`
		Description     string          `json:"description"`
		MemberCount     int             `json:"member_count"`
		SubscriberCount int             `json:"subscriber_count"`
		IsPrivate       bool            `json:"is_private"`
		CreatedAt       json.RawMessage `json:"created_at"`
		UserResults     struct {
			Result *userNode `json:"result"`
		} `json:"user_results"`
	} `json:"legacy"`
}

// legacyListNode is the list shape carried directly under itemContent.list.
type legacyListNode struct {
	IDStr           string          `json:"id_str"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	MemberCount     int             `json:"member_count"`
	SubscriberCount int             `json:"subscriber_count"`
	Mode            string          `json:"mode"`
	CreatedAt       json.RawMessage `json:"created_at"`
	UserResults     struct {
		Result *userNode `json:"result"`
	} `json:"user_results"`
}

// --- Mapping ---

// mapTweet normalizes a tweet node. quoteDepth is how many levels of quoted
// tweets to resolve. Nodes without an id or author username yield nil.
func mapTweet(node *tweetNode, quoteDepth int) *Tweet {
	node = node.unwrap()
	if node == nil || node.RestID == "" {
		return nil
	}
	author := node.Core.UserResults.Result.unwrap()
	if author == nil || author.screenName() == "" {
		return nil
	}

	t := &Tweet{
		ID:             node.RestID,
		Text:           tweetText(node),
		Author:         Author{Username: author.screenName(), Name: author.displayName()},
		AuthorID:       firstNonEmpty(author.RestID, node.Legacy.UserIDStr),
		CreatedAt:      parseTwitterTime(node.Legacy.CreatedAt),
		Replies:        node.Legacy.ReplyCount,
		Retweets:       node.Legacy.RetweetCount,
		Likes:          node.Legacy.FavoriteCount,
		Quotes:         node.Legacy.QuoteCount,
		ConversationID: node.Legacy.ConversationIDStr,
		InReplyToID:    node.Legacy.InReplyToStatusIDStr,
		Media:          extractMedia(node),
	}
	if node.Views.Count != "" {
		t.Views, _ = strconv.Atoi(node.Views.Count)
	}
	if quoteDepth > 0 && node.Quoted.Result != nil {
		t.QuotedTweet = mapTweet(node.Quoted.Result, quoteDepth-1)
	}
	return t
}

// mapUser normalizes a user node. Unavailable users and nodes without an id
// or username yield nil.
func mapUser(node *userNode) *User {
	node = node.unwrap()
	if node == nil || node.TypeName != "User" || node.RestID == "" || node.screenName() == "" {
		return nil
	}
	return &User{
		ID:              node.RestID,
		Username:        node.screenName(),
		Name:            node.displayName(),
		Description:     strings.TrimSpace(node.Legacy.Description),
		Followers:       node.Legacy.FollowersCount,
		Following:       node.Legacy.FriendsCount,
		TweetCount:      node.Legacy.StatusesCount,
		ListedCount:     node.Legacy.ListedCount,
		IsBlueVerified:  node.IsBlueVerified,
		Verified:        node.Legacy.Verified,
		ProfileImageURL: firstNonEmpty(node.Legacy.ProfileImageURL, node.Avatar.ImageURL),
		CreatedAt:       parseTwitterTime(firstNonEmpty(node.Legacy.CreatedAt, node.Core.CreatedAt)),
	}
}

func mapListOwner(u *userNode) *ListOwner {
	u = u.unwrap()
	if u == nil || u.screenName() == "" {
		return nil
	}
	return &ListOwner{ID: u.RestID, Username: u.screenName(), Name: u.displayName()}
}

// mapList normalizes a GraphQL list node.
func mapList(node *listNode) *List {
	if node != nil && node.TypeName == "ListWithVisibilityResults" && node.List != nil {
		node = node.List
	}
	if node == nil || node.TypeName != "List" || node.RestID == "" {
		return nil
	}
	return &List{
		ID:              node.RestID,
		Name:            firstNonEmpty(node.Legacy.Name, node.Name),
		Description:     node.Legacy.Description,
		MemberCount:     node.Legacy.MemberCount,
		SubscriberCount: node.Legacy.SubscriberCount,
		IsPrivate:       node.Legacy.IsPrivate,
		CreatedAt:       parseFlexibleTime(node.Legacy.CreatedAt),
		Owner:           mapListOwner(node.Legacy.UserResults.Result),
	}
}

// mapLegacyList normalizes the itemContent.list shape.
func mapLegacyList(node *legacyListNode) *List {
	if node == nil || node.IDStr == "" || node.Name == "" {
		return nil
	}
	l := &List{
		ID:              node.IDStr,
		Name:            node.Name,
		Description:     node.Description,
		MemberCount:     node.MemberCount,
		SubscriberCount: node.SubscriberCount,
		IsPrivate:       strings.EqualFold(node.Mode, "private"),
		CreatedAt:       parseFlexibleTime(node.CreatedAt),
	}
	if u := node.UserResults.Result.unwrap(); u != nil {
		l.Owner = &ListOwner{ID: u.RestID, Username: u.Legacy.ScreenName, Name: u.Legacy.Name}
	}
	return l
}

// --- Extraction helpers ---

// parseTweetsFromInstructions maps every tweet in the tree, deduplicated by
// id in first-seen order.
func parseTweetsFromInstructions(instructions []timelineInstruction, quoteDepth int) []*Tweet {
	var tweets []*Tweet
	seen := make(map[string]bool)
	for _, in := range instructions {
		for _, e := range in.allEntries() {
			for _, ic := range e.Content.itemContents() {
				t := mapTweet(ic.TweetResults.Result, quoteDepth)
				if t == nil || seen[t.ID] {
					continue
				}
				seen[t.ID] = true
				tweets = append(tweets, t)
			}
		}
	}
	return tweets
}

func parseUsersFromInstructions(instructions []timelineInstruction) []*User {
	var users []*User
	seen := make(map[string]bool)
	for _, in := range instructions {
		for _, e := range in.allEntries() {
			for _, ic := range e.Content.itemContents() {
				u := mapUser(ic.UserResults.Result)
				if u == nil || seen[u.ID] {
					continue
				}
				seen[u.ID] = true
				users = append(users, u)
			}
		}
	}
	return users
}

func parseListsFromInstructions(instructions []timelineInstruction) []*List {
	var lists []*List
	seen := make(map[string]bool)
	for _, in := range instructions {
		for _, e := range in.allEntries() {
			for _, ic := range e.Content.itemContents() {
				l := mapList(ic.ListResults.Result)
				if l == nil {
					l = mapLegacyList(ic.List)
				}
				if l == nil || seen[l.ID] {
					continue
				}
				seen[l.ID] = true
				lists = append(lists, l)
			}
		}
	}
	return lists
}

// extractCursor returns the value of the first cursor entry of cursorType.
func extractCursor(instructions []timelineInstruction, cursorType string) string {
	for _, in := range instructions {
		for _, e := range in.allEntries() {
			if e.Content.CursorType == cursorType && e.Content.Value != "" {
				return e.Content.Value
			}
		}
	}
	return ""
}

// findTweetInInstructions returns the raw node of the tweet with id.
func findTweetInInstructions(instructions []timelineInstruction, id string) *tweetNode {
	for _, in := range instructions {
		for _, e := range in.allEntries() {
			for _, ic := range e.Content.itemContents() {
				if n := ic.TweetResults.Result.unwrap(); n != nil && n.RestID == id {
					return n
				}
			}
		}
	}
	return nil
}

func parseTwitterTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(twitterTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseFlexibleTime accepts a legacy date string, or epoch milliseconds as a
// number or numeric string.
func parseFlexibleTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		s = string(raw)
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return parseTwitterTime(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
