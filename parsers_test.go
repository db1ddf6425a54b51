package bird

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTweet(t *testing.T, v obj) *tweetNode {
	t.Helper()
	var n tweetNode
	require.NoError(t, json.Unmarshal([]byte(mustJSON(t, v)), &n))
	return &n
}

func TestMapTweet_Fields(t *testing.T) {
	tw := mapTweet(decodeTweet(t, tweetResult("100", "alice", "  hello world  ")), 1)
	require.NotNil(t, tw)

	assert.Equal(t, "100", tw.ID)
	assert.Equal(t, "hello world", tw.Text)
	assert.Equal(t, Author{Username: "alice", Name: "ALICE"}, tw.Author)
	assert.Equal(t, "u-alice", tw.AuthorID)
	assert.Equal(t, time.Date(2018, 10, 10, 20, 19, 24, 0, time.UTC), tw.CreatedAt.UTC())
	assert.Equal(t, 1, tw.Replies)
	assert.Equal(t, 2, tw.Retweets)
	assert.Equal(t, 3, tw.Likes)
	assert.Equal(t, 4, tw.Quotes)
	assert.Equal(t, 99, tw.Views)
	assert.Equal(t, "100", tw.ConversationID)
	assert.Nil(t, tw.QuotedTweet)
}

func TestMapTweet_RequiresIDAndAuthor(t *testing.T) {
	noID := tweetResult("", "alice", "x")
	assert.Nil(t, mapTweet(decodeTweet(t, noID), 1))

	noAuthor := tweetResult("1", "alice", "x")
	noAuthor["core"] = obj{}
	assert.Nil(t, mapTweet(decodeTweet(t, noAuthor), 1))

	assert.Nil(t, mapTweet(nil, 1))
}

func TestMapTweet_VisibilityWrappers(t *testing.T) {
	inner := tweetResult("200", "bob", "limited")
	inner["core"] = obj{"user_results": obj{"result": obj{
		"__typename": "UserWithVisibilityResults",
		"user":       userResult("u-bob", "bob"),
	}}}
	wrapped := obj{"__typename": "TweetWithVisibilityResults", "tweet": inner}

	tw := mapTweet(decodeTweet(t, wrapped), 1)
	require.NotNil(t, tw)
	assert.Equal(t, "200", tw.ID)
	assert.Equal(t, "bob", tw.Author.Username)
}

func TestMapTweet_AuthorFromCoreAndUserIDStr(t *testing.T) {
	node := tweetResult("300", "x", "core names")
	node["core"] = obj{"user_results": obj{"result": obj{
		"__typename": "User",
		"core":       obj{"screen_name": "carol", "name": "Carol"},
	}}}
	node["legacy"].(obj)["user_id_str"] = "777"

	tw := mapTweet(decodeTweet(t, node), 0)
	require.NotNil(t, tw)
	assert.Equal(t, Author{Username: "carol", Name: "Carol"}, tw.Author)
	assert.Equal(t, "777", tw.AuthorID)
}

func TestMapTweet_QuoteDepth(t *testing.T) {
	innermost := tweetResult("3", "c", "third")
	middle := tweetResult("2", "b", "second")
	middle["quoted_status_result"] = obj{"result": innermost}
	outer := tweetResult("1", "a", "first")
	outer["quoted_status_result"] = obj{"result": middle}
	node := decodeTweet(t, outer)

	assert.Nil(t, mapTweet(node, 0).QuotedTweet)

	one := mapTweet(node, 1)
	require.NotNil(t, one.QuotedTweet)
	assert.Equal(t, "2", one.QuotedTweet.ID)
	assert.Nil(t, one.QuotedTweet.QuotedTweet)

	two := mapTweet(node, 2)
	require.NotNil(t, two.QuotedTweet.QuotedTweet)
	assert.Equal(t, "3", two.QuotedTweet.QuotedTweet.ID)
}

func TestMapTweet_NoteTweetText(t *testing.T) {
	node := tweetResult("1", "a", "truncated…")
	node["note_tweet"] = obj{"note_tweet_results": obj{"result": obj{"text": "the full long form text"}}}
	assert.Equal(t, "the full long form text", mapTweet(decodeTweet(t, node), 0).Text)

	rich := tweetResult("2", "a", "short")
	rich["note_tweet"] = obj{"note_tweet_results": obj{"result": obj{"richtext": obj{"text": "rich body"}}}}
	assert.Equal(t, "rich body", mapTweet(decodeTweet(t, rich), 0).Text)
}

func TestArticleText(t *testing.T) {
	tests := []struct {
		name    string
		article obj
		want    string
	}{
		{
			name:    "title and plain text",
			article: obj{"article_results": obj{"result": obj{"title": "Title", "plain_text": "Body text"}}},
			want:    "Title\n\nBody text",
		},
		{
			name:    "body already starts with title",
			article: obj{"article_results": obj{"result": obj{"title": "Title", "plain_text": "Title and more"}}},
			want:    "Title and more",
		},
		{
			name:    "rich body",
			article: obj{"title": "T", "body": obj{"richtext": obj{"text": "Rich"}}},
			want:    "T\n\nRich",
		},
		{
			name:    "title only",
			article: obj{"article_results": obj{"result": obj{"title": "Lonely"}}},
			want:    "Lonely",
		},
		{
			name: "body equal to title falls back to collected text",
			article: obj{"article_results": obj{"result": obj{
				"title":  "Same",
				"text":   "Same",
				"blocks": []obj{{"text": "Para one"}, {"text": "Para two"}, {"text": "Para one"}},
			}}},
			want: "Same\n\nPara one\n\nPara two",
		},
		{
			name:    "empty",
			article: obj{},
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, articleText(json.RawMessage(mustJSON(t, tt.article))))
		})
	}
}

func TestTweetText_ArticleWins(t *testing.T) {
	node := tweetResult("1", "a", "https://t.co/link")
	node["article"] = obj{"article_results": obj{"result": obj{"title": "Essay", "plain_text": "Words"}}}
	node["note_tweet"] = obj{"note_tweet_results": obj{"result": obj{"text": "note"}}}
	assert.Equal(t, "Essay\n\nWords", mapTweet(decodeTweet(t, node), 0).Text)
}

func TestCollectTextFields_DocumentOrder(t *testing.T) {
	raw := []byte(`{"z":{"text":"first"},"a":[{"title":"second"},{"other":"skip"}],"text":"  third  ","n":{"text":""}}`)
	assert.Equal(t, []string{"first", "second", "third"}, collectTextFields(raw))
	assert.Nil(t, collectTextFields([]byte(`{broken`)))
}

func TestExtractMedia(t *testing.T) {
	node := tweetResult("1", "a", "media")
	node["legacy"].(obj)["entities"] = obj{"media": []obj{{"type": "photo", "media_url_https": "https://pbs.twimg.com/ignored.jpg"}}}
	node["legacy"].(obj)["extended_entities"] = obj{"media": []obj{
		{
			"type":            "photo",
			"media_url_https": "https://pbs.twimg.com/p.jpg",
			"sizes":           obj{"large": obj{"w": 2048, "h": 1024}, "small": obj{"w": 680, "h": 340}},
		},
		{
			"type":            "video",
			"media_url_https": "https://pbs.twimg.com/v.jpg",
			"sizes":           obj{"medium": obj{"w": 1200, "h": 675}},
			"video_info": obj{
				"duration_millis": 15000,
				"variants": []obj{
					{"content_type": "application/x-mpegURL", "url": "https://video.twimg.com/v.m3u8"},
					{"bitrate": 256000, "content_type": "video/mp4", "url": "https://video.twimg.com/low.mp4"},
					{"bitrate": 2176000, "content_type": "video/mp4", "url": "https://video.twimg.com/high.mp4"},
				},
			},
		},
		{
			"type":            "animated_gif",
			"media_url_https": "https://pbs.twimg.com/g.jpg",
			"video_info": obj{"variants": []obj{
				{"content_type": "video/mp4", "url": "https://video.twimg.com/gif.mp4"},
			}},
		},
		{"type": "photo"},
	}}

	media := mapTweet(decodeTweet(t, node), 0).Media
	require.Len(t, media, 3)

	assert.Equal(t, Media{
		Type:       "photo",
		URL:        "https://pbs.twimg.com/p.jpg",
		PreviewURL: "https://pbs.twimg.com/p.jpg:small",
		Width:      2048,
		Height:     1024,
	}, media[0])

	assert.Equal(t, "https://video.twimg.com/high.mp4", media[1].VideoURL)
	assert.Equal(t, 15000, media[1].DurationMs)
	assert.Equal(t, 1200, media[1].Width)
	assert.Empty(t, media[1].PreviewURL)

	assert.Equal(t, "https://video.twimg.com/gif.mp4", media[2].VideoURL)
	assert.Zero(t, media[2].DurationMs)
}

func TestExtractMedia_EntitiesFallback(t *testing.T) {
	node := tweetResult("1", "a", "media")
	node["legacy"].(obj)["entities"] = obj{"media": []obj{{"type": "photo", "media_url_https": "https://pbs.twimg.com/e.jpg"}}}
	media := mapTweet(decodeTweet(t, node), 0).Media
	require.Len(t, media, 1)
	assert.Equal(t, "https://pbs.twimg.com/e.jpg", media[0].URL)
}

func TestParseTweetsFromInstructions_EntryShapes(t *testing.T) {
	raw := []obj{
		{"type": "TimelineAddEntries", "entries": []obj{
			tweetEntry(tweetResult("1", "a", "item content")),
			{"entryId": "item-2", "content": obj{"item": obj{"itemContent": obj{"tweet_results": obj{"result": tweetResult("2", "a", "item wrapper")}}}}},
			{"entryId": "conversation-3", "content": obj{
				"entryType": "TimelineTimelineModule",
				"items": []obj{
					{"item": obj{"itemContent": obj{"tweet_results": obj{"result": tweetResult("3", "a", "module item")}}}},
					{"itemContent": obj{"tweet_results": obj{"result": tweetResult("4", "a", "module direct")}}},
					{"content": obj{"itemContent": obj{"tweet_results": obj{"result": tweetResult("5", "a", "module content")}}}},
					{"item": obj{"itemContent": obj{"tweet_results": obj{"result": tweetResult("1", "a", "duplicate")}}}},
				},
			}},
			cursorEntry("Bottom", "next"),
		}},
		{"type": "TimelinePinEntry", "entry": tweetEntry(tweetResult("6", "a", "pinned"))},
	}

	tweets := parseTweetsFromInstructions(decodeInstructions(t, raw), 0)
	ids := make([]string, 0, len(tweets))
	for _, tw := range tweets {
		ids = append(ids, tw.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, ids)
	assert.Equal(t, "item content", tweets[0].Text)
}

func TestExtractCursor(t *testing.T) {
	in := decodeInstructions(t, []obj{
		{"type": "TimelineAddEntries", "entries": []obj{
			cursorEntry("Top", "top"),
			cursorEntry("Bottom", ""),
		}},
		{"type": "TimelineReplaceEntry", "entry": cursorEntry("Bottom", "bottom")},
	})
	assert.Equal(t, "bottom", extractCursor(in, "Bottom"))
	assert.Equal(t, "top", extractCursor(in, "Top"))
	assert.Empty(t, extractCursor(in, "ShowMore"))
}

func TestFindTweetInInstructions(t *testing.T) {
	in := decodeInstructions(t, addEntries(
		tweetEntry(tweetResult("1", "a", "one")),
		tweetEntry(obj{"__typename": "TweetWithVisibilityResults", "tweet": tweetResult("2", "b", "two")}),
	))
	node := findTweetInInstructions(in, "2")
	require.NotNil(t, node)
	assert.Equal(t, "2", node.RestID)
	assert.Nil(t, findTweetInInstructions(in, "3"))
}

func TestParseUsersFromInstructions(t *testing.T) {
	in := decodeInstructions(t, addEntries(
		userEntry(userResult("1", "alice")),
		userEntry(obj{"__typename": "UserWithVisibilityResults", "rest_id": "2", "user": userResult("2", "bob")}),
		userEntry(obj{"__typename": "UserUnavailable", "rest_id": "3"}),
		userEntry(userResult("1", "alice")),
	))
	users := parseUsersFromInstructions(in)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, 10, users[0].Followers)
	assert.Equal(t, 5, users[0].Following)
	assert.Equal(t, "bob", users[1].Username)
}

func TestMapUser_CoreLayout(t *testing.T) {
	var n userNode
	require.NoError(t, json.Unmarshal([]byte(`{
		"__typename":"User","rest_id":"9","is_blue_verified":true,
		"core":{"screen_name":"dana","name":"Dana","created_at":"Wed Oct 10 20:19:24 +0000 2018"},
		"avatar":{"image_url":"https://pbs.twimg.com/a.jpg"},
		"legacy":{"description":"  hi  ","followers_count":3}
	}`), &n))

	u := mapUser(&n)
	require.NotNil(t, u)
	assert.Equal(t, "dana", u.Username)
	assert.Equal(t, "Dana", u.Name)
	assert.Equal(t, "hi", u.Description)
	assert.True(t, u.IsBlueVerified)
	assert.Equal(t, "https://pbs.twimg.com/a.jpg", u.ProfileImageURL)
	assert.Equal(t, 2018, u.CreatedAt.Year())
}

func TestParseListsFromInstructions(t *testing.T) {
	graphqlList := obj{
		"__typename": "List",
		"rest_id":    "10",
		"name":       "Go people",
		"legacy": obj{
			"description":      "gophers",
			"member_count":     12,
			"subscriber_count": 3,
			"is_private":       true,
			"created_at":       1700000000000,
			"user_results":     obj{"result": userResult("1", "alice")},
		},
	}
	wrapped := obj{"__typename": "ListWithVisibilityResults", "list": obj{"__typename": "List", "rest_id": "11", "name": "Wrapped"}}
	legacy := obj{
		"id_str":       "12",
		"name":         "Legacy",
		"mode":         "Private",
		"created_at":   "Wed Oct 10 20:19:24 +0000 2018",
		"member_count": 1,
	}
	listEntry := func(id string, content obj) obj {
		return obj{"entryId": "list-" + id, "content": obj{"itemContent": content}}
	}

	in := decodeInstructions(t, addEntries(
		listEntry("10", obj{"list_results": obj{"result": graphqlList}}),
		listEntry("11", obj{"list_results": obj{"result": wrapped}}),
		listEntry("12", obj{"list": legacy}),
		listEntry("10b", obj{"list_results": obj{"result": graphqlList}}),
	))
	lists := parseListsFromInstructions(in)
	require.Len(t, lists, 3)

	assert.Equal(t, "Go people", lists[0].Name)
	assert.Equal(t, 12, lists[0].MemberCount)
	assert.True(t, lists[0].IsPrivate)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), lists[0].CreatedAt)
	require.NotNil(t, lists[0].Owner)
	assert.Equal(t, "alice", lists[0].Owner.Username)

	assert.Equal(t, "Wrapped", lists[1].Name)

	assert.Equal(t, "12", lists[2].ID)
	assert.True(t, lists[2].IsPrivate)
	assert.Equal(t, 2018, lists[2].CreatedAt.Year())
}

func TestParseFlexibleTime(t *testing.T) {
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), parseFlexibleTime(json.RawMessage(`"1700000000000"`)))
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), parseFlexibleTime(json.RawMessage(`1700000000000`)))
	assert.Equal(t, 2018, parseFlexibleTime(json.RawMessage(`"Wed Oct 10 20:19:24 +0000 2018"`)).Year())
	assert.True(t, parseFlexibleTime(nil).IsZero())
	assert.True(t, parseFlexibleTime(json.RawMessage(`"garbage"`)).IsZero())
}

func TestThreadOf(t *testing.T) {
	at := func(m int) time.Time { return time.Date(2024, 1, 1, 12, m, 0, 0, time.UTC) }
	tweets := []*Tweet{
		{ID: "3", ConversationID: "1", CreatedAt: at(3)},
		{ID: "1", ConversationID: "1", CreatedAt: at(1)},
		{ID: "9", ConversationID: "8", CreatedAt: at(0)},
		{ID: "2", ConversationID: "1", CreatedAt: at(2)},
	}
	thread := threadOf(tweets, "3")
	ids := make([]string, 0, len(thread))
	for _, tw := range thread {
		ids = append(ids, tw.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}
