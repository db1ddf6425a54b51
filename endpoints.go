package bird

import "fmt"

const (
	graphqlBase     = "https://x.com/i/api/graphql"
	restBase        = "https://x.com/i/api/1.1"
	legacyRESTBase  = "https://api.twitter.com/1.1"
	statusUpdateURL = restBase + "/statuses/update.json"
)

// BearerToken is the web-app bearer token.
const BearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

// GraphQL operation names.
const (
	OpCreateTweet              = "CreateTweet"
	OpCreateRetweet            = "CreateRetweet"
	OpFavoriteTweet            = "FavoriteTweet"
	OpDeleteBookmark           = "DeleteBookmark"
	OpTweetDetail              = "TweetDetail"
	OpSearchTimeline           = "SearchTimeline"
	OpUserArticlesTweets       = "UserArticlesTweets"
	OpBookmarks                = "Bookmarks"
	OpFollowing                = "Following"
	OpFollowers                = "Followers"
	OpLikes                    = "Likes"
	OpBookmarkFolderTimeline   = "BookmarkFolderTimeline"
	OpListOwnerships           = "ListOwnerships"
	OpListMemberships          = "ListMemberships"
	OpListLatestTweetsTimeline = "ListLatestTweetsTimeline"
	OpListByRestID             = "ListByRestId"
	OpUserByScreenName         = "UserByScreenName"
	OpUserTweets               = "UserTweets"
)

// fallbackQueryIDs are the built-in ids used when the cache has no entry.
var fallbackQueryIDs = map[string]string{
	OpCreateTweet:              "TAJw1rBsjAtdNgTdlo2oeg",
	OpCreateRetweet:            "ojPdsZsimiJrUGLR1sjUtA",
	OpFavoriteTweet:            "lI07N6Otwv1PhnEgXILM7A",
	OpDeleteBookmark:           "Wlmlj2-xzyS1GN3a6cj-mQ",
	OpTweetDetail:              "97JF30KziU00483E_8elBA",
	OpSearchTimeline:           "M1jEez78PEfVfbQLvlWMvQ",
	OpUserArticlesTweets:       "8zBy9h4L90aDL02RsBcCFg",
	OpBookmarks:                "RV1g3b8n_SGOHwkqKYSCFw",
	OpFollowing:                "BEkNpEt5pNETESoqMsTEGA",
	OpFollowers:                "kuFUYP9eV1FPoEy4N-pi7w",
	OpLikes:                    "JR2gceKucIKcVNB_9JkhsA",
	OpBookmarkFolderTimeline:   "KJIQpsvxrTfRIlbaRIySHQ",
	OpListOwnerships:           "wQcOSjSQ8NtgxIwvYl1lMg",
	OpListMemberships:          "BlEXXdARdSeL_0KyKHHvvg",
	OpListLatestTweetsTimeline: "2TemLyqrMpTeAmysdbnVqw",
	OpListByRestID:             "wXzyA5vM_aVkBL9G8Vp3kw",
	OpUserByScreenName:         "1VOOyvKkiI3FMmkeDNxM9A",
	OpUserTweets:               "HeWHY26ItCfUmm1e6ITjeA",
}

// historicalQueryIDs are tried after the current id for operations that
// have rotated recently.
var historicalQueryIDs = map[string][]string{
	OpBookmarks:      {"tmd4ifV8RHltzn8ymGg1aw"},
	OpTweetDetail:    {"aFvUsJm2c-oDkJV75blV6g", "_8aYOgEDz35BrBcBal1-_w"},
	OpSearchTimeline: {"5h0kNbk3ii97rmfY6CdgAA", "Tp1sewRU1AsZpBWhqCZicQ", "AIdc203rPpK_k_2KWSdm7g"},
	OpFollowers:      {"Elc_-qTARceHpztqhI9PQA"},
	OpFollowing:      {"C1qZ6bs-L3oc_TKSZyxkXQ"},
}

// refreshTargets is the operation set rediscovered on a forced refresh.
var refreshTargets = []string{
	OpCreateTweet, OpCreateRetweet, OpFavoriteTweet, OpDeleteBookmark,
	OpTweetDetail, OpSearchTimeline, OpUserArticlesTweets, OpBookmarks,
	OpFollowing, OpFollowers, OpLikes, OpBookmarkFolderTimeline,
	OpListOwnerships, OpListMemberships, OpListLatestTweetsTimeline, OpListByRestID,
	OpUserByScreenName, OpUserTweets,
}

// queryID returns the cached id for an operation, falling back to the
// built-in table.
func (c *core) queryID(operation string) string {
	if id, ok := c.cfg.QueryIDs.QueryID(operation); ok {
		return id
	}
	return fallbackQueryIDs[operation]
}

// candidateIDs returns the current id followed by known fallbacks,
// deduplicated.
func (c *core) candidateIDs(operation string) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(c.queryID(operation))
	add(fallbackQueryIDs[operation])
	for _, id := range historicalQueryIDs[operation] {
		add(id)
	}
	return ids
}

// operationURL returns the GraphQL URL for an operation and id.
func operationURL(queryID, operation string) string {
	return fmt.Sprintf("%s/%s/%s", graphqlBase, queryID, operation)
}
