package bird

import "encoding/json"

// instructionPath locates the timeline instructions inside a response body.
type instructionPath func(body []byte) ([]timelineInstruction, error)

// userTimelineInstructions reads data.user.result.timeline.timeline, falling
// back to timeline_v2.
func userTimelineInstructions(body []byte) ([]timelineInstruction, error) {
	var raw struct {
		Data struct {
			User struct {
				Result struct {
					Timeline struct {
						Timeline timelineObj `json:"timeline"`
					} `json:"timeline"`
					TimelineV2 struct {
						Timeline timelineObj `json:"timeline"`
					} `json:"timeline_v2"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if in := raw.Data.User.Result.Timeline.Timeline.Instructions; len(in) > 0 {
		return in, nil
	}
	return raw.Data.User.Result.TimelineV2.Timeline.Instructions, nil
}

func bookmarkInstructions(body []byte) ([]timelineInstruction, error) {
	var raw struct {
		Data struct {
			BookmarkTimelineV2 struct {
				Timeline timelineObj `json:"timeline"`
			} `json:"bookmark_timeline_v2"`
			BookmarkCollectionTimeline struct {
				Timeline timelineObj `json:"timeline"`
			} `json:"bookmark_collection_timeline"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if in := raw.Data.BookmarkTimelineV2.Timeline.Instructions; len(in) > 0 {
		return in, nil
	}
	return raw.Data.BookmarkCollectionTimeline.Timeline.Instructions, nil
}

func listTimelineInstructions(body []byte) ([]timelineInstruction, error) {
	var raw struct {
		Data struct {
			List struct {
				TweetsTimeline struct {
					Timeline timelineObj `json:"timeline"`
				} `json:"tweets_timeline"`
				Timeline struct {
					Timeline timelineObj `json:"timeline"`
				} `json:"timeline"`
			} `json:"list"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if in := raw.Data.List.Timeline.Timeline.Instructions; len(in) > 0 {
		return in, nil
	}
	return raw.Data.List.TweetsTimeline.Timeline.Instructions, nil
}

func searchInstructions(body []byte) ([]timelineInstruction, error) {
	var raw struct {
		Data struct {
			SearchByRawQuery struct {
				SearchTimeline struct {
					Timeline timelineObj `json:"timeline"`
				} `json:"search_timeline"`
			} `json:"search_by_raw_query"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return raw.Data.SearchByRawQuery.SearchTimeline.Timeline.Instructions, nil
}

// tweetPageDecoder maps a timeline response into tweets and its bottom cursor.
func tweetPageDecoder(path instructionPath, quoteDepth int) func([]byte) (page[*Tweet], error) {
	return func(body []byte) (page[*Tweet], error) {
		in, err := path(body)
		if err != nil {
			return page[*Tweet]{}, err
		}
		return page[*Tweet]{
			items:  parseTweetsFromInstructions(in, quoteDepth),
			cursor: extractCursor(in, "Bottom"),
		}, nil
	}
}

func userPageDecoder(path instructionPath) func([]byte) (page[*User], error) {
	return func(body []byte) (page[*User], error) {
		in, err := path(body)
		if err != nil {
			return page[*User]{}, err
		}
		return page[*User]{
			items:  parseUsersFromInstructions(in),
			cursor: extractCursor(in, "Bottom"),
		}, nil
	}
}
