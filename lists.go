package bird

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anatolykoptev/go-bird/features"
)

const listPageSize = 100

type listService struct{ c *core }

// OwnedLists returns the lists owned by the current account.
func (s listService) OwnedLists(ctx context.Context) ([]*List, error) {
	return s.accountLists(ctx, OpListOwnerships)
}

// ListMemberships returns the lists the current account belongs to.
func (s listService) ListMemberships(ctx context.Context) ([]*List, error) {
	return s.accountLists(ctx, OpListMemberships)
}

func (s listService) accountLists(ctx context.Context, operation string) ([]*List, error) {
	me, err := s.c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s.c, endpoint[[]*List]{
		operation: operation,
		variables: []map[string]any{{
			"userId":                   me.ID,
			"count":                    listPageSize,
			"isListMembershipShown":    true,
			"isListMemberTargetUserId": me.ID,
		}},
		features: s.c.cfg.Features.Build(features.SetLists),
		decode: func(body []byte) ([]*List, error) {
			in, err := userTimelineInstructions(body)
			if err != nil {
				return nil, err
			}
			return parseListsFromInstructions(in), nil
		},
	})
}

// ListTimeline pages through the latest tweets of a list.
func (s listService) ListTimeline(ctx context.Context, listID string, opts PageOptions) (*Page[*Tweet], error) {
	feats := s.c.cfg.Features.Build(features.SetLists)
	decode := tweetPageDecoder(listTimelineInstructions, s.c.cfg.quoteDepth())
	return paginate(ctx, opts, func(ctx context.Context, cursor string, count int) (page[*Tweet], error) {
		return fetch(ctx, s.c, endpoint[page[*Tweet]]{
			operation: OpListLatestTweetsTimeline,
			variables: []map[string]any{withCursor(map[string]any{
				"listId":                 listID,
				"count":                  count,
				"includePromotedContent": false,
				"withClientEventToken":   false,
				"withBirdwatchNotes":     false,
				"withVoice":              true,
			}, cursor)},
			features: feats,
			decode:   decode,
		})
	})
}

// ListByID fetches a single list.
func (s listService) ListByID(ctx context.Context, listID string) (*List, error) {
	l, err := fetch(ctx, s.c, endpoint[*List]{
		operation: OpListByRestID,
		variables: []map[string]any{{"listId": listID}},
		features:  s.c.cfg.Features.Build(features.SetLists),
		decode: func(body []byte) (*List, error) {
			var raw struct {
				Data struct {
					List *listNode `json:"list"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, err
			}
			return mapList(raw.Data.List), nil
		},
	})
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%s %s: %w", OpListByRestID, listID, ErrNotFound)
	}
	return l, nil
}
