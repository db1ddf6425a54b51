package bird

import (
	"context"

	"github.com/anatolykoptev/go-bird/features"
)

type searchService struct{ c *core }

// Search pages through latest-first results for query. Pages are requested
// as JSON POSTs.
func (s searchService) Search(ctx context.Context, query string, opts PageOptions) (*Page[*Tweet], error) {
	feats := s.c.cfg.Features.Build(features.SetSearch)
	decode := tweetPageDecoder(searchInstructions, s.c.cfg.quoteDepth())
	return paginate(ctx, opts, func(ctx context.Context, cursor string, count int) (page[*Tweet], error) {
		return fetch(ctx, s.c, endpoint[page[*Tweet]]{
			operation: OpSearchTimeline,
			method:    methodPOST,
			variables: []map[string]any{withCursor(map[string]any{
				"rawQuery":    query,
				"count":       count,
				"querySource": "typed_query",
				"product":     "Latest",
			}, cursor)},
			features: feats,
			retry:    true,
			decode:   decode,
		})
	})
}
