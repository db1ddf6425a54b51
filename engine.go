package bird

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go-bird/features"
)

type httpMethod int

const (
	methodGET httpMethod = iota
	methodPOST
	// methodGETThenPOST retries a 404 GET as a JSON POST to the same id.
	methodGETThenPOST
)

// endpoint parameterizes one GraphQL read.
type endpoint[T any] struct {
	operation string
	method    httpMethod
	// variables holds the variable sets tried in order. Later sets are only
	// used when an earlier one fails for a reason other than rate limiting.
	variables    []map[string]any
	features     features.Flags
	fieldToggles map[string]bool
	referer      string
	retry        bool
	decode       func(body []byte) (T, error)
}

// graphqlBody is the JSON payload of a GraphQL POST.
type graphqlBody struct {
	Variables    map[string]any  `json:"variables"`
	Features     features.Flags  `json:"features,omitempty"`
	FieldToggles map[string]bool `json:"fieldToggles,omitempty"`
	QueryID      string          `json:"queryId"`
}

// fetch runs ep against every candidate query id. When the first round
// fails after any candidate answered 404, the query id cache is force
// refreshed once and a second, final round is run.
func fetch[T any](ctx context.Context, c *core, ep endpoint[T]) (T, error) {
	out, _, err := fetchTracked(ctx, c, ep)
	return out, err
}

// fetchTracked is fetch that also reports whether the first round saw a 404.
// An UpstreamError ends the fetch without a refresh.
func fetchTracked[T any](ctx context.Context, c *core, ep endpoint[T]) (T, bool, error) {
	out, had404, err := fetchRound(ctx, c, ep)
	var ue *UpstreamError
	if err == nil || !had404 || ctx.Err() != nil || errors.As(err, &ue) {
		return out, had404, err
	}

	c.log.Info("query id rejected, refreshing",
		slog.String("op", ep.operation), slog.Any("error", err))
	if _, rerr := c.cfg.QueryIDs.Refresh(ctx, refreshTargets, true); rerr != nil {
		c.log.Warn("query id refresh failed", slog.String("op", ep.operation), slog.Any("error", rerr))
	}

	out, again404, err := fetchRound(ctx, c, ep)
	if err != nil && again404 && !errors.As(err, &ue) && !errors.Is(err, ErrQueryIDNotFound) {
		err = fmt.Errorf("%s: %w", ep.operation, ErrQueryIDNotFound)
	}
	return out, true, err
}

// fetchRound tries each variable set in turn. had404 reports whether any
// candidate answered 404.
func fetchRound[T any](ctx context.Context, c *core, ep endpoint[T]) (T, bool, error) {
	var zero T
	var lastErr error
	had404 := false
	for i, vars := range ep.variables {
		out, h, err := fetchCandidates(ctx, c, ep, vars)
		had404 = had404 || h
		if err == nil {
			return out, had404, nil
		}
		lastErr = err
		if isRateLimited(err) || ctx.Err() != nil {
			break
		}
		if i+1 < len(ep.variables) {
			c.log.Debug("retrying with alternate variables",
				slog.String("op", ep.operation), slog.Any("error", err))
		}
	}
	return zero, had404, lastErr
}

func fetchCandidates[T any](ctx context.Context, c *core, ep endpoint[T], vars map[string]any) (T, bool, error) {
	var zero T
	var lastErr error
	had404 := false

	for _, id := range c.candidateIDs(ep.operation) {
		if err := ctx.Err(); err != nil {
			return zero, had404, err
		}

		resp, err := callGraphQL(ctx, c, ep, id, vars)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.status == 404:
			had404 = true
			lastErr = fmt.Errorf("%s: %w", ep.operation, ErrQueryIDNotFound)
			continue
		case resp.status >= 400:
			return zero, had404, httpError(ep.operation, resp)
		}
		if err := envelopeError(ep.operation, resp.body); err != nil {
			return zero, had404, err
		}
		out, err := ep.decode(resp.body)
		if err != nil {
			lastErr = fmt.Errorf("decode %s: %w", ep.operation, err)
			c.log.Debug("undecodable response",
				slog.String("op", ep.operation), slog.String("query_id", id), slog.Any("error", err))
			continue
		}
		return out, had404, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s: %w", ep.operation, ErrQueryIDNotFound)
	}
	return zero, had404, lastErr
}

// callGraphQL issues the request for one candidate id.
func callGraphQL[T any](ctx context.Context, c *core, ep endpoint[T], queryID string, vars map[string]any) (*response, error) {
	base := operationURL(queryID, ep.operation)
	var headers map[string]string
	if ep.referer != "" {
		headers = map[string]string{"referer": ep.referer}
	}

	get := func() (*response, error) {
		var feats, toggles any
		if len(ep.features) > 0 {
			feats = ep.features
		}
		if len(ep.fieldToggles) > 0 {
			toggles = ep.fieldToggles
		}
		return c.do(ctx, request{
			operation: ep.operation,
			method:    "GET",
			url:       addGraphQLParams(base, vars, feats, toggles),
			headers:   headers,
			retry:     ep.retry,
		})
	}
	post := func() (*response, error) {
		body, err := json.Marshal(graphqlBody{
			Variables:    vars,
			Features:     ep.features,
			FieldToggles: ep.fieldToggles,
			QueryID:      queryID,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", ep.operation, err)
		}
		return c.do(ctx, request{
			operation: ep.operation,
			method:    "POST",
			url:       base,
			body:      body,
			headers:   headers,
			retry:     ep.retry,
		})
	}

	switch ep.method {
	case methodPOST:
		return post()
	case methodGETThenPOST:
		resp, err := get()
		if err != nil || resp.status != 404 {
			return resp, err
		}
		return post()
	default:
		return get()
	}
}

// httpError converts a non-404 error status into an UpstreamError.
func httpError(operation string, resp *response) *UpstreamError {
	return &UpstreamError{
		Operation: operation,
		Status:    resp.status,
		Message:   truncateBytes(resp.body, 200),
		Codes:     errorCodes(parseAPIErrors(resp.body)),
	}
}

// --- Pagination ---

// defaultPageSize is the per-request count for paginated reads.
const defaultPageSize = 20

// page is one decoded page of a paginated read.
type page[T Entity] struct {
	items  []T
	cursor string
}

// pageFunc fetches one page at cursor with the given count.
type pageFunc[T Entity] func(ctx context.Context, cursor string, count int) (page[T], error)

// paginate drives fetchPage until the limit is met, the timeline runs out,
// or MaxPages pages have been read. Items are deduplicated by EntityID
// across pages. On error the items gathered so far are returned with the
// cursor that failed.
func paginate[T Entity](ctx context.Context, opts PageOptions, fetchPage pageFunc[T]) (*Page[T], error) {
	result := &Page[T]{}
	seen := make(map[string]bool)
	cursor := opts.Cursor
	pages := 0

	for {
		count := defaultPageSize
		if opts.Limit > 0 {
			count = min(defaultPageSize, opts.Limit-len(result.Items))
		}
		p, err := fetchPage(ctx, cursor, count)
		if err != nil {
			result.NextCursor = cursor
			return result, err
		}
		pages++

		for _, item := range p.items {
			if opts.Limit > 0 && len(result.Items) >= opts.Limit {
				break
			}
			id := item.EntityID()
			if seen[id] {
				continue
			}
			seen[id] = true
			result.Items = append(result.Items, item)
		}

		if p.cursor == "" || p.cursor == cursor || len(p.items) == 0 {
			result.NextCursor = ""
			return result, nil
		}
		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			result.NextCursor = p.cursor
			return result, nil
		}
		if opts.Limit > 0 && len(result.Items) >= opts.Limit {
			result.NextCursor = p.cursor
			return result, nil
		}
		cursor = p.cursor
	}
}

// withCursor copies vars and sets cursor when non-empty.
func withCursor(vars map[string]any, cursor string) map[string]any {
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	if cursor != "" {
		out["cursor"] = cursor
	}
	return out
}
