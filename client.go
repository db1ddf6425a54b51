package bird

import (
	"fmt"
	"time"

	"github.com/anatolykoptev/go-bird/features"
	"github.com/anatolykoptev/go-bird/queryids"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// Client is the top-level X web API client. Each capability is served by its
// own component sharing one HTTP and credential context.
type Client struct {
	core *core

	userService
	listService
	timelineService
	searchService
	tweetService
	mutationService
}

// NewClient creates a fully-wired client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.AuthToken == "" || cfg.CT0 == "" {
		return nil, ErrMissingCredentials
	}
	cfg.defaults()

	transport := cfg.Transport
	if transport == nil {
		opts := []stealth.ClientOption{
			stealth.WithHeaderOrder(headerOrder),
		}
		if cfg.Proxy != "" {
			opts = append(opts, stealth.WithProxy(cfg.Proxy))
		}
		bc, err := stealth.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("stealth client: %w", err)
		}
		transport = bc
	}

	c := &core{
		cfg:     cfg,
		http:    transport,
		limiter: ratelimit.NewLimiter(cfg.RateLimit),
		id:      newClientIdentity(),
		log:     cfg.Logger,
		ct0:     cfg.CT0,
		cookie:  cfg.CookieHeader,
	}
	return &Client{
		core:            c,
		userService:     userService{c},
		listService:     listService{c},
		timelineService: timelineService{c},
		searchService:   searchService{c},
		tweetService:    tweetService{c},
		mutationService: mutationService{c},
	}, nil
}

// QueryIDs returns the query id cache used by the client.
func (c *Client) QueryIDs() *queryids.Store {
	return c.core.cfg.QueryIDs
}

// Features returns the feature flag resolver used by the client.
func (c *Client) Features() *features.Resolver {
	return c.core.cfg.Features
}

// RateLimitedUntil reports when a rate-limited operation becomes available
// again. ok is false when the operation is not currently limited.
func (c *Client) RateLimitedUntil(operation string) (until time.Time, ok bool) {
	if !c.core.limiter.IsRateLimited(operation) {
		return time.Time{}, false
	}
	return c.core.limiter.AvailableAt(operation), true
}
