package bird

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// Doer executes one HTTP request. *stealth.BrowserClient satisfies it.
// Response header keys are lower case.
type Doer interface {
	DoWithHeaderOrder(method, url string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error)
}

const (
	maxRetries     = 2
	retryBaseDelay = 500 * time.Millisecond
)

var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// core is the HTTP and credential context shared by every capability.
type core struct {
	cfg     ClientConfig
	http    Doer
	limiter *ratelimit.Limiter
	id      clientIdentity
	log     *slog.Logger

	mu     sync.Mutex
	ct0    string
	cookie string
	userID string
	me     *CurrentUser
}

// request describes one API call.
type request struct {
	operation string
	method    string
	url       string
	body      []byte
	headers   map[string]string
	// retry wraps the call in the bounded backoff loop.
	retry bool
}

type response struct {
	status  int
	body    []byte
	headers map[string]string
}

func (c *core) credentials() (ct0, cookie, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ct0, c.cookie, c.userID
}

func (c *core) setCT0(ct0 string) {
	c.mu.Lock()
	c.ct0 = ct0
	c.cookie = replaceCookie(c.cookie, "ct0", ct0)
	c.mu.Unlock()
}

// do executes req, retrying 429 and 5xx responses when req.retry is set.
// The last attempt is returned whatever its status.
func (c *core) do(ctx context.Context, req request) (*response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, req)
		if !req.retry || attempt >= maxRetries {
			return resp, err
		}
		if err == nil && !retryableStatus[resp.status] {
			return resp, nil
		}
		if ctx.Err() != nil {
			return resp, err
		}

		retryAfter := ""
		if resp != nil {
			retryAfter = resp.headers["retry-after"]
		}
		delay := retryDelay(attempt, retryAfter, c.random)
		c.log.Debug("retrying request",
			slog.String("op", req.operation),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// retryDelay honours an integral Retry-After header, otherwise backs off
// exponentially from retryBaseDelay with up to one base of jitter.
func retryDelay(attempt int, retryAfter string, random func() float64) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && n >= 0 {
		return time.Duration(max(1, n)) * time.Second
	}
	backoff := retryBaseDelay * time.Duration(1<<attempt)
	return backoff + time.Duration(random()*float64(retryBaseDelay))
}

func (c *core) random() float64 {
	if c.cfg.rand != nil {
		return c.cfg.rand()
	}
	return rand.Float64()
}

func (c *core) sleep(ctx context.Context, d time.Duration) error {
	if c.cfg.sleep != nil {
		c.cfg.sleep(d)
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send performs one attempt. A CSRF rejection rotates ct0 and resends once.
func (c *core) send(ctx context.Context, req request) (*response, error) {
	if c.cfg.Jitter {
		if err := stealth.DefaultJitter.Sleep(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		c.recordAPICall(req.operation, false, false)
		return nil, err
	}

	if (resp.status == 200 || resp.status == 403) && classifyError(resp.body) == errCSRF {
		c.log.Warn("CSRF error 353, rotating ct0", slog.String("op", req.operation))
		c.setCT0(GenerateCT0())
		resp, err = c.roundTrip(ctx, req)
		if err != nil {
			c.recordAPICall(req.operation, false, false)
			return nil, err
		}
	}

	switch {
	case resp.status == 429:
		c.recordAPICall(req.operation, false, true)
		until := parseRateLimitReset(resp.headers["x-rate-limit-reset"])
		c.limiter.MarkRateLimited(req.operation, until)
		c.log.Warn("rate limited", slog.String("op", req.operation), slog.Time("until", until))
	case resp.status >= 400:
		c.recordAPICall(req.operation, false, false)
	default:
		if newCT0 := extractCT0FromHeaders(resp.headers); newCT0 != "" {
			if cur, _, _ := c.credentials(); newCT0 != cur {
				c.setCT0(newCT0)
				c.log.Debug("ct0 rotated by server", slog.String("op", req.operation))
			}
		}
		c.recordAPICall(req.operation, true, false)
	}
	return resp, nil
}

// roundTrip issues the HTTP call, bounded by the configured timeout.
func (c *core) roundTrip(ctx context.Context, req request) (*response, error) {
	ct0, cookie, userID := c.credentials()
	headers := apiHeaders(ct0, cookie, c.cfg.UserAgent, c.id, userID)
	for k, v := range req.headers {
		headers[k] = v
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	type result struct {
		resp *response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var body io.Reader
		if req.body != nil {
			body = bytes.NewReader(req.body)
		}
		b, h, status, err := c.http.DoWithHeaderOrder(req.method, req.url, headers, body, headerOrder)
		if h == nil {
			h = map[string]string{}
		}
		done <- result{&response{status: status, body: b, headers: h}, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &TransportError{Operation: req.operation, Err: r.err}
		}
		return r.resp, nil
	case <-ctx.Done():
		return nil, &TransportError{Operation: req.operation, Err: ctx.Err()}
	}
}

// recordAPICall calls the metrics hook if configured.
func (c *core) recordAPICall(endpoint string, success, rateLimited bool) {
	if c.cfg.MetricsHook != nil {
		c.cfg.MetricsHook(endpoint, success, rateLimited)
	}
}

// addGraphQLParams builds the full URL with variables, features, and optional fieldToggles.
func addGraphQLParams(rawURL string, variables, features any, fieldToggles ...any) string {
	v, _ := json.Marshal(variables)
	q := url.Values{}
	q.Set("variables", string(v))
	if features != nil {
		f, _ := json.Marshal(features)
		q.Set("features", string(f))
	}
	if len(fieldToggles) > 0 && fieldToggles[0] != nil {
		ft, _ := json.Marshal(fieldToggles[0])
		q.Set("fieldToggles", string(ft))
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + q.Encode()
}
