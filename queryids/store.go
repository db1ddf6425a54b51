// Package queryids keeps the operation name to queryId mapping current by
// scraping the web client's bundles and caching the result in memory and on disk.
package queryids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long a discovered snapshot stays fresh.
const DefaultTTL = 24 * time.Hour

// DefaultConcurrency is the bundle fetch group size.
const DefaultConcurrency = 6

// ErrDiscovery is returned by Refresh when discovery failed and there is no
// previous snapshot to fall back to.
var ErrDiscovery = errors.New("query id discovery failed")

// ErrRefreshInProgress is returned by a concurrent Refresh when no snapshot
// exists yet.
var ErrRefreshInProgress = errors.New("query id refresh already in progress")

// Options configures a Store.
type Options struct {
	// CachePath is the snapshot file. Default: ~/.config/bird/query-ids-cache.json
	CachePath string
	// TTL applies to new snapshots and to persisted ones without their own TTL.
	TTL time.Duration
	// Fetch retrieves pages and bundles. Default: HTTPFetch.
	Fetch FetchFunc
	// Pages overrides DefaultPages.
	Pages []string
	// Concurrency is the number of bundles fetched at once.
	Concurrency int
	// Now overrides the clock.
	Now    func() time.Time
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.CachePath == "" {
		o.CachePath = DefaultCachePath()
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Fetch == nil {
		o.Fetch = HTTPFetch
	}
	if len(o.Pages) == 0 {
		o.Pages = DefaultPages
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// DefaultCachePath returns ~/.config/bird/query-ids-cache.json.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "bird", "query-ids-cache.json")
}

// Info describes the current snapshot.
type Info struct {
	Snapshot  *Snapshot
	CachePath string
	Age       time.Duration
	IsFresh   bool
}

// Store is a TTL cache of discovered query ids. It is safe for concurrent use.
type Store struct {
	opts Options

	mu       sync.Mutex
	memory   *Snapshot
	diskRead bool

	refreshing atomic.Bool
}

// New creates a Store. Nothing is read until the first lookup.
func New(opts Options) *Store {
	opts.defaults()
	return &Store{opts: opts}
}

// CachePath returns the snapshot file location.
func (s *Store) CachePath() string {
	return s.opts.CachePath
}

func (s *Store) load() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memory != nil || s.diskRead {
		return s.memory
	}
	s.diskRead = true
	s.memory = readSnapshot(s.opts.CachePath)
	return s.memory
}

func (s *Store) info(snap *Snapshot) *Info {
	age := max(0, s.opts.Now().Sub(snap.FetchedAt))
	ttl := snap.TTL
	if ttl <= 0 {
		ttl = s.opts.TTL
	}
	return &Info{
		Snapshot:  snap,
		CachePath: s.opts.CachePath,
		Age:       age,
		IsFresh:   age <= ttl,
	}
}

// SnapshotInfo returns the current snapshot, reading the cache file on first use.
func (s *Store) SnapshotInfo() (*Info, bool) {
	snap := s.load()
	if snap == nil {
		return nil, false
	}
	return s.info(snap), true
}

// QueryID returns the cached id for an operation.
func (s *Store) QueryID(operation string) (string, bool) {
	snap := s.load()
	if snap == nil {
		return "", false
	}
	id, ok := snap.IDs[operation]
	return id, ok
}

// Refresh rediscovers ids for operations unless the snapshot is still fresh
// and force is false. While another refresh is running it returns the
// current snapshot immediately. A failed discovery keeps the previous snapshot.
func (s *Store) Refresh(ctx context.Context, operations []string, force bool) (*Info, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		if info, ok := s.SnapshotInfo(); ok {
			return info, nil
		}
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	current, ok := s.SnapshotInfo()
	if ok && !force && current.IsFresh {
		return current, nil
	}

	log := s.opts.Logger
	bundles, err := discoverBundles(ctx, s.opts.Fetch, s.opts.Pages, log)
	if err != nil {
		log.Warn("query id discovery failed", slog.Any("error", err))
		return s.currentOrErr(err)
	}

	discovered, err := s.fetchAndExtract(ctx, bundles, operations)
	if err != nil {
		return s.currentOrErr(err)
	}
	if len(discovered) == 0 {
		log.Warn("query id discovery matched no operations", slog.Int("bundles", len(bundles)))
		return s.currentOrErr(fmt.Errorf("no operations matched in %d bundles", len(bundles)))
	}

	ids := make(map[string]string, len(discovered))
	for _, name := range operations {
		if d, ok := discovered[name]; ok {
			ids[name] = d.QueryID
		}
	}
	labels := make([]string, 0, len(bundles))
	for _, b := range bundles {
		labels = append(labels, bundleLabel(b))
	}
	snap := &Snapshot{
		FetchedAt: s.opts.Now().UTC().Truncate(time.Millisecond),
		TTL:       s.opts.TTL,
		IDs:       ids,
		Discovery: Discovery{
			Pages:   append([]string(nil), s.opts.Pages...),
			Bundles: labels,
		},
	}

	if err := writeSnapshot(s.opts.CachePath, snap); err != nil {
		log.Warn("query id cache not persisted", slog.String("path", s.opts.CachePath), slog.Any("error", err))
	}

	s.mu.Lock()
	s.memory = snap
	s.diskRead = true
	s.mu.Unlock()

	log.Info("query ids refreshed", slog.Int("found", len(ids)), slog.Int("requested", len(operations)))
	return s.info(snap), nil
}

// currentOrErr returns the current snapshot, or cause wrapped in ErrDiscovery
// when there is none.
func (s *Store) currentOrErr(cause error) (*Info, error) {
	if info, ok := s.SnapshotInfo(); ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrDiscovery, cause)
}

// fetchAndExtract downloads bundles in groups and scans them in bundle order
// until every operation is found.
func (s *Store) fetchAndExtract(ctx context.Context, bundles, operations []string) (map[string]Discovered, error) {
	targets := make(map[string]bool, len(operations))
	for _, name := range operations {
		targets[name] = true
	}
	discovered := make(map[string]Discovered)

	for start := 0; start < len(bundles); start += s.opts.Concurrency {
		if allFound(targets, discovered) {
			break
		}
		group := bundles[start:min(start+s.opts.Concurrency, len(bundles))]
		bodies := make([]string, len(group))

		g, gctx := errgroup.WithContext(ctx)
		for i, u := range group {
			g.Go(func() error {
				body, err := s.opts.Fetch(gctx, u)
				if err != nil {
					s.opts.Logger.Debug("bundle fetch failed", slog.String("bundle", bundleLabel(u)), slog.Any("error", err))
					return nil
				}
				bodies[i] = body
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i, u := range group {
			if bodies[i] == "" {
				continue
			}
			if extractOperations(bodies[i], bundleLabel(u), targets, discovered) {
				return discovered, nil
			}
		}
	}
	return discovered, nil
}

// ClearMemory drops the in-memory snapshot so the next read consults disk again.
func (s *Store) ClearMemory() {
	s.mu.Lock()
	s.memory = nil
	s.diskRead = false
	s.mu.Unlock()
}
