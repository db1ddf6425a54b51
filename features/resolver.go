package features

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Options configures a Resolver.
type Options struct {
	// CachePath is the overrides file. Default: ~/.config/bird/features.json
	CachePath string
	// EnvJSON is a raw overrides document resolved from the environment.
	EnvJSON string
	// Bundled is layered under the file when RefreshCache rewrites it.
	Bundled Overrides
	Logger  *slog.Logger
}

// DefaultCachePath returns ~/.config/bird/features.json.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "bird", "features.json")
}

// Snapshot is the effective override state.
type Snapshot struct {
	CachePath string
	Overrides Overrides
}

// Resolver produces flag sets with precedence
// defaults < file global < file set < env global < env set.
// Override sources are read once and cached until Clear.
type Resolver struct {
	opts Options

	mu     sync.Mutex
	loaded bool
	file   Overrides
	env    Overrides
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	if opts.CachePath == "" {
		opts.CachePath = DefaultCachePath()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resolver{opts: opts}
}

func (r *Resolver) load() (file, env Overrides) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.file, r.env
	}
	r.file = r.opts.Bundled
	if o := readOverrides(r.opts.CachePath); o != nil {
		r.file = r.file.Merge(*o)
	}
	r.env = Overrides{}
	if r.opts.EnvJSON != "" {
		o, err := ParseOverrides([]byte(r.opts.EnvJSON))
		if err != nil {
			r.opts.Logger.Warn("ignoring feature overrides from environment", slog.Any("error", err))
		} else {
			r.env = o
		}
	}
	r.loaded = true
	return r.file, r.env
}

// Build returns the flags for a named set with all overrides applied.
func (r *Resolver) Build(set string) Flags {
	return r.Apply(set, Defaults(set))
}

// Apply layers the overrides for set onto a copy of base.
func (r *Resolver) Apply(set string, base Flags) Flags {
	file, env := r.load()
	out := base.Clone()
	file.apply(set, out)
	env.apply(set, out)
	return out
}

// Snapshot reports the merged overrides currently in effect.
func (r *Resolver) Snapshot() Snapshot {
	file, env := r.load()
	return Snapshot{CachePath: r.opts.CachePath, Overrides: file.Merge(env)}
}

// RefreshCache rewrites the overrides file from the bundled overrides and
// the current file contents, then drops the in-memory cache.
func (r *Resolver) RefreshCache() (Snapshot, error) {
	merged := r.opts.Bundled
	if o := readOverrides(r.opts.CachePath); o != nil {
		merged = merged.Merge(*o)
	}
	if err := writeOverrides(r.opts.CachePath, merged); err != nil {
		return Snapshot{}, err
	}
	r.Clear()
	return Snapshot{CachePath: r.opts.CachePath, Overrides: merged}, nil
}

// Clear forgets the cached override sources.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.loaded = false
	r.file = Overrides{}
	r.env = Overrides{}
	r.mu.Unlock()
}
