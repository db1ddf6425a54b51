package queryids

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fetchedAtLayout matches the millisecond ISO-8601 form used by the web tooling.
const fetchedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Discovery records where a snapshot's ids were scraped from.
type Discovery struct {
	Pages   []string
	Bundles []string
}

// Snapshot is the result of one discovery cycle.
type Snapshot struct {
	FetchedAt time.Time
	TTL       time.Duration
	IDs       map[string]string
	Discovery Discovery
}

type snapshotFile struct {
	FetchedAt string            `json:"fetchedAt"`
	TTLMs     int64             `json:"ttlMs"`
	IDs       map[string]string `json:"ids"`
	Discovery discoveryFile     `json:"discovery"`
}

type discoveryFile struct {
	Pages   []string `json:"pages"`
	Bundles []string `json:"bundles"`
}

// MarshalJSON writes the snapshot in its on-disk form.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	pages := s.Discovery.Pages
	if pages == nil {
		pages = []string{}
	}
	bundles := s.Discovery.Bundles
	if bundles == nil {
		bundles = []string{}
	}
	return json.Marshal(snapshotFile{
		FetchedAt: s.FetchedAt.UTC().Format(fetchedAtLayout),
		TTLMs:     s.TTL.Milliseconds(),
		IDs:       s.IDs,
		Discovery: discoveryFile{Pages: pages, Bundles: bundles},
	})
}

// parseSnapshot decodes a persisted snapshot. Any missing or malformed
// required field makes the whole document invalid.
func parseSnapshot(data []byte) (*Snapshot, error) {
	var raw struct {
		FetchedAt *string        `json:"fetchedAt"`
		TTLMs     *json.Number   `json:"ttlMs"`
		IDs       map[string]any `json:"ids"`
		Discovery *struct {
			Pages   []any `json:"pages"`
			Bundles []any `json:"bundles"`
		} `json:"discovery"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if raw.FetchedAt == nil || raw.TTLMs == nil {
		return nil, fmt.Errorf("snapshot missing fetchedAt or ttlMs")
	}
	ttlMs, err := raw.TTLMs.Int64()
	if err != nil || ttlMs <= 0 {
		return nil, fmt.Errorf("snapshot ttlMs %q is not a positive integer", raw.TTLMs.String())
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, *raw.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetchedAt: %w", err)
	}
	if raw.Discovery == nil || raw.Discovery.Pages == nil || raw.Discovery.Bundles == nil {
		return nil, fmt.Errorf("snapshot missing discovery")
	}
	ids := normalizeIDs(raw.IDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("snapshot has no ids")
	}
	return &Snapshot{
		FetchedAt: fetchedAt.UTC(),
		TTL:       time.Duration(ttlMs) * time.Millisecond,
		IDs:       ids,
		Discovery: Discovery{
			Pages:   stringsOnly(raw.Discovery.Pages),
			Bundles: stringsOnly(raw.Discovery.Bundles),
		},
	}, nil
}

// normalizeIDs keeps trimmed, non-empty, charset-valid string ids.
func normalizeIDs(raw map[string]any) map[string]string {
	ids := make(map[string]string, len(raw))
	for name, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || !validQueryID(s) {
			continue
		}
		ids[name] = s
	}
	return ids
}

func stringsOnly(in []any) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// readSnapshot returns nil when the file is absent or unusable.
func readSnapshot(path string) *Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	snap, err := parseSnapshot(data)
	if err != nil {
		return nil
	}
	return snap
}

func writeSnapshot(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
