// Package features builds the GraphQL feature flag maps sent with each
// request, layered with user overrides from disk and the environment.
package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Flags is a set of GraphQL feature switches.
type Flags map[string]bool

// Clone returns a copy of f.
func (f Flags) Clone() Flags {
	out := make(Flags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Overrides replaces flags globally and per named set.
type Overrides struct {
	Global Flags            `json:"global,omitempty"`
	Sets   map[string]Flags `json:"sets,omitempty"`
}

// IsZero reports whether o overrides nothing.
func (o Overrides) IsZero() bool {
	return len(o.Global) == 0 && len(o.Sets) == 0
}

// ParseOverrides decodes an overrides document, dropping non-boolean values
// and empty sets.
func ParseOverrides(data []byte) (Overrides, error) {
	var raw struct {
		Global map[string]any            `json:"global"`
		Sets   map[string]map[string]any `json:"sets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Overrides{}, fmt.Errorf("decode feature overrides: %w", err)
	}
	o := Overrides{Global: boolsOnly(raw.Global), Sets: map[string]Flags{}}
	for name, entry := range raw.Sets {
		if flags := boolsOnly(entry); len(flags) > 0 {
			o.Sets[name] = flags
		}
	}
	return o, nil
}

func boolsOnly(in map[string]any) Flags {
	out := Flags{}
	for k, v := range in {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}

// Merge returns o with other layered on top. Sets are merged key by key.
func (o Overrides) Merge(other Overrides) Overrides {
	out := Overrides{Global: Flags{}, Sets: map[string]Flags{}}
	for k, v := range o.Global {
		out.Global[k] = v
	}
	for k, v := range other.Global {
		out.Global[k] = v
	}
	for _, src := range []map[string]Flags{o.Sets, other.Sets} {
		for name, flags := range src {
			dst, ok := out.Sets[name]
			if !ok {
				dst = Flags{}
				out.Sets[name] = dst
			}
			for k, v := range flags {
				dst[k] = v
			}
		}
	}
	return out
}

// apply layers global then set overrides onto base in place.
func (o Overrides) apply(set string, base Flags) {
	for k, v := range o.Global {
		base[k] = v
	}
	for k, v := range o.Sets[set] {
		base[k] = v
	}
}

// readOverrides returns nil when the file is absent or unusable.
func readOverrides(path string) *Overrides {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	o, err := ParseOverrides(data)
	if err != nil {
		return nil
	}
	return &o
}

func writeOverrides(path string, o Overrides) error {
	sets := map[string]Flags{}
	for name, flags := range o.Sets {
		if len(flags) > 0 {
			sets[name] = flags
		}
	}
	o.Sets = sets

	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feature overrides: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create features dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write feature overrides: %w", err)
	}
	return nil
}
