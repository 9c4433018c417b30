// Package registry loads and validates the target list (spec.md §4.1): a
// pure function from a JSON file to an ordered list of types.Target, seeding
// a default file on first run. Grounded on the original Python tool's
// load_addresses()/create_default_config() (_examples/original_source/icmp_monitor/icmp_monitor.py)
// and on the teacher engine's config-loading style in engine/config.go.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"icmpmon/internal/types"
)

// ErrMalformed is wrapped and returned when the registry file contains
// invalid JSON. Callers treat this as fatal per spec.md §7.
var ErrMalformed = fmt.Errorf("registry: malformed configuration file")

type jsonTarget struct {
	ID   int64  `json:"id"`
	Addr string `json:"addr"`
	Desc string `json:"desc"`
}

// DefaultTargets returns the four-DNS-resolver default target set seeded
// on first run, matching the original tool's create_default_config().
func DefaultTargets() []types.Target {
	entries := []jsonTarget{
		{ID: 1, Addr: "1.1.1.1", Desc: "Cloudflare DNS Primary"},
		{ID: 2, Addr: "1.0.0.1", Desc: "Cloudflare DNS Secondary"},
		{ID: 3, Addr: "8.8.8.8", Desc: "Google DNS Primary"},
		{ID: 4, Addr: "8.8.4.4", Desc: "Google DNS Secondary"},
	}
	return toTargets(entries)
}

func toTargets(entries []jsonTarget) []types.Target {
	out := make([]types.Target, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.Target{
			ID:          e.ID,
			Address:     e.Addr,
			Description: e.Desc,
			Tests:       []types.ProbeKind{types.IcmpProbe},
		})
	}
	return out
}

// Load reads path and returns the ordered target list. If the file is
// absent, it writes the default four-target file and returns that default
// set. Malformed JSON is a fatal error (wraps ErrMalformed). Duplicate
// target_id or empty address also fail validation.
func Load(path string) ([]types.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("registry: read %s: %w", path, err)
		}
		defaults := DefaultTargets()
		if werr := writeDefault(path, defaults); werr != nil {
			return nil, fmt.Errorf("registry: write default config %s: %w", path, werr)
		}
		return defaults, nil
	}

	var entries []jsonTarget
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	targets := toTargets(entries)
	if err := validate(targets); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return targets, nil
}

func validate(targets []types.Target) error {
	seen := make(map[int64]bool, len(targets))
	for _, t := range targets {
		if t.Address == "" {
			return fmt.Errorf("target %d: address is empty", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("target %d: duplicate target_id", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func writeDefault(path string, targets []types.Target) error {
	entries := make([]jsonTarget, 0, len(targets))
	for _, t := range targets {
		entries = append(entries, jsonTarget{ID: t.ID, Addr: t.Address, Desc: t.Description})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Upserter is the subset of the Store's write surface the registry needs to
// sync the loaded targets into durable storage at startup.
type Upserter interface {
	UpsertTarget(ctx context.Context, t types.Target) error
}

// Sync upserts every target into store, matching by target_id and replacing
// description/address (spec.md §4.1). The first failure aborts the sync —
// at startup this is treated as Store-unavailable (spec.md §7), unlike the
// per-probe write path which swallows transient failures.
func Sync(ctx context.Context, store Upserter, targets []types.Target) error {
	for _, t := range targets {
		if err := store.UpsertTarget(ctx, t); err != nil {
			return fmt.Errorf("registry: upsert target %d: %w", t.ID, err)
		}
	}
	return nil
}
