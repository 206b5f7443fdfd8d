// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Registry owns the active rule snapshot for one configuration source.
//
// Description:
//
//	The registry loads its source once at construction. Every read
//	(Resolve, All, Snapshot) first compares the source's change indicator
//	with the one recorded at the last load; a newer indicator triggers a
//	synchronous reload whose result is published atomically before the
//	read is answered. Concurrent reloads collapse into one.
//
//	A missing or malformed source yields an empty snapshot. Callers must
//	treat zero violations as ambiguous in that case.
//
// Thread Safety:
//
//	Safe for concurrent use. Snapshots are never mutated after publication.
type Registry struct {
	source   ConfigSource
	logger   *slog.Logger
	onReload func(*Snapshot)

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	group   singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReloadHook registers fn to be called with every newly published
// snapshot, including the initial one.
func WithReloadHook(fn func(*Snapshot)) Option {
	return func(r *Registry) {
		r.onReload = fn
	}
}

// NewRegistry creates a registry over source and performs the initial load.
func NewRegistry(source ConfigSource, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "policy_registry", "source", source.Name())
	r.Load()
	return r
}

// Load reads the source, builds a snapshot and publishes it.
func (r *Registry) Load() *Snapshot {
	snap := r.build()
	r.current.Store(snap)
	if r.onReload != nil {
		r.onReload(snap)
	}
	return snap
}

// Reload forces a load. Concurrent calls share one read of the source.
func (r *Registry) Reload() *Snapshot {
	v, _, _ := r.group.Do("reload", func() (any, error) {
		return r.Load(), nil
	})
	return v.(*Snapshot)
}

// Snapshot returns the active snapshot after the staleness check.
func (r *Registry) Snapshot() *Snapshot {
	r.refreshIfStale()
	return r.current.Load()
}

// Resolve returns the active rules whose id is in ids, in snapshot order.
// Unknown ids are ignored and an empty request yields no rules.
func (r *Registry) Resolve(ids []string) []Rule {
	return r.Snapshot().Select(ids)
}

// All returns every active rule.
func (r *Registry) All() []Rule {
	snap := r.Snapshot()
	out := make([]Rule, len(snap.Rules))
	copy(out, snap.Rules)
	return out
}

// Source returns the configuration source name.
func (r *Registry) Source() string {
	return r.source.Name()
}

// refreshIfStale reloads when the source changed since the last load. A
// source that cannot be stat'ed keeps the current snapshot.
func (r *Registry) refreshIfStale() {
	cur := r.current.Load()
	modTime, err := r.source.Stat()
	if err != nil {
		r.logger.Debug("rule source unavailable, keeping current snapshot",
			"version", cur.Version, "error", err)
		return
	}
	if !modTime.After(cur.ModTime) {
		return
	}
	r.logger.Info("rule source changed, reloading",
		"previous_mod_time", cur.ModTime, "mod_time", modTime)
	r.Reload()
}

// build reads and parses the source. It never fails; problems produce an
// empty snapshot and a log entry.
func (r *Registry) build() *Snapshot {
	version := r.version.Add(1)

	empty := func(modTime time.Time) *Snapshot {
		s := newSnapshot([]Rule{})
		s.Version = version
		s.Source = r.source.Name()
		s.ModTime = modTime
		return s
	}

	// Stat before Read: a write landing in between leaves an older
	// indicator recorded and is picked up by the next check.
	modTime, err := r.source.Stat()
	if err != nil {
		r.logger.Warn("rule source missing, using empty rule set", "error", err)
		return empty(time.Time{})
	}
	raw, err := r.source.Read()
	if err != nil {
		r.logger.Warn("rule source unreadable, using empty rule set", "error", err)
		return empty(modTime)
	}

	res, err := Parse(raw, r.logger)
	if err != nil {
		r.logger.Warn("rule source malformed, using empty rule set", "error", err)
		s := empty(modTime)
		s.Fingerprint = Fingerprint(raw)
		return s
	}

	snap := newSnapshot(res.Rules)
	snap.Version = version
	snap.Source = r.source.Name()
	snap.ModTime = modTime
	snap.Fingerprint = Fingerprint(raw)
	snap.Dropped = res.Dropped
	r.logger.Info("rules loaded",
		"version", version, "rules", snap.Len(), "dropped", res.Dropped, "fingerprint", snap.Fingerprint)
	return snap
}
