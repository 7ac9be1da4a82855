package analysis

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/annograph/internal/corpus"
)

// Source supplies the current corpus table and a cheap version check.
type Source interface {
	TableVersion(ctx context.Context) (string, error)
	LoadTable(ctx context.Context) (*corpus.Table, error)
}

// TableSource serves a table that never changes.
type TableSource struct {
	Table *corpus.Table
}

func (s TableSource) TableVersion(context.Context) (string, error) {
	return s.Table.Version, nil
}

func (s TableSource) LoadTable(context.Context) (*corpus.Table, error) {
	return s.Table, nil
}

// Cache holds the snapshot of the latest table version. A new version
// replaces the pointer atomically; published snapshots are never modified.
// Concurrent requests for the same version share one build.
type Cache struct {
	analyzer *Analyzer
	current  atomic.Pointer[Snapshot]
	group    singleflight.Group
}

// NewCache creates an empty cache.
func NewCache(a *Analyzer) *Cache {
	return &Cache{analyzer: a}
}

// Current returns the last published snapshot, or nil.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Snapshot returns the snapshot for the source's current version, building
// it when the version changed.
func (c *Cache) Snapshot(ctx context.Context, src Source) (*Snapshot, error) {
	version, err := src.TableVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("table version: %w", err)
	}
	if s := c.lookup(version); s != nil {
		return s, nil
	}
	return c.build(ctx, version, src.LoadTable)
}

// Get returns the snapshot for table, building it when its version is not
// the cached one.
func (c *Cache) Get(ctx context.Context, table *corpus.Table) (*Snapshot, error) {
	if table == nil {
		table = corpus.Empty()
	}
	if s := c.lookup(table.Version); s != nil {
		return s, nil
	}
	return c.build(ctx, table.Version, func(context.Context) (*corpus.Table, error) { return table, nil })
}

func (c *Cache) lookup(version string) *Snapshot {
	s := c.current.Load()
	hit := s != nil && s.Version == version
	if c.analyzer.recorder != nil {
		c.analyzer.recorder.RecordCacheLookup(hit)
	}
	if !hit {
		return nil
	}
	return s
}

func (c *Cache) build(ctx context.Context, version string, load func(context.Context) (*corpus.Table, error)) (*Snapshot, error) {
	// The build is shared, so one caller going away must not cancel it.
	buildCtx := context.WithoutCancel(ctx)

	v, err, shared := c.group.Do(version, func() (any, error) {
		if s := c.current.Load(); s != nil && s.Version == version {
			return s, nil
		}
		table, err := load(buildCtx)
		if err != nil {
			return nil, fmt.Errorf("load table: %w", err)
		}
		s, err := c.analyzer.Analyze(buildCtx, table)
		if err != nil {
			return nil, err
		}
		c.current.Store(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("snapshot build shared", "version", version)
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}
