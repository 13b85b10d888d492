// Package availability answers whether a game is open for play, caching the
// settlement service's status table and coalescing concurrent lookups.
package availability

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/settle"
)

// DefaultTTL is how long a fetched status table is trusted.
const DefaultTTL = 30 * time.Second

// Source fetches the status of every game.
type Source interface {
	Status(ctx context.Context) (map[games.Kind]settle.GameStatus, error)
}

// Static is a fixed status table.
type Static map[games.Kind]settle.GameStatus

func (s Static) Status(context.Context) (map[games.Kind]settle.GameStatus, error) {
	out := make(map[games.Kind]settle.GameStatus, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// AllEnabled is a source with every game open.
func AllEnabled() Static {
	out := Static{}
	for _, g := range games.ListGames() {
		out[g.ID] = settle.GameStatus{Enabled: true}
	}
	return out
}

// Checker caches a Source for TTL. When a refresh fails the last known
// table is served; with nothing cached, games are reported open and the
// settlement service remains the final gate.
type Checker struct {
	src    Source
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	table     map[games.Kind]settle.GameStatus
	fetchedAt time.Time
}

// New creates a Checker. A zero ttl means DefaultTTL.
func New(src Source, ttl time.Duration, logger *zap.Logger) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		src:    src,
		ttl:    ttl,
		logger: logger.Named("availability"),
		now:    time.Now,
	}
}

// Check returns the status of one game. Games missing from the table are open.
func (c *Checker) Check(ctx context.Context, kind games.Kind) settle.GameStatus {
	table := c.All(ctx)
	if st, ok := table[kind]; ok {
		return st
	}
	return settle.GameStatus{Enabled: true}
}

// All returns the whole status table, refreshing it when stale.
func (c *Checker) All(ctx context.Context) map[games.Kind]settle.GameStatus {
	if table, ok := c.fresh(); ok {
		return table
	}

	v, err, _ := c.group.Do("status", func() (any, error) {
		if table, ok := c.fresh(); ok {
			return table, nil
		}
		table, err := c.src.Status(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.table = table
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return table, nil
	})
	if err != nil {
		c.logger.Warn("status refresh failed", zap.Error(err))
		c.mu.RLock()
		defer c.mu.RUnlock()
		return copyTable(c.table)
	}
	return copyTable(v.(map[games.Kind]settle.GameStatus))
}

// Invalidate forces the next lookup to refresh.
func (c *Checker) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Checker) fresh() (map[games.Kind]settle.GameStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return copyTable(c.table), true
}

func copyTable(in map[games.Kind]settle.GameStatus) map[games.Kind]settle.GameStatus {
	out := make(map[games.Kind]settle.GameStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
