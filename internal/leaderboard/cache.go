package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

// Entry is one row of an event leaderboard.
type Entry struct {
	Rank          int            `json:"rank"`
	ParticipantID uuid.UUID      `json:"participant_id"`
	DisplayName   string         `json:"display_name"`
	Avatar        string         `json:"avatar"`
	Points        int            `json:"points"`
	Badges        []models.Badge `json:"badges"`
}

type cacheItem struct {
	entries   []Entry
	expiresAt time.Time
}

// Cache serves leaderboards from an LRU of recently read events. Entries are
// dropped after ttl or as soon as a change to the event is committed.
type Cache struct {
	reader engagement.Reader
	lru    *lru.Cache[uuid.UUID, cacheItem]
	ttl    time.Duration
	now    func() time.Time

	// gen counts invalidations across all events. A load only fills the
	// cache if no invalidation committed while it was reading.
	mu  sync.Mutex
	gen uint64
}

// New creates a cache holding at most size leaderboards.
func New(reader engagement.Reader, size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New[uuid.UUID, cacheItem](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{
		reader: reader,
		lru:    l,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Get returns the leaderboard of an event, best rank first.
func (c *Cache) Get(ctx context.Context, eventID uuid.UUID) ([]Entry, error) {
	if it, ok := c.lru.Get(eventID); ok {
		if c.now().Before(it.expiresAt) {
			return it.entries, nil
		}
		c.lru.Remove(eventID)
	}

	gen := c.generation()
	participants, err := c.reader.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, Entry{
			Rank:          p.Rank,
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Avatar:        p.Avatar,
			Points:        p.Points,
			Badges:        p.Badges,
		})
	}

	// A commit that landed while we were reading makes this result stale.
	c.mu.Lock()
	if c.gen == gen {
		c.lru.Add(eventID, cacheItem{entries: entries, expiresAt: c.now().Add(c.ttl)})
	}
	c.mu.Unlock()
	return entries, nil
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Invalidate drops the cached leaderboard of an event.
func (c *Cache) Invalidate(eventID uuid.UUID) {
	c.mu.Lock()
	c.gen++
	c.lru.Remove(eventID)
	c.mu.Unlock()
}

// Hook invalidates the event's leaderboard after every committed change.
func (c *Cache) Hook() engagement.Hook {
	return func(ctx context.Context, o engagement.Outcome) error {
		c.Invalidate(o.EventID)
		return nil
	}
}
