// Package knowledge records which secondary kanji readings the learner has
// already met through vocabulary they started studying.
//
// The cache is a mapping from kanji subject id to a set of readings plus a
// watermark. Only study events that started after the watermark are scanned
// on the next update, and the watermark moves forward only when such events
// were processed. Sets never shrink.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/japaniel/yomiwake/pkg/kana"
	"github.com/japaniel/yomiwake/pkg/kvstore"
	"github.com/japaniel/yomiwake/pkg/match"
	"github.com/japaniel/yomiwake/pkg/subject"
)

// DefaultKey is the store key the cache record lives under.
const DefaultKey = "knowledge/secondary-readings"

// ErrUnavailable is returned by Reset when the cache has no working store.
var ErrUnavailable = errors.New("knowledge cache store unavailable")

// Mode tells whether the cache is backed by its store.
type Mode int

const (
	// Persistent caches were loaded from, and write back to, their store.
	Persistent Mode = iota
	// Disabled caches lost their store and live in memory for the rest of the run.
	Disabled
)

func (m Mode) String() string {
	if m == Disabled {
		return "disabled"
	}
	return "persistent"
}

// MatchFunc attributes a vocabulary item; false means no attribution was found.
type MatchFunc func(v subject.Vocabulary) ([]match.Step, bool)

// Options configures a Cache.
type Options struct {
	Key    string
	Logger zerolog.Logger
	// Now is the clock used to advance the watermark. Defaults to time.Now.
	Now func() time.Time
}

// Cache is the secondary-reading knowledge cache.
type Cache struct {
	readings  map[int]map[string]struct{}
	watermark time.Time
	store     kvstore.Store
	key       string
	mode      Mode
	log       zerolog.Logger
	now       func() time.Time
}

// record is the persisted form; sets are stored as sorted slices.
type record struct {
	Watermark time.Time        `json:"watermark"`
	Readings  map[int][]string `json:"readings"`
}

// UpdateStats summarises one update pass.
type UpdateStats struct {
	Eligible  int
	Matched   int
	Added     int
	Persisted bool
}

// New returns an empty cache with a zero watermark. A nil store yields a
// Disabled cache.
func New(store kvstore.Store, opts Options) *Cache {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache{
		readings: make(map[int]map[string]struct{}),
		store:    store,
		key:      opts.Key,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if store == nil {
		c.mode = Disabled
	}
	return c
}

// Load reads the cache record from store. A missing or undecodable record
// gives an empty cache with a zero watermark. A store failure is logged and
// gives an empty Disabled cache; it is never returned to the caller.
func Load(ctx context.Context, store kvstore.Store, opts Options) *Cache {
	c := New(store, opts)
	if c.mode == Disabled {
		return c
	}

	data, err := store.Get(ctx, c.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		c.log.Debug().Str("key", c.key).Msg("no knowledge record, starting empty")
		return c
	}
	if err != nil {
		c.disable(err, "load knowledge record")
		return c
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// The store works, so the cache stays persistent and the next
		// write replaces the bad record.
		c.log.Warn().Err(err).Str("key", c.key).Msg("discarding unreadable knowledge record")
		return c
	}
	for id, readings := range rec.Readings {
		for _, r := range readings {
			c.add(id, r)
		}
	}
	c.watermark = rec.Watermark
	c.log.Debug().
		Int("characters", len(c.readings)).
		Time("watermark", c.watermark).
		Msg("knowledge record loaded")
	return c
}

func (c *Cache) disable(err error, action string) {
	c.mode = Disabled
	c.log.Warn().Err(err).Str("key", c.key).Msgf("%s failed, knowledge cache is in-memory only for this run", action)
}

// Mode reports whether the cache is persistent or disabled.
func (c *Cache) Mode() Mode { return c.mode }

// Watermark returns the start time of the newest study event absorbed so far.
func (c *Cache) Watermark() time.Time { return c.watermark }

// Len returns the number of recorded (character, reading) pairs.
func (c *Cache) Len() int {
	n := 0
	for _, set := range c.readings {
		n += len(set)
	}
	return n
}

// Known reports whether reading has been recorded for the character.
func (c *Cache) Known(characterID int, reading string) bool {
	_, ok := c.readings[characterID][kana.Fold(reading)]
	return ok
}

// Add records a secondary reading. It reports whether the pair was new.
// Add does not persist; persistence happens at the end of Update.
func (c *Cache) Add(characterID int, reading string) bool {
	return c.add(characterID, kana.Fold(reading))
}

func (c *Cache) add(characterID int, reading string) bool {
	set, ok := c.readings[characterID]
	if !ok {
		set = make(map[string]struct{})
		c.readings[characterID] = set
	}
	if _, ok := set[reading]; ok {
		return false
	}
	set[reading] = struct{}{}
	return true
}

// Snapshot returns a copy of the mapping with sorted readings.
func (c *Cache) Snapshot() map[int][]string {
	out := make(map[int][]string, len(c.readings))
	for id, set := range c.readings {
		readings := make([]string, 0, len(set))
		for r := range set {
			readings = append(readings, r)
		}
		sort.Strings(readings)
		out[id] = readings
	}
	return out
}

// Update absorbs study events that started after the watermark. Every
// secondary reading used by an eligible, attributable event is added. When at
// least one event was eligible the watermark moves to now and the record is
// written back; otherwise nothing changes and the store is not touched.
func (c *Cache) Update(ctx context.Context, events []subject.StudyEvent, fn MatchFunc) UpdateStats {
	var stats UpdateStats
	since := c.watermark

	for _, ev := range events {
		if !ev.StartedAt.After(since) {
			continue
		}
		stats.Eligible++

		steps, ok := fn(ev.Vocabulary)
		if !ok {
			c.log.Debug().
				Int("subject_id", ev.Vocabulary.ID).
				Str("characters", ev.Vocabulary.Characters).
				Msg("no reading attribution, skipping study event")
			continue
		}
		stats.Matched++
		for _, s := range steps {
			if s.Primary {
				continue
			}
			if c.Add(s.CharacterID, s.Reading) {
				stats.Added++
			}
		}
	}

	if stats.Eligible == 0 {
		return stats
	}

	c.watermark = c.now()
	stats.Persisted = c.persist(ctx)
	c.log.Info().
		Int("eligible", stats.Eligible).
		Int("matched", stats.Matched).
		Int("added", stats.Added).
		Bool("persisted", stats.Persisted).
		Msg("knowledge cache updated")
	return stats
}

// Reset clears the mapping and watermark and writes the empty record.
func (c *Cache) Reset(ctx context.Context) error {
	c.readings = make(map[int]map[string]struct{})
	c.watermark = time.Time{}
	if c.mode == Disabled {
		return ErrUnavailable
	}
	if !c.persist(ctx) {
		return fmt.Errorf("write knowledge record %s: %w", c.key, ErrUnavailable)
	}
	return nil
}

func (c *Cache) persist(ctx context.Context) bool {
	if c.mode == Disabled {
		return false
	}
	data, err := json.Marshal(record{Watermark: c.watermark, Readings: c.Snapshot()})
	if err != nil {
		c.disable(err, "encode knowledge record")
		return false
	}
	if err := c.store.Put(ctx, c.key, data); err != nil {
		c.disable(err, "store knowledge record")
		return false
	}
	return true
}
