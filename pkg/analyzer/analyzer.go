// Package analyzer runs the attribution pipeline: it fetches kanji and
// vocabulary from a provider, brings the knowledge cache up to date with the
// learner's study history and classifies the vocabulary in the lesson queue.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/japaniel/yomiwake/pkg/classify"
	"github.com/japaniel/yomiwake/pkg/db"
	"github.com/japaniel/yomiwake/pkg/knowledge"
	"github.com/japaniel/yomiwake/pkg/kvstore"
	"github.com/japaniel/yomiwake/pkg/match"
	"github.com/japaniel/yomiwake/pkg/subject"
	"github.com/japaniel/yomiwake/pkg/token"
)

// Provider supplies the learning-progress records.
type Provider interface {
	// Characters returns all kanji up to the learner's current level.
	Characters(ctx context.Context) ([]subject.Character, error)
	// StartedVocabulary returns vocabulary started after since (all when since is zero).
	StartedVocabulary(ctx context.Context, since time.Time) ([]subject.StudyEvent, error)
	// PendingVocabulary returns vocabulary unlocked but not yet started.
	PendingVocabulary(ctx context.Context) ([]subject.Vocabulary, error)
}

// UpdateRecorder is implemented by stores that keep an audit trail of cache updates.
type UpdateRecorder interface {
	RecordUpdate(ctx context.Context, run db.UpdateRun) error
}

// Options configures an Analyzer.
type Options struct {
	CacheKey  string
	Logger    zerolog.Logger
	Tokenizer *token.Tokenizer
	Now       func() time.Time
}

// Analyzer wires a provider and a store into the pipeline.
type Analyzer struct {
	provider  Provider
	store     kvstore.Store
	cacheKey  string
	tokenizer *token.Tokenizer
	log       zerolog.Logger
	now       func() time.Time
}

// New creates an Analyzer. store may be nil, in which case the knowledge cache
// lives in memory only.
func New(provider Provider, store kvstore.Store, opts Options) *Analyzer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = token.New(nil)
	}
	if opts.CacheKey == "" {
		opts.CacheKey = knowledge.DefaultKey
	}
	return &Analyzer{
		provider:  provider,
		store:     store,
		cacheKey:  opts.CacheKey,
		tokenizer: opts.Tokenizer,
		log:       opts.Logger,
		now:       opts.Now,
	}
}

// Item is the classification of one vocabulary item.
type Item struct {
	ID         int             `json:"id"`
	Characters string          `json:"characters"`
	Reading    string          `json:"reading"`
	Status     string          `json:"status"`
	Result     classify.Result `json:"result"`
	// Error describes why the item could not be attributed, if it was malformed.
	Error string `json:"error,omitempty"`
}

// Report is the output of a pipeline run.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	CacheMode   string                  `json:"cache_mode"`
	Watermark   time.Time               `json:"watermark"`
	Update      knowledge.UpdateStats   `json:"update"`
	Items       []Item                  `json:"items"`
	Results     map[int]classify.Result `json:"-"`
}

// Counts tallies items per status.
func (r *Report) Counts() map[classify.Status]int {
	counts := make(map[classify.Status]int, 3)
	for _, res := range r.Results {
		counts[res.Status()]++
	}
	return counts
}

// Session is the loaded state a run classifies against.
type Session struct {
	Matcher *match.Matcher
	Cache   *knowledge.Cache
	log     zerolog.Logger
}

// Open fetches the kanji set and loads the knowledge cache. A fetch failure is
// returned; a cache failure only degrades the cache.
func (a *Analyzer) Open(ctx context.Context) (*Session, error) {
	chars, err := a.provider.Characters(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch characters: %w", err)
	}
	cache := knowledge.Load(ctx, a.store, knowledge.Options{
		Key:    a.cacheKey,
		Logger: a.log,
		Now:    a.now,
	})
	return &Session{
		Matcher: match.NewMatcher(chars, a.tokenizer),
		Cache:   cache,
		log:     a.log,
	}, nil
}

// Refresh absorbs study events that happened since the cache watermark.
func (a *Analyzer) Refresh(ctx context.Context, s *Session) (knowledge.UpdateStats, error) {
	events, err := a.provider.StartedVocabulary(ctx, s.Cache.Watermark())
	if err != nil {
		return knowledge.UpdateStats{}, fmt.Errorf("fetch study history: %w", err)
	}
	return a.update(ctx, s, events), nil
}

func (a *Analyzer) update(ctx context.Context, s *Session, events []subject.StudyEvent) knowledge.UpdateStats {
	stats := s.Cache.Update(ctx, events, s.matchFunc())
	if !stats.Persisted {
		return stats
	}
	if rec, ok := a.store.(UpdateRecorder); ok {
		run := db.UpdateRun{
			RanAt:     a.now(),
			Watermark: s.Cache.Watermark(),
			Eligible:  stats.Eligible,
			Matched:   stats.Matched,
			Added:     stats.Added,
		}
		if err := rec.RecordUpdate(ctx, run); err != nil {
			a.log.Warn().Err(err).Msg("failed to record update run")
		}
	}
	return stats
}

// Run executes the whole pipeline. Every provider fetch happens before the
// cache is modified, so a failed fetch leaves the stored cache untouched.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	s, err := a.Open(ctx)
	if err != nil {
		return nil, err
	}
	events, err := a.provider.StartedVocabulary(ctx, s.Cache.Watermark())
	if err != nil {
		return nil, fmt.Errorf("fetch study history: %w", err)
	}
	pending, err := a.provider.PendingVocabulary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch lesson queue: %w", err)
	}

	stats := a.update(ctx, s, events)

	report := &Report{
		GeneratedAt: a.now(),
		CacheMode:   s.Cache.Mode().String(),
		Watermark:   s.Cache.Watermark(),
		Update:      stats,
		Results:     make(map[int]classify.Result, len(pending)),
	}
	for _, v := range pending {
		item := s.Classify(v)
		report.Items = append(report.Items, item)
		report.Results[v.ID] = item.Result
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].ID < report.Items[j].ID
	})

	counts := report.Counts()
	a.log.Info().
		Int("pending", len(pending)).
		Int("easy", counts[classify.Easy]).
		Int("new_reading", counts[classify.NewReading]).
		Int("known_reading", counts[classify.KnownReading]).
		Str("cache", report.CacheMode).
		Msg("lesson queue classified")
	return report, nil
}

func (s *Session) matchFunc() knowledge.MatchFunc {
	return func(v subject.Vocabulary) ([]match.Step, bool) {
		steps, ok, err := s.Matcher.Attribute(v)
		if err != nil {
			s.log.Debug().Err(err).Int("subject_id", v.ID).Msg("malformed vocabulary record")
			return nil, false
		}
		return steps, ok
	}
}

// Classify attributes and labels a vocabulary item.
func (s *Session) Classify(v subject.Vocabulary) Item {
	item := Item{ID: v.ID, Characters: v.Characters}
	reading, err := v.PrimaryReading()
	if err == nil {
		item.Reading = reading
	}
	steps, ok, err := s.Matcher.Attribute(v)
	if err != nil {
		s.log.Debug().Err(err).Int("subject_id", v.ID).Msg("malformed vocabulary record")
		item.Error = err.Error()
	}
	return s.finish(item, steps, ok)
}

// ClassifyWord attributes a word that is not a provider record, resolving its
// kanji by glyph.
func (s *Session) ClassifyWord(word, reading string) (Item, error) {
	steps, ok, err := s.Matcher.AttributeWord(word, reading)
	if err != nil {
		return Item{}, err
	}
	return s.finish(Item{Characters: word, Reading: reading}, steps, ok), nil
}

func (s *Session) finish(item Item, steps []match.Step, ok bool) Item {
	item.Result = classify.Classify(steps, ok, s.Cache)
	item.Status = item.Result.Status().String()
	return item
}
