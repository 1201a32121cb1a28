package readerer

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"runtime"
	"sort"
	"sync"

	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"github.com/japaniel/yomiwake/pkg/analyzer"
	"github.com/japaniel/yomiwake/pkg/subject"
)

// Classifier labels a vocabulary item. *analyzer.Session implements it.
type Classifier interface {
	Classify(v subject.Vocabulary) analyzer.Item
}

// Hit is a vocabulary item found in an article.
type Hit struct {
	analyzer.Item
	Count int `json:"count"`
}

// ScanReport summarises an article scan.
type ScanReport struct {
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Sentences int    `json:"sentences"`
	Tokens    int    `json:"tokens"`
	// Hits is ordered by descending count, then subject id.
	Hits []Hit `json:"hits"`
}

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	Workers int
	Logger  zerolog.Logger
}

// Scanner finds vocabulary from a fixed list in web articles.
type Scanner struct {
	analyzer   *Analyzer
	classifier Classifier
	byForm     map[string][]subject.Vocabulary
	workers    int
	log        zerolog.Logger
}

// NewScanner indexes vocab by its written form.
func NewScanner(a *Analyzer, c Classifier, vocab []subject.Vocabulary, opts ScannerOptions) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	byForm := make(map[string][]subject.Vocabulary, len(vocab))
	for _, v := range vocab {
		if v.Characters == "" {
			continue
		}
		byForm[v.Characters] = append(byForm[v.Characters], v)
	}
	return &Scanner{
		analyzer:   a,
		classifier: c,
		byForm:     byForm,
		workers:    opts.Workers,
		log:        opts.Logger,
	}
}

// Scan extracts the article body from html and reports every indexed
// vocabulary item whose characters appear as a token surface or base form.
func (s *Scanner) Scan(ctx context.Context, html []byte, pageURL string) (*ScanReport, error) {
	// Readability resolves relative links against the page URL, so local
	// files get a placeholder.
	base := pageURL
	if base == "" {
		base = "http://localhost/"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(html)), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}

	sentences, err := s.analyzeAll(ctx, splitSentences(article.TextContent))
	if err != nil {
		return nil, err
	}

	report := &ScanReport{Title: article.Title, URL: pageURL, Sentences: len(sentences)}
	counts := make(map[int]int)
	first := make(map[int]subject.Vocabulary)
	for _, sentence := range sentences {
		report.Tokens += len(sentence.Tokens)
		for _, tok := range sentence.Tokens {
			for _, v := range s.lookup(tok) {
				if _, seen := first[v.ID]; !seen {
					first[v.ID] = v
				}
				counts[v.ID]++
			}
		}
	}

	for id, n := range counts {
		report.Hits = append(report.Hits, Hit{Item: s.classifier.Classify(first[id]), Count: n})
	}
	sort.Slice(report.Hits, func(i, j int) bool {
		if report.Hits[i].Count != report.Hits[j].Count {
			return report.Hits[i].Count > report.Hits[j].Count
		}
		return report.Hits[i].ID < report.Hits[j].ID
	})

	s.log.Info().
		Str("title", report.Title).
		Int("sentences", report.Sentences).
		Int("tokens", report.Tokens).
		Int("hits", len(report.Hits)).
		Msg("article scanned")
	return report, nil
}

func (s *Scanner) lookup(tok Token) []subject.Vocabulary {
	hits := s.byForm[tok.Surface]
	if tok.BaseForm != tok.Surface {
		hits = append(hits[:len(hits):len(hits)], s.byForm[tok.BaseForm]...)
	}
	return hits
}

// analyzeAll tokenizes sentences on the worker pool. Results keep sentence order.
func (s *Scanner) analyzeAll(ctx context.Context, sentences []string) ([]Sentence, error) {
	out := make([]Sentence, len(sentences))
	var (
		mu       sync.Mutex
		firstErr error
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := NewWorkerPool(s.workers, 0)
	pool.Start(ctx)
	for i, text := range sentences {
		err := pool.Submit(ctx, func(context.Context) error {
			toks, err := s.analyzer.Analyze(text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("analyze sentence %d: %w", i, err)
					cancel()
				}
				mu.Unlock()
				return err
			}
			out[i] = Sentence{Text: text, Tokens: toks}
			return nil
		})
		if err != nil {
			break
		}
	}
	pool.Close()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
