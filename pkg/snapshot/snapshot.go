// Package snapshot stores provider data in a JSON file so the analyzer can
// run offline against a fixed account state.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/japaniel/yomiwake/pkg/subject"
)

// Started is a vocabulary item together with the time the learner started it.
type Started struct {
	Vocabulary subject.Vocabulary `json:"vocabulary"`
	StartedAt  time.Time          `json:"started_at"`
}

// Document is the on-disk snapshot format.
type Document struct {
	ExportedAt time.Time            `json:"exported_at"`
	Characters []subject.Character  `json:"characters"`
	Started    []Started            `json:"started"`
	Pending    []subject.Vocabulary `json:"pending"`
}

// Source is anything that can produce the three snapshot sections.
type Source interface {
	Characters(ctx context.Context) ([]subject.Character, error)
	StartedVocabulary(ctx context.Context, since time.Time) ([]subject.StudyEvent, error)
	PendingVocabulary(ctx context.Context) ([]subject.Vocabulary, error)
}

// Capture reads the full account state from src.
func Capture(ctx context.Context, src Source) (*Document, error) {
	chars, err := src.Characters(ctx)
	if err != nil {
		return nil, err
	}
	events, err := src.StartedVocabulary(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	pending, err := src.PendingVocabulary(ctx)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		ExportedAt: time.Now().UTC(),
		Characters: chars,
		Pending:    pending,
	}
	for _, ev := range events {
		doc.Started = append(doc.Started, Started{Vocabulary: ev.Vocabulary, StartedAt: ev.StartedAt})
	}
	return doc, nil
}

// Load reads a snapshot file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the snapshot to path, replacing any existing file.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Provider serves a Document through the analyzer's provider interface.
type Provider struct {
	doc *Document
}

// NewProvider wraps doc.
func NewProvider(doc *Document) *Provider {
	return &Provider{doc: doc}
}

// Open loads the snapshot at path and wraps it.
func Open(path string) (*Provider, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewProvider(doc), nil
}

func (p *Provider) Characters(context.Context) ([]subject.Character, error) {
	return p.doc.Characters, nil
}

// StartedVocabulary returns the items started after since.
func (p *Provider) StartedVocabulary(_ context.Context, since time.Time) ([]subject.StudyEvent, error) {
	var out []subject.StudyEvent
	for _, s := range p.doc.Started {
		if since.IsZero() || s.StartedAt.After(since) {
			out = append(out, subject.StudyEvent{Vocabulary: s.Vocabulary, StartedAt: s.StartedAt})
		}
	}
	return out, nil
}

func (p *Provider) PendingVocabulary(context.Context) ([]subject.Vocabulary, error) {
	return p.doc.Pending, nil
}
