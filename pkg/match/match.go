// Package match attributes the pronunciation of a vocabulary word to the kanji
// it is written with.
//
// Matching is a depth-first search over the word's tokens and the unconsumed
// remainder of its reading. Every kanji tries its primary readings before its
// secondary ones, so a word that can be read with primary readings only is
// always attributed that way. The search is exponential in the number of
// ambiguous kanji; words rarely have more than a handful, so no memoization is
// done.
package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/japaniel/yomiwake/pkg/kana"
	"github.com/japaniel/yomiwake/pkg/subject"
	"github.com/japaniel/yomiwake/pkg/token"
)

// ErrMissingCharacter is returned when a vocabulary item references a kanji
// that is not in the loaded character set.
var ErrMissingCharacter = errors.New("component character not loaded")

// Set holds the accepted readings of one kanji, split by primary flag.
// Readings are kana-folded.
type Set struct {
	CharacterID int
	Glyph       string
	Primary     []string
	Secondary   []string
}

// Readings maps a kanji glyph to its reading set.
type Readings map[string]Set

// Step is the attribution of one kanji in a word.
type Step struct {
	CharacterID int    `json:"character_id"`
	Glyph       string `json:"glyph"`
	Reading     string `json:"reading"`
	Primary     bool   `json:"primary"`
}

// NewSet partitions the accepted readings of c. Unaccepted readings are dropped.
func NewSet(c subject.Character) Set {
	s := Set{CharacterID: c.ID, Glyph: c.Characters}
	for _, r := range c.Readings {
		if !r.AcceptedAnswer || r.Reading == "" {
			continue
		}
		folded := kana.Fold(r.Reading)
		if r.Primary {
			s.Primary = append(s.Primary, folded)
		} else {
			s.Secondary = append(s.Secondary, folded)
		}
	}
	return s
}

// BuildReadings collects the reading sets for the components of v.
func BuildReadings(v subject.Vocabulary, characters map[int]subject.Character) (Readings, error) {
	readings := make(Readings, len(v.ComponentSubjectIDs))
	for _, id := range v.ComponentSubjectIDs {
		c, ok := characters[id]
		if !ok {
			return nil, fmt.Errorf("%w: subject %d in %q", ErrMissingCharacter, id, v.Characters)
		}
		readings[c.Characters] = NewSet(c)
	}
	return readings, nil
}

// Match aligns tokens against reading. It returns one step per Ideographic
// token and true when the whole reading is consumed by the whole token
// sequence, or nil and false when no alignment exists.
func Match(tokens []token.Token, reading string, readings Readings) ([]Step, bool) {
	return match(tokens, kana.Fold(reading), readings)
}

func match(tokens []token.Token, rest string, readings Readings) ([]Step, bool) {
	if len(tokens) == 0 {
		if rest == "" {
			return []Step{}, true
		}
		return nil, false
	}

	tok := tokens[0]
	switch tok.Kind {
	case token.Ideographic:
		set, ok := readings[tok.Value]
		if !ok {
			return nil, false
		}
		if steps, ok := tryReadings(tokens[1:], rest, readings, set, set.Primary, true); ok {
			return steps, true
		}
		return tryReadings(tokens[1:], rest, readings, set, set.Secondary, false)

	case token.Hiragana, token.Katakana:
		value := kana.Fold(tok.Value)
		if len(value) > len(rest) || !strings.HasPrefix(rest, value) {
			return nil, false
		}
		return match(tokens[1:], rest[len(value):], readings)

	default:
		return match(tokens[1:], rest, readings)
	}
}

func tryReadings(tokens []token.Token, rest string, readings Readings, set Set, candidates []string, primary bool) ([]Step, bool) {
	for _, cand := range candidates {
		if cand == "" || !strings.HasPrefix(rest, cand) {
			continue
		}
		tail, ok := match(tokens, rest[len(cand):], readings)
		if !ok {
			continue
		}
		step := Step{CharacterID: set.CharacterID, Glyph: set.Glyph, Reading: cand, Primary: primary}
		return append([]Step{step}, tail...), true
	}
	return nil, false
}

// Matcher attributes vocabulary against a fixed character set.
type Matcher struct {
	characters map[int]subject.Character
	byGlyph    map[string]subject.Character
	tokenizer  *token.Tokenizer
}

// NewMatcher creates a Matcher. A nil tokenizer uses the default script segmenter.
func NewMatcher(characters []subject.Character, tk *token.Tokenizer) *Matcher {
	if tk == nil {
		tk = token.New(nil)
	}
	byGlyph := make(map[string]subject.Character, len(characters))
	for _, c := range characters {
		byGlyph[c.Characters] = c
	}
	return &Matcher{
		characters: subject.IndexCharacters(characters),
		byGlyph:    byGlyph,
		tokenizer:  tk,
	}
}

// Characters returns the number of loaded characters.
func (m *Matcher) Characters() int { return len(m.characters) }

// Attribute matches v against its primary accepted reading.
// A malformed item (no primary reading, unknown component) yields an error;
// a well-formed item whose reading cannot be decomposed yields false.
func (m *Matcher) Attribute(v subject.Vocabulary) ([]Step, bool, error) {
	reading, err := v.PrimaryReading()
	if err != nil {
		return nil, false, fmt.Errorf("vocabulary %d: %w", v.ID, err)
	}
	return m.AttributeReading(v, reading)
}

// AttributeReading matches v against an explicit reading.
func (m *Matcher) AttributeReading(v subject.Vocabulary, reading string) ([]Step, bool, error) {
	readings, err := BuildReadings(v, m.characters)
	if err != nil {
		return nil, false, err
	}
	tokens, err := m.tokenizer.Tokenize(v.Characters)
	if err != nil {
		return nil, false, err
	}
	steps, ok := Match(tokens, reading, readings)
	return steps, ok, nil
}

// ReadingsFor builds a reading table for an arbitrary word by looking up each
// kanji glyph in the loaded character set. Glyphs that are not loaded are left
// out, so matching will fail on them.
func (m *Matcher) ReadingsFor(word string) Readings {
	readings := make(Readings)
	for _, r := range word {
		if c, ok := m.byGlyph[string(r)]; ok {
			readings[c.Characters] = NewSet(c)
		}
	}
	return readings
}

// AttributeWord matches a free-standing word, resolving its kanji by glyph.
func (m *Matcher) AttributeWord(word, reading string) ([]Step, bool, error) {
	tokens, err := m.tokenizer.Tokenize(word)
	if err != nil {
		return nil, false, err
	}
	steps, ok := Match(tokens, reading, m.ReadingsFor(word))
	return steps, ok, nil
}
