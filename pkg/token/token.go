// Package token turns a word into the typed segments the reading matcher
// walks over.
package token

import (
	"fmt"

	"github.com/japaniel/yomiwake/pkg/kana"
)

// Kind is the closed set of token variants.
type Kind int

const (
	// Other tokens (punctuation, digits, latin) consume no pronunciation.
	Other Kind = iota
	// Ideographic tokens always hold exactly one kanji glyph.
	Ideographic
	// Hiragana and Katakana tokens are consumed literally from the pronunciation.
	Hiragana
	Katakana
)

func (k Kind) String() string {
	switch k {
	case Ideographic:
		return "ideographic"
	case Hiragana:
		return "hiragana"
	case Katakana:
		return "katakana"
	default:
		return "other"
	}
}

// Phonetic reports whether tokens of this kind consume pronunciation literally.
func (k Kind) Phonetic() bool {
	return k == Hiragana || k == Katakana
}

// Token is a classified segment of a word.
type Token struct {
	Kind  Kind
	Value string
}

// Segmenter is the raw script classifier the adapter wraps.
type Segmenter interface {
	Segment(text string) ([]kana.Run, error)
}

// SegmenterFunc adapts a function to the Segmenter interface.
type SegmenterFunc func(text string) ([]kana.Run, error)

func (f SegmenterFunc) Segment(text string) ([]kana.Run, error) { return f(text) }

// ScriptSegmenter classifies runes with the kana package.
var ScriptSegmenter Segmenter = SegmenterFunc(func(text string) ([]kana.Run, error) {
	return kana.Segment(text), nil
})

// Tokenizer normalises segmenter output into tokens.
type Tokenizer struct {
	seg Segmenter
}

// New creates a Tokenizer around seg. A nil seg uses ScriptSegmenter.
func New(seg Segmenter) *Tokenizer {
	if seg == nil {
		seg = ScriptSegmenter
	}
	return &Tokenizer{seg: seg}
}

// Tokenize segments text. Kanji runs are split so that every Ideographic
// token carries a single glyph; other runs are passed through unchanged.
func (t *Tokenizer) Tokenize(text string) ([]Token, error) {
	if text == "" {
		return nil, nil
	}
	runs, err := t.seg.Segment(text)
	if err != nil {
		return nil, fmt.Errorf("segment %q: %w", text, err)
	}

	var tokens []Token
	for _, run := range runs {
		switch run.Script {
		case kana.Kanji:
			for _, r := range run.Text {
				tokens = append(tokens, Token{Kind: Ideographic, Value: string(r)})
			}
		case kana.Hiragana:
			tokens = append(tokens, Token{Kind: Hiragana, Value: run.Text})
		case kana.Katakana:
			tokens = append(tokens, Token{Kind: Katakana, Value: run.Text})
		default:
			tokens = append(tokens, Token{Kind: Other, Value: run.Text})
		}
	}
	return tokens, nil
}

var defaultTokenizer = New(nil)

// Tokenize segments text with the default script segmenter.
func Tokenize(text string) []Token {
	tokens, _ := defaultTokenizer.Tokenize(text)
	return tokens
}
