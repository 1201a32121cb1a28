// Package readerer analyses Japanese prose with kagome. It provides
// morphological tokens, sentence splitting, reading guesses for free text and
// an article scanner that spots known vocabulary in web pages.
package readerer

import (
	"regexp"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/japaniel/yomiwake/pkg/kana"
)

// Version returns the current version of the package.
func Version() string { return "0.2.0" }

// Token represents a single analyzed unit of text.
type Token struct {
	Surface       string   // The text as it appears (e.g. "行っ")
	BaseForm      string   // The dictionary form (e.g. "行く")
	Reading       string   // The pronunciation (katakana, e.g. "イッ")
	PartsOfSpeech []string // e.g. ["動詞", "自立", "*", "*"] (Kagome POS labels)
	// PrimaryPOS stores the first (primary) part of speech if available.
	PrimaryPOS string
}

// Sentence is one sentence of an article with its tokens.
type Sentence struct {
	Text   string
	Tokens []Token
}

// Analyzer handles text segmentation. It is safe for concurrent use.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Analyze breaks text into tokens with readings and base forms.
func (a *Analyzer) Analyze(text string) ([]Token, error) {
	tokens := a.t.Tokenize(text)
	var result []Token

	for _, token := range tokens {
		if token.Class == tokenizer.DUMMY {
			continue
		}

		// IPA features: 0-3 POS, 4-5 conjugation, 6 base form, 7 reading, 8 pronunciation.
		features := token.Features()

		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}

		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}

		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}

		result = append(result, Token{
			Surface:       token.Surface,
			BaseForm:      base,
			Reading:       reading,
			PartsOfSpeech: features,
			PrimaryPOS:    primaryPOS,
		})
	}

	return result, nil
}

// Guess returns the hiragana reading kagome assigns to text. Tokens without a
// dictionary reading (latin, unknown words) contribute their surface.
func (a *Analyzer) Guess(text string) string {
	tokens, _ := a.Analyze(text)
	var b strings.Builder
	for _, t := range tokens {
		if t.Reading != "" {
			b.WriteString(t.Reading)
		} else {
			b.WriteString(t.Surface)
		}
	}
	return kana.ToHiragana(b.String())
}

// splitSentences cuts on 。！？ and newlines, dropping blank pieces.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			sentences = append(sentences, current.String())
		}
		current.Reset()
	}
	for _, r := range text {
		current.WriteRune(r)
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			flush()
		}
	}
	flush()
	return sentences
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// from HTML content. Readability keeps furigana as text, so "漢字" would
// otherwise become "漢字かんじ". Only ASCII bytes are matched, so Shift_JIS
// input is safe too.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}
