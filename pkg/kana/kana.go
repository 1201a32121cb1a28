// Package kana classifies runes by Japanese script and normalises kana text
// so readings written in different kana forms compare equal.
package kana

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Script is the writing system a rune belongs to.
type Script int

const (
	Other Script = iota
	Kanji
	Hiragana
	Katakana
)

func (s Script) String() string {
	switch s {
	case Kanji:
		return "kanji"
	case Hiragana:
		return "hiragana"
	case Katakana:
		return "katakana"
	default:
		return "other"
	}
}

const (
	iterationMark        = '々' // U+3005, repeats the previous kanji
	prolongedSoundMark   = 'ー' // U+30FC
	halfProlongedMark    = 'ｰ' // U+FF70
	halfVoicedMark       = 'ﾞ' // U+FF9E
	halfSemiVoicedMark   = 'ﾟ' // U+FF9F
	katakanaToHiraOffset = 0x60
)

// ScriptOf returns the script class of r.
func ScriptOf(r rune) Script {
	switch {
	case r == iterationMark || unicode.Is(unicode.Han, r):
		return Kanji
	case unicode.Is(unicode.Hiragana, r):
		return Hiragana
	case r == prolongedSoundMark || r == halfProlongedMark ||
		r == halfVoicedMark || r == halfSemiVoicedMark ||
		unicode.Is(unicode.Katakana, r):
		return Katakana
	default:
		return Other
	}
}

// Run is a maximal stretch of text written in a single script.
type Run struct {
	Script Script
	Text   string
}

// Segment splits text into maximal single-script runs. Runs are slices of
// text, so concatenating their Text values yields text byte for byte, even
// when text is not valid UTF-8.
func Segment(text string) []Run {
	var runs []Run
	start := 0
	script := Other

	for i, r := range text {
		s := ScriptOf(r)
		if i > 0 && s != script {
			runs = append(runs, Run{Script: script, Text: text[start:i]})
			start = i
		}
		script = s
	}
	if start < len(text) {
		runs = append(runs, Run{Script: script, Text: text[start:]})
	}
	return runs
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r >= 0x30A1 && r <= 0x30F6:
			runes[i] = r - katakanaToHiraOffset
		case r == 'ヽ' || r == 'ヾ':
			runes[i] = r - katakanaToHiraOffset
		}
	}
	return string(runes)
}

// Fold normalises a kana string for comparison: compatibility forms
// (half-width katakana, separate voicing marks) are composed and katakana is
// mapped onto hiragana.
func Fold(s string) string {
	return ToHiragana(norm.NFKC.String(s))
}
