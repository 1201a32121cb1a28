// Package subject holds the learning-progress records the analyzer consumes:
// kanji characters, vocabulary and the learner's assignments.
package subject

import (
	"errors"
	"time"

	"github.com/japaniel/yomiwake/pkg/kana"
)

// ErrNoPrimaryReading is returned when a vocabulary item has no reading that
// is both primary and accepted.
var ErrNoPrimaryReading = errors.New("no primary accepted reading")

// Reading is a pronunciation registered against a character or vocabulary item.
type Reading struct {
	Reading        string `json:"reading"`
	Primary        bool   `json:"primary"`
	AcceptedAnswer bool   `json:"accepted_answer"`
	// Type is onyomi/kunyomi/nanori for kanji, empty for vocabulary.
	Type string `json:"type,omitempty"`
}

// Character is a single kanji.
type Character struct {
	ID         int       `json:"id"`
	Characters string    `json:"characters"`
	Level      int       `json:"level"`
	Readings   []Reading `json:"readings"`
}

// Vocabulary is a word built from kanji and kana.
type Vocabulary struct {
	ID                  int       `json:"id"`
	Characters          string    `json:"characters"`
	Level               int       `json:"level"`
	Readings            []Reading `json:"readings"`
	ComponentSubjectIDs []int     `json:"component_subject_ids,omitempty"`
}

// PrimaryReading returns the first reading that is both primary and accepted.
// Kana vocabulary has no readings of its own; a word without kanji and without
// readings is read as written.
func (v Vocabulary) PrimaryReading() (string, error) {
	for _, r := range v.Readings {
		if r.Primary && r.AcceptedAnswer {
			return r.Reading, nil
		}
	}
	if len(v.Readings) == 0 && v.Characters != "" && !hasKanji(v.Characters) {
		return v.Characters, nil
	}
	return "", ErrNoPrimaryReading
}

func hasKanji(s string) bool {
	for _, r := range s {
		if kana.ScriptOf(r) == kana.Kanji {
			return true
		}
	}
	return false
}

// Assignment is the learner's study state for one subject.
type Assignment struct {
	SubjectID   int        `json:"subject_id"`
	SubjectType string     `json:"subject_type,omitempty"`
	SRSStage    int        `json:"srs_stage"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Hidden      bool       `json:"hidden,omitempty"`
}

// Started reports whether the learner has begun studying the subject.
func (a Assignment) Started() bool {
	return a.StartedAt != nil && !a.StartedAt.IsZero()
}

// Pending reports whether the subject is unlocked and waiting in the lesson queue.
func (a Assignment) Pending() bool {
	return a.UnlockedAt != nil && !a.Started() && !a.Hidden
}

// StudyEvent records that a vocabulary item entered study at StartedAt.
type StudyEvent struct {
	Vocabulary Vocabulary
	StartedAt  time.Time
}

// IndexCharacters maps characters by subject id.
func IndexCharacters(chars []Character) map[int]Character {
	idx := make(map[int]Character, len(chars))
	for _, c := range chars {
		idx[c.ID] = c
	}
	return idx
}
