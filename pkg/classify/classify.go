// Package classify labels a vocabulary item from its reading attribution.
package classify

import (
	"github.com/japaniel/yomiwake/pkg/match"
)

// Status is one of the three mutually exclusive labels.
type Status int

const (
	// Easy words use primary readings for every kanji.
	Easy Status = iota
	// NewReading words use at least one secondary reading the learner has not met,
	// or could not be attributed at all.
	NewReading
	// KnownReading words use only secondary readings the learner has met before.
	KnownReading
)

func (s Status) String() string {
	switch s {
	case Easy:
		return "easy"
	case NewReading:
		return "new-reading"
	default:
		return "known-reading"
	}
}

// Knowledge answers whether a secondary reading has been seen before.
type Knowledge interface {
	Known(characterID int, reading string) bool
}

// Result is the classification of one vocabulary item.
type Result struct {
	IsEasy                bool `json:"is_easy"`
	IsNewSecondaryReading bool `json:"is_new_secondary_reading"`
	// Matched is false when no attribution was found.
	Matched bool         `json:"matched"`
	Steps   []match.Step `json:"steps,omitempty"`
	// Unfamiliar lists the secondary steps the learner has not met yet.
	Unfamiliar []match.Step `json:"unfamiliar,omitempty"`
}

// Status folds the two flags into a single label.
func (r Result) Status() Status {
	switch {
	case r.IsEasy:
		return Easy
	case r.IsNewSecondaryReading:
		return NewReading
	default:
		return KnownReading
	}
}

// Classify labels an attribution. Unattributed words are never considered
// easy or known.
func Classify(steps []match.Step, matched bool, known Knowledge) Result {
	if !matched {
		return Result{IsNewSecondaryReading: true}
	}

	res := Result{Matched: true, Steps: steps, IsEasy: true}
	for _, s := range steps {
		if s.Primary {
			continue
		}
		res.IsEasy = false
		if known == nil || !known.Known(s.CharacterID, s.Reading) {
			res.IsNewSecondaryReading = true
			res.Unfamiliar = append(res.Unfamiliar, s)
		}
	}
	return res
}
