package wanikani

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/japaniel/yomiwake/pkg/subject"
)

// vocabularyTypes are the subject types that carry a reading to attribute.
const vocabularyTypes = "vocabulary,kana_vocabulary"

// idsPerRequest keeps subject lookups well inside URL length limits.
const idsPerRequest = 200

type userData struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
}

type readingData struct {
	Reading        string `json:"reading"`
	Primary        bool   `json:"primary"`
	AcceptedAnswer bool   `json:"accepted_answer"`
	Type           string `json:"type"`
}

type subjectData struct {
	Characters          string        `json:"characters"`
	Level               int           `json:"level"`
	Readings            []readingData `json:"readings"`
	ComponentSubjectIDs []int         `json:"component_subject_ids"`
	HiddenAt            *time.Time    `json:"hidden_at"`
}

type assignmentData struct {
	SubjectID   int        `json:"subject_id"`
	SubjectType string     `json:"subject_type"`
	SRSStage    int        `json:"srs_stage"`
	UnlockedAt  *time.Time `json:"unlocked_at"`
	StartedAt   *time.Time `json:"started_at"`
	Hidden      bool       `json:"hidden"`
}

func (d subjectData) readings() []subject.Reading {
	out := make([]subject.Reading, len(d.Readings))
	for i, r := range d.Readings {
		out[i] = subject.Reading{Reading: r.Reading, Primary: r.Primary, AcceptedAnswer: r.AcceptedAnswer, Type: r.Type}
	}
	return out
}

// Level returns the learner's current level.
func (c *Client) Level(ctx context.Context) (int, error) {
	var res resource[userData]
	if err := c.get(ctx, c.endpoint("/user", nil), &res); err != nil {
		return 0, fmt.Errorf("fetch user: %w", err)
	}
	return res.Data.Level, nil
}

// Characters returns every kanji from level 1 up to the learner's level.
func (c *Client) Characters(ctx context.Context) ([]subject.Character, error) {
	level, err := c.Level(ctx)
	if err != nil {
		return nil, err
	}
	if level < 1 {
		return nil, nil
	}
	levels := make([]int, level)
	for i := range levels {
		levels[i] = i + 1
	}
	q := url.Values{}
	q.Set("types", "kanji")
	q.Set("levels", joinInts(levels))

	items, err := getAll[subjectData](ctx, c, "/subjects", q)
	if err != nil {
		return nil, fmt.Errorf("fetch kanji: %w", err)
	}
	chars := make([]subject.Character, 0, len(items))
	for _, it := range items {
		chars = append(chars, subject.Character{
			ID:         it.ID,
			Characters: it.Data.Characters,
			Level:      it.Data.Level,
			Readings:   it.Data.readings(),
		})
	}
	c.log.Info().Int("level", level).Int("kanji", len(chars)).Msg("kanji fetched")
	return chars, nil
}

// Vocabulary fetches vocabulary subjects by id.
func (c *Client) Vocabulary(ctx context.Context, ids []int) ([]subject.Vocabulary, error) {
	var out []subject.Vocabulary
	for start := 0; start < len(ids); start += idsPerRequest {
		end := min(start+idsPerRequest, len(ids))
		q := url.Values{}
		q.Set("ids", joinInts(ids[start:end]))
		q.Set("types", vocabularyTypes)

		items, err := getAll[subjectData](ctx, c, "/subjects", q)
		if err != nil {
			return nil, fmt.Errorf("fetch vocabulary: %w", err)
		}
		for _, it := range items {
			out = append(out, subject.Vocabulary{
				ID:                  it.ID,
				Characters:          it.Data.Characters,
				Level:               it.Data.Level,
				Readings:            it.Data.readings(),
				ComponentSubjectIDs: it.Data.ComponentSubjectIDs,
			})
		}
	}
	return out, nil
}

func (c *Client) assignments(ctx context.Context, q url.Values) ([]subject.Assignment, error) {
	q.Set("subject_types", vocabularyTypes)
	items, err := getAll[assignmentData](ctx, c, "/assignments", q)
	if err != nil {
		return nil, fmt.Errorf("fetch assignments: %w", err)
	}
	out := make([]subject.Assignment, 0, len(items))
	for _, it := range items {
		out = append(out, subject.Assignment{
			SubjectID:   it.Data.SubjectID,
			SubjectType: it.Data.SubjectType,
			SRSStage:    it.Data.SRSStage,
			UnlockedAt:  it.Data.UnlockedAt,
			StartedAt:   it.Data.StartedAt,
			Hidden:      it.Data.Hidden,
		})
	}
	return out, nil
}

// StartedVocabulary returns vocabulary the learner has started, restricted to
// assignments updated after since when since is non-zero. Starting a lesson
// updates the assignment, so every start after since is included.
func (c *Client) StartedVocabulary(ctx context.Context, since time.Time) ([]subject.StudyEvent, error) {
	q := url.Values{}
	q.Set("started", "true")
	if !since.IsZero() {
		q.Set("updated_after", since.UTC().Format(time.RFC3339Nano))
	}
	assignments, err := c.assignments(ctx, q)
	if err != nil {
		return nil, err
	}

	startedAt := make(map[int]time.Time, len(assignments))
	ids := make([]int, 0, len(assignments))
	for _, a := range assignments {
		if !a.Started() {
			continue
		}
		startedAt[a.SubjectID] = *a.StartedAt
		ids = append(ids, a.SubjectID)
	}

	vocab, err := c.Vocabulary(ctx, ids)
	if err != nil {
		return nil, err
	}
	events := make([]subject.StudyEvent, 0, len(vocab))
	for _, v := range vocab {
		events = append(events, subject.StudyEvent{Vocabulary: v, StartedAt: startedAt[v.ID]})
	}
	c.log.Info().Int("started", len(events)).Time("since", since).Msg("study history fetched")
	return events, nil
}

// PendingVocabulary returns vocabulary waiting in the lesson queue.
func (c *Client) PendingVocabulary(ctx context.Context) ([]subject.Vocabulary, error) {
	q := url.Values{}
	q.Set("srs_stages", "0")
	q.Set("unlocked", "true")
	q.Set("hidden", "false")
	assignments, err := c.assignments(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(assignments))
	for _, a := range assignments {
		if a.Pending() {
			ids = append(ids, a.SubjectID)
		}
	}
	vocab, err := c.Vocabulary(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("pending", len(vocab)).Msg("lesson queue fetched")
	return vocab, nil
}
