package wanikani

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a tiny WaniKani account: level 2, three kanji split over
// two pages, one started and one pending vocabulary item.
func fakeAPI(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.URL.RequestURI())
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"Unauthorized. Nice try.","code":401}`)
			return
		}
		assert.Equal(t, Revision, r.Header.Get("Wanikani-Revision"))
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()

		switch {
		case r.URL.Path == "/user":
			fmt.Fprint(w, `{"object":"user","data":{"username":"tester","level":2}}`)

		case r.URL.Path == "/subjects" && q.Get("types") == "kanji" && q.Get("page") == "":
			assert.Equal(t, "1,2", q.Get("levels"))
			fmt.Fprintf(w, `{"object":"collection","pages":{"next_url":"%s/subjects?types=kanji&page=2"},"data":[
				{"id":1,"object":"kanji","data":{"characters":"地","level":1,"readings":[{"reading":"ち","primary":true,"accepted_answer":true,"type":"onyomi"},{"reading":"じ","primary":true,"accepted_answer":true,"type":"onyomi"}]}},
				{"id":2,"object":"kanji","data":{"characters":"中","level":1,"readings":[{"reading":"ちゅう","primary":true,"accepted_answer":true,"type":"onyomi"},{"reading":"なか","primary":false,"accepted_answer":false,"type":"kunyomi"}]}}
			]}`, srv.URL)

		case r.URL.Path == "/subjects" && q.Get("types") == "kanji" && q.Get("page") == "2":
			fmt.Fprint(w, `{"object":"collection","pages":{"next_url":null},"data":[
				{"id":3,"object":"kanji","data":{"characters":"海","level":2,"readings":[{"reading":"かい","primary":true,"accepted_answer":true,"type":"onyomi"},{"reading":"うみ","primary":false,"accepted_answer":true,"type":"kunyomi"}]}}
			]}`)

		case r.URL.Path == "/assignments" && q.Get("started") == "true":
			fmt.Fprint(w, `{"object":"collection","pages":{"next_url":null},"data":[
				{"id":900,"object":"assignment","data":{"subject_id":100,"subject_type":"vocabulary","srs_stage":3,"unlocked_at":"2024-01-01T00:00:00.000000Z","started_at":"2024-01-02T10:00:00.000000Z"}}
			]}`)

		case r.URL.Path == "/assignments" && q.Get("srs_stages") == "0":
			fmt.Fprint(w, `{"object":"collection","pages":{"next_url":null},"data":[
				{"id":901,"object":"assignment","data":{"subject_id":101,"subject_type":"vocabulary","srs_stage":0,"unlocked_at":"2024-01-03T00:00:00.000000Z","started_at":null}}
			]}`)

		case r.URL.Path == "/subjects" && q.Get("ids") == "100":
			fmt.Fprint(w, `{"object":"collection","pages":{"next_url":null},"data":[
				{"id":100,"object":"vocabulary","data":{"characters":"海","level":2,"readings":[{"reading":"うみ","primary":true,"accepted_answer":true}],"component_subject_ids":[3]}}
			]}`)

		case r.URL.Path == "/subjects" && q.Get("ids") == "101":
			fmt.Fprint(w, `{"object":"collection","pages":{"next_url":null},"data":[
				{"id":101,"object":"vocabulary","data":{"characters":"地中海","level":2,"readings":[{"reading":"ちちゅうかい","primary":true,"accepted_answer":true}],"component_subject_ids":[1,2,3]}}
			]}`)

		default:
			t.Errorf("unexpected request %s", r.URL.RequestURI())
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uris = append(l.uris, uri)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uris...)
}

func TestCharactersFollowsPagination(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New("secret", WithBaseURL(srv.URL))

	chars, err := c.Characters(context.Background())
	require.NoError(t, err)
	require.Len(t, chars, 3)
	assert.Equal(t, "海", chars[2].Characters)
	assert.Equal(t, 2, chars[2].Level)
	assert.False(t, chars[1].Readings[1].AcceptedAnswer)
	assert.Equal(t, "onyomi", chars[0].Readings[0].Type)
}

func TestStartedVocabulary(t *testing.T) {
	srv, seen := fakeAPI(t)
	c := New("secret", WithBaseURL(srv.URL))

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, err := c.StartedVocabulary(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 100, events[0].Vocabulary.ID)
	assert.Equal(t, []int{3}, events[0].Vocabulary.ComponentSubjectIDs)
	assert.True(t, events[0].StartedAt.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))

	var sawUpdatedAfter bool
	for _, u := range seen.all() {
		if strings.Contains(u, "updated_after=2024-01-01T00%3A00%3A00Z") {
			sawUpdatedAfter = true
		}
	}
	assert.True(t, sawUpdatedAfter, "requests: %v", seen.all())
}

func TestPendingVocabulary(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New("secret", WithBaseURL(srv.URL))

	vocab, err := c.PendingVocabulary(context.Background())
	require.NoError(t, err)
	require.Len(t, vocab, 1)
	assert.Equal(t, "地中海", vocab[0].Characters)
	reading, err := vocab[0].PrimaryReading()
	require.NoError(t, err)
	assert.Equal(t, "ちちゅうかい", reading)
}

func TestAPIError(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New("wrong", WithBaseURL(srv.URL))

	_, err := c.Characters(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Unauthorized")
}

func TestVocabularyWithNoIDsMakesNoRequest(t *testing.T) {
	srv, seen := fakeAPI(t)
	c := New("secret", WithBaseURL(srv.URL))
	vocab, err := c.Vocabulary(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vocab)
	assert.Empty(t, seen.all())
}
