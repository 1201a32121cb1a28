package readerer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/yomiwake/pkg/analyzer"
	"github.com/japaniel/yomiwake/pkg/subject"
)

type stubClassifier struct{}

func (stubClassifier) Classify(v subject.Vocabulary) analyzer.Item {
	return analyzer.Item{ID: v.ID, Characters: v.Characters, Status: "easy"}
}

func articleHTML(paragraphs int) []byte {
	var b strings.Builder
	b.WriteString(`<html><head><title>海の日記</title></head><body><nav>メニュー</nav><article>`)
	for i := 0; i < paragraphs; i++ {
		b.WriteString(`<p>私は<ruby>海<rt>うみ</rt></ruby>へ行った。海はとても青くて、空も広かった。`)
		b.WriteString(`夏休みの間、毎朝早く起きて、浜辺を長い時間散歩するのが楽しみだった。</p>`)
	}
	b.WriteString(`</article></body></html>`)
	return []byte(b.String())
}

func TestScanFindsVocabulary(t *testing.T) {
	a, err := NewAnalyzer()
	require.NoError(t, err)

	vocab := []subject.Vocabulary{
		{ID: 1, Characters: "海"},
		{ID: 2, Characters: "行く"},
		{ID: 3, Characters: "猫"},
	}
	s := NewScanner(a, stubClassifier{}, vocab, ScannerOptions{Workers: 3, Logger: zerolog.Nop()})

	report, err := s.Scan(context.Background(), articleHTML(8), "https://example.com/umi")
	require.NoError(t, err)

	assert.Contains(t, report.Title, "海の日記")
	assert.Equal(t, "https://example.com/umi", report.URL)
	assert.NotZero(t, report.Sentences)
	assert.NotZero(t, report.Tokens)

	require.Len(t, report.Hits, 2, "猫 never appears")
	assert.Equal(t, 1, report.Hits[0].ID)
	assert.Equal(t, 2, report.Hits[1].ID, "行っ is found through its base form")
	assert.Equal(t, 2*report.Hits[1].Count, report.Hits[0].Count)
	assert.Equal(t, "easy", report.Hits[0].Status)
}

func TestScanWithoutURL(t *testing.T) {
	a, err := NewAnalyzer()
	require.NoError(t, err)
	s := NewScanner(a, stubClassifier{}, []subject.Vocabulary{{ID: 1, Characters: "海"}}, ScannerOptions{Logger: zerolog.Nop()})

	report, err := s.Scan(context.Background(), articleHTML(6), "")
	require.NoError(t, err)
	require.NotEmpty(t, report.Hits)
	assert.Equal(t, 1, report.Hits[0].ID)
}

func TestAnalyzeAllKeepsSentenceOrder(t *testing.T) {
	a, err := NewAnalyzer()
	require.NoError(t, err)
	s := NewScanner(a, stubClassifier{}, nil, ScannerOptions{Workers: 4, Logger: zerolog.Nop()})

	texts := splitSentences(strings.Repeat("猫が好きです。犬は？\n\n本当に！", 5))
	require.Len(t, texts, 15)

	sentences, err := s.analyzeAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, sentences, len(texts))
	for i, sentence := range sentences {
		assert.Equal(t, texts[i], sentence.Text)
		assert.NotEmpty(t, sentence.Tokens, "sentence %q has no tokens", sentence.Text)
	}
}

func TestScanCancelled(t *testing.T) {
	a, err := NewAnalyzer()
	require.NoError(t, err)
	s := NewScanner(a, stubClassifier{}, nil, ScannerOptions{Workers: 1, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx, articleHTML(6), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(articleHTML(1))
	}))
	defer srv.Close()

	ctx := context.Background()
	body, err := Fetch(ctx, srv.Client(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Contains(t, string(body), "海の日記")

	_, err = Fetch(ctx, srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}
