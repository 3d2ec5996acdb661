package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bandup/session-service/internal/cache"
	"github.com/bandup/session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type contentFixture struct {
	sections  map[string]sectionWire
	questions map[string][]questionWire
	failing   map[string]bool
	calls     atomic.Int32
}

func newContentServer(t *testing.T, f *contentFixture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "sections" {
			http.NotFound(w, r)
			return
		}
		id := parts[1]
		if f.failing[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s, ok := f.sections[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if len(parts) == 3 && parts[2] == "questions" {
			_ = json.NewEncoder(w).Encode(f.questions[id])
			return
		}
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func defaultFixture() *contentFixture {
	return &contentFixture{
		sections: map[string]sectionWire{
			"s1": {ID: "s1", Title: "Passage 1", OrderIndex: 2, TimeLimitSeconds: 600, Skill: "READING"},
			"s2": {ID: "s2", Title: "Passage 2", OrderIndex: 1, TimeLimitSeconds: 900, Skill: "reading",
				Metadata: json.RawMessage(`{"instructions":"Read carefully"}`)},
		},
		questions: map[string][]questionWire{
			"s1": {
				{ID: "q2", QuestionNumber: 2, Type: "true_false", CorrectAnswer: "TRUE"},
				{ID: "q1", QuestionNumber: 1, Type: "multiple_choice", Options: []string{"A", "B"}},
			},
			"s2": {
				{ID: "q3", QuestionNumber: 3, Type: "fill_blank"},
			},
		},
		failing: map[string]bool{},
	}
}

func newTestLoader(srv *httptest.Server, c cache.CacheService) *Loader {
	return NewLoader(LoaderConfig{
		API:    NewClient(ClientConfig{BaseURL: srv.URL + "/"}),
		Cache:  c,
		Logger: discardLogger(),
	})
}

func TestLoader_FullModeOrdersByIndex(t *testing.T) {
	srv := newContentServer(t, defaultFixture())
	l := newTestLoader(srv, nil)

	sections, err := l.Load(context.Background(), []string{"s1", "s2"}, ModeFull)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	assert.Equal(t, "s2", sections[0].ID)
	assert.Equal(t, "s1", sections[1].ID)
	assert.Equal(t, models.SkillReading, sections[1].Skill)
	assert.Equal(t, 1500, models.TotalTimeLimit(sections))

	require.Len(t, sections[1].Questions, 2)
	assert.Equal(t, "q1", sections[1].Questions[0].ID)
	assert.Equal(t, "TRUE", sections[1].Questions[1].CorrectAnswer)
	assert.Equal(t, `{"instructions":"Read carefully"}`, sections[0].Metadata)
}

func TestLoader_SubsetModeKeepsCallerOrder(t *testing.T) {
	srv := newContentServer(t, defaultFixture())
	l := newTestLoader(srv, nil)

	sections, err := l.Load(context.Background(), []string{"s1", " s2 ", "s1"}, ModeSubset)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "s1", sections[0].ID)
	assert.Equal(t, "s2", sections[1].ID)
}

func TestLoader_AnyFailureFailsWholeLoad(t *testing.T) {
	f := defaultFixture()
	f.failing["s2"] = true
	srv := newContentServer(t, f)
	l := newTestLoader(srv, nil)

	sections, err := l.Load(context.Background(), []string{"s1", "s2"}, ModeFull)
	assert.Nil(t, sections)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestLoader_MissingSection(t *testing.T) {
	srv := newContentServer(t, defaultFixture())
	l := newTestLoader(srv, nil)

	_, err := l.Load(context.Background(), []string{"nope"}, ModeSubset)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestLoader_InvalidInput(t *testing.T) {
	l := NewLoader(LoaderConfig{Logger: discardLogger()})

	_, err := l.Load(context.Background(), []string{"s1"}, Mode("all"))
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = l.Load(context.Background(), []string{" ", ""}, ModeFull)
	assert.ErrorIs(t, err, ErrNoSections)
}

func TestLoader_UsesCache(t *testing.T) {
	f := defaultFixture()
	srv := newContentServer(t, f)
	l := newTestLoader(srv, cache.NewMemoryCache())

	_, err := l.Load(context.Background(), []string{"s1"}, ModeFull)
	require.NoError(t, err)
	callsAfterFirst := f.calls.Load()
	assert.Equal(t, int32(2), callsAfterFirst)

	sections, err := l.Load(context.Background(), []string{"s1"}, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, f.calls.Load())
	assert.Len(t, sections[0].Questions, 2)
}

func TestLoader_InvalidateRefetches(t *testing.T) {
	f := defaultFixture()
	srv := newContentServer(t, f)
	l := newTestLoader(srv, cache.NewMemoryCache())
	ctx := context.Background()

	_, err := l.Load(ctx, []string{"s1", "s2"}, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.calls.Load())

	require.NoError(t, l.Invalidate(ctx, []string{" s1 "}))

	_, err = l.Load(ctx, []string{"s1", "s2"}, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, int32(6), f.calls.Load(), "only s1 is refetched")

	assert.NoError(t, newTestLoader(srv, nil).Invalidate(ctx, []string{"s1"}))
}

func TestParseInstructions(t *testing.T) {
	got := ParseInstructions(discardLogger(), "s1", `{"instructions":"Answer in NO MORE THAN TWO WORDS","html":"<p>x</p>"}`)
	assert.Equal(t, "Answer in NO MORE THAN TWO WORDS", got.Instructions)
	assert.Equal(t, "<p>x</p>", got.HTML)

	assert.True(t, ParseInstructions(discardLogger(), "s1", `{not json`).Empty())
	assert.True(t, ParseInstructions(discardLogger(), "s1", "   ").Empty())
}
