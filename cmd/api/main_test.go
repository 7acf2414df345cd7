package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/podseek/podseek/engine/search"
	"github.com/podseek/podseek/engine/semantic"
	"github.com/podseek/podseek/engine/snippet"
	"github.com/podseek/podseek/pkg/metrics"
)

type stubSearcher struct {
	hits []semantic.Hit
	err  error
}

func (s *stubSearcher) Search(context.Context, string, int, map[string]string) ([]semantic.Hit, error) {
	return s.hits, s.err
}

type stubChatter struct {
	tokens []string
	err    error
}

func (s *stubChatter) Respond(_ context.Context, _, _ string, onToken func(string) error) error {
	if s.err != nil {
		return s.err
	}
	for _, tok := range s.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

type stubDistincter struct {
	values map[string][]string
	err    error
}

func (s *stubDistincter) DistinctPayload(_ context.Context, field string) ([]string, error) {
	return s.values[field], s.err
}

func testApp(t *testing.T) *application {
	t.Helper()
	reg := metrics.New()
	return &application{
		searcher:   &stubSearcher{},
		chatter:    &stubChatter{},
		store:      &stubDistincter{},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		searches:   reg.Counter("search_requests_total", ""),
		chats:      reg.Counter("chat_requests_total", ""),
		chatTokens: reg.Counter("chat_tokens_streamed_total", ""),
		reindexes:  reg.Counter("reindex_requests_total", ""),
		latency:    reg.Histogram("http_request_seconds", "", nil),
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testApp(t).handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleSearch_OK(t *testing.T) {
	app := testApp(t)
	app.searcher = &stubSearcher{hits: []semantic.Hit{
		{Snippet: snippet.New("gotime", 1, "Mat", "hello"), Score: 0.5},
	}}

	body := strings.NewReader(`{"query":"greeting","limit":5}`)
	rec := httptest.NewRecorder()
	app.handleSearch(rec, httptest.NewRequest(http.MethodPost, "/api/search", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Results[0].Snippet.Speaker != "Mat" {
		t.Errorf("resp = %+v", resp)
	}
	if app.searches.Value() != 1 {
		t.Errorf("search counter = %d", app.searches.Value())
	}
}

func TestHandleSearch_BadJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	testApp(t).handleSearch(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleSearch_ValidationMapsTo400(t *testing.T) {
	app := testApp(t)
	app.searcher = &stubSearcher{err: &search.FieldError{Field: "host", Wrapped: search.ErrInvalidFilterField}}

	rec := httptest.NewRecorder()
	app.handleSearch(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q","filters":{"host":"x"}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "host") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleSearch_StoreErrorMapsTo500(t *testing.T) {
	app := testApp(t)
	app.searcher = &stubSearcher{err: errors.New("qdrant down")}

	rec := httptest.NewRecorder()
	app.handleSearch(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleSearch_EmptyResultsIsNotNull(t *testing.T) {
	app := testApp(t)
	rec := httptest.NewRecorder()
	app.handleSearch(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`)))
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleDistinct(t *testing.T) {
	app := testApp(t)
	app.store = &stubDistincter{values: map[string][]string{
		"podcast_name": {"gotime", "jsparty"},
		"speaker":      {"Adam", "Jerod"},
	}}

	rec := httptest.NewRecorder()
	app.handlePodcasts(rec, httptest.NewRequest(http.MethodGet, "/api/podcasts", nil))
	if !strings.Contains(rec.Body.String(), `"podcasts":["gotime","jsparty"]`) {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	app.handleSpeakers(rec, httptest.NewRequest(http.MethodGet, "/api/speakers", nil))
	if !strings.Contains(rec.Body.String(), `"speakers":["Adam","Jerod"]`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleChat_StreamsPlainText(t *testing.T) {
	app := testApp(t)
	app.chatter = &stubChatter{tokens: []string{"I'm ", "not ", "sure."}}

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"query":"what is go?","speaker":"Mat Ryer"}`)
	app.handleChat(rec, httptest.NewRequest(http.MethodPost, "/api/chat", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != "I'm not sure." {
		t.Errorf("body = %q", rec.Body.String())
	}
	if app.chatTokens.Value() != 3 {
		t.Errorf("token counter = %d", app.chatTokens.Value())
	}
}

func TestHandleChat_ErrorBeforeOutputIs500(t *testing.T) {
	app := testApp(t)
	app.chatter = &stubChatter{err: errors.New("model down")}

	rec := httptest.NewRecorder()
	app.handleChat(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"q","speaker":"Mat"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleReindex_WithoutNATSIs503(t *testing.T) {
	rec := httptest.NewRecorder()
	testApp(t).handleReindex(rec, httptest.NewRequest(http.MethodPost, "/api/reindex", strings.NewReader("{}")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" || cfg.Collection != "podseek" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RateLimit != 60 {
		t.Errorf("rate limit = %d", cfg.RateLimit)
	}
}
