package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guanacaste-labs/climatrack/internal/api"
	"github.com/guanacaste-labs/climatrack/internal/api/handler"
	"github.com/guanacaste-labs/climatrack/internal/auth"
	"github.com/guanacaste-labs/climatrack/internal/bus"
	"github.com/guanacaste-labs/climatrack/internal/config"
	"github.com/guanacaste-labs/climatrack/internal/record"
	"github.com/guanacaste-labs/climatrack/internal/store"
)

type testEnv struct {
	store  *store.Memory
	events *bus.Bus
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewMemory()
	events := bus.New(16, nil)
	t.Cleanup(events.Close)

	h := handler.New(handler.Deps{
		Store:  mem,
		Events: events,
		Config: &config.Config{},
	})
	router := api.NewRouter(h, auth.SubjectTokenResolver(), &config.Config{
		RateLimitEnabled: false,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{store: mem, events: events, server: srv}
}

// do issues a request as the given subject. A zero subject sends no
// Authorization header.
func (e *testEnv) do(t *testing.T, method, path string, subject int64, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if subject != 0 {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %d", subject))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestRecordsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/records", 0, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	errObj, ok := body["error"].(map[string]any)
	if !ok || errObj["code"] != "TOKEN_MISSING" {
		t.Fatalf("expected TOKEN_MISSING error, got %v", body)
	}
}

func TestRecordsRejectUnresolvableToken(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/records", nil)
	req.Header.Set("Authorization", "Bearer not-a-subject")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestListRecordsValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name, query string
	}{
		{"zero page", "?page=0"},
		{"non-integer per_page", "?per_page=abc"},
		{"per_page over limit", "?per_page=500"},
		{"bad start date", "?start_date=01-06-2026"},
		{"bad end date", "?end_date=yesterday"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/v1/records"+c.query, 1, "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s, got %d", c.query, resp.StatusCode)
			}
		})
	}
}

func TestListRecordsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := env.store.Append(ctx, 1, record.KindWeather, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("seed record %d: %v", i, err)
		}
	}
	// Another subject's record must never appear in the listing.
	if _, err := env.store.Append(ctx, 2, record.KindWeather, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("seed foreign record: %v", err)
	}

	resp := env.do(t, http.MethodGet, "/api/v1/records?page=3&per_page=10", 1, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	if body["total"] != float64(25) || body["pages"] != float64(3) {
		t.Fatalf("expected total 25 / pages 3, got %v / %v", body["total"], body["pages"])
	}
	if body["user_id"] != float64(1) {
		t.Fatalf("expected user_id 1, got %v", body["user_id"])
	}
	records, ok := body["records"].([]any)
	if !ok || len(records) != 5 {
		t.Fatalf("expected 5 records on page 3, got %v", body["records"])
	}

	// Past the end: empty page, same totals.
	resp = env.do(t, http.MethodGet, "/api/v1/records?page=4&per_page=10", 1, "")
	body = decodeBody(t, resp)
	records, _ = body["records"].([]any)
	if len(records) != 0 || body["total"] != float64(25) || body["pages"] != float64(3) {
		t.Fatalf("expected empty page with unchanged totals, got %v", body)
	}
}

func TestListRecordsDateWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Append(ctx, 1, record.KindWeather, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	resp := env.do(t, http.MethodGet, "/api/v1/records?start_date="+today+"&end_date="+today, 1, "")
	body := decodeBody(t, resp)
	if body["total"] != float64(1) {
		t.Fatalf("expected today's record inside an inclusive end date, got total %v", body["total"])
	}

	resp = env.do(t, http.MethodGet, "/api/v1/records?end_date=2000-01-01", 1, "")
	body = decodeBody(t, resp)
	if body["total"] != float64(0) {
		t.Fatalf("expected no records before 2000, got total %v", body["total"])
	}
}

func TestListRecordsPublishesReadEvent(t *testing.T) {
	env := newTestEnv(t)
	sub := env.events.Subscribe()

	resp := env.do(t, http.MethodGet, "/api/v1/records", 1, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != "query" || ev.Action != bus.ActionRead {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for read event")
	}
}

func TestCreateRecord(t *testing.T) {
	env := newTestEnv(t)
	sub := env.events.Subscribe()

	resp := env.do(t, http.MethodPost, "/api/v1/records", 1,
		`{"record_type":"weather","data":{"temperature":25.4,"humidity":63}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["message"] != "Record added successfully." {
		t.Fatalf("unexpected message %v", body["message"])
	}

	latest, err := env.store.Latest(context.Background(), 1, record.KindWeather)
	if err != nil {
		t.Fatalf("latest after create: %v", err)
	}
	if !strings.Contains(string(latest.Payload), "temperature") {
		t.Fatalf("expected stored payload to carry the reading, got %s", latest.Payload)
	}

	select {
	case ev := <-sub.Events():
		if ev.Action != bus.ActionCreate {
			t.Fatalf("expected create event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestCreateRecordValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name, body string
	}{
		{"not json", `temperature=25`},
		{"missing record_type", `{"data":{"temperature":25}}`},
		{"missing data", `{"record_type":"weather"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/records", 1, c.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestDeleteRecordOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.store.Append(ctx, 2, record.KindWeather, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	// A foreign record and a missing record answer identically.
	resp := env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/records/%d", rec.ID), 1, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign delete, got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodDelete, "/api/v1/records/999999", 1, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing record, got %d", resp.StatusCode)
	}

	// The record survived the foreign attempt.
	if _, err := env.store.Latest(ctx, 2, record.KindWeather); err != nil {
		t.Fatalf("expected record to survive foreign delete: %v", err)
	}

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/records/%d", rec.ID), 2, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for owner delete, got %d", resp.StatusCode)
	}
	if _, err := env.store.Latest(ctx, 2, record.KindWeather); err == nil {
		t.Fatal("expected record gone after owner delete")
	}
}

func TestDeleteRecordBadID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodDelete, "/api/v1/records/abc", 1, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer id, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", 0, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}

	// No database attached: the db probe reports unhealthy.
	resp = env.do(t, http.MethodGet, "/health/db", 0, "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from /health/db without a pool, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/health/bus", 0, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health/bus, got %d", resp.StatusCode)
	}
}
