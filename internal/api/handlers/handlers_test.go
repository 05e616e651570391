package handlers

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"railrisk/internal/core"
	"railrisk/internal/types"
)

var (
	testNow = time.Date(2026, 1, 20, 6, 0, 0, 0, time.UTC)
	jst     = time.FixedZone("JST", 9*60*60)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

func fixedClock() types.Clock {
	return types.FixedClock(testNow)
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// serve mounts h under /v1 and runs one request through it.
func serve(t *testing.T, h routeRegistrar, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code types.ErrorCode) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status: got %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"code":"`+string(code)+`"`) {
		t.Errorf("expected code %q in body %s", code, rec.Body.String())
	}
}
