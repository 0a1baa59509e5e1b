package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docopt/docopt-go"
)

func TestCorsMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := corsMiddleware(next, []string{"http://a.test"})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://a.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://a.test" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}

	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow header, got %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/", nil)
	rec = httptest.NewRecorder()
	corsMiddleware(next, []string{"*"}).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}
}

func TestResolveFlagsOverride(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "sqlite")
	opts, err := docopt.ParseArgs(usage, []string{"serve", "--port=7000", "--log-level=debug"}, Version)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := resolve(opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 {
		t.Fatalf("flag should win over env, got %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("env should win over defaults, got %q", cfg.Store.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug, got %q", cfg.Log.Level)
	}
}

func TestResolveRejectsBadBackend(t *testing.T) {
	opts, err := docopt.ParseArgs(usage, []string{"serve", "--backend=json"}, Version)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resolve(opts); err == nil {
		t.Fatal("expected validation error")
	}
}
