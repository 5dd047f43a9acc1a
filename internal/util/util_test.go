package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProxyFunc_Explicit(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443", "")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "api.openai.com"}}
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got.Host != "secure-proxy:8443" {
		t.Errorf("expected https proxy, got %v", got)
	}

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "localhost:11434"}}
	got, _ = proxy(req)
	if got.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %v", got)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"Shepard/0.1 (+https://github.com/ppiankov/shepard)": "Shepard",
		"curl/8.0": "curl",
		"":         "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRobotsChecker_CanFetch(t *testing.T) {
	var robotsFetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsFetches.Add(1)
			_, _ = w.Write([]byte("User-agent: Shepard\nDisallow: /private/\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker("Shepard/0.1", 5*time.Second, nil)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/opinions/roe-v-wade.html")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected public path to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("expected 2s crawl delay, got %v", delay)
	}

	allowed, _, _ = checker.CanFetch(ctx, server.URL+"/private/sealed.html")
	if allowed {
		t.Error("expected disallowed path to be blocked")
	}

	if robotsFetches.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once per host, got %d", robotsFetches.Load())
	}
}

func TestRobotsChecker_MissingRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker("Shepard/0.1", 5*time.Second, nil)
	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything.html")
	if err != nil || !allowed {
		t.Errorf("expected fetch allowed without robots.txt, got %v %v", allowed, err)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:8080", "", "localhost, .internal.example")

	for _, host := range []string{"localhost", "ollama.internal.example", "internal.example", "127.0.0.1"} {
		req := &http.Request{URL: &url.URL{Scheme: "http", Host: host}}
		got, err := proxy(req)
		if err != nil || got != nil {
			t.Errorf("expected %s to bypass the proxy, got %v %v", host, got, err)
		}
	}

	req := &http.Request{URL: &url.URL{Scheme: "http", Host: "courtlistener.com"}}
	if got, _ := proxy(req); got == nil {
		t.Error("expected external host to use the proxy")
	}
}
