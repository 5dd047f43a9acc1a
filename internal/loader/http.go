package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/shepard/internal/extract"
	"github.com/ppiankov/shepard/internal/model"
	"github.com/ppiankov/shepard/internal/util"
)

const fetchMaxAttempts = 3

// fetchSleepFunc is the sleep between fetch attempts (injectable for tests)
var fetchSleepFunc = sleepContext

// statusError is a non-2xx response
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, e.status)
}

// HTTPLoader fetches <baseURL>/<slug>.html
type HTTPLoader struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
}

// NewHTTPLoader creates a loader for a remote opinion source
func NewHTTPLoader(baseURL string, timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string) *HTTPLoader {
	proxy := util.NewProxyFunc(httpProxy, httpsProxy, noProxy)

	l := &HTTPLoader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: proxy,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
	if respectRobots {
		l.robots = util.NewRobotsChecker(userAgent, timeout, proxy)
	}
	return l
}

// URL returns the address a slug resolves to
func (l *HTTPLoader) URL(slug string) string {
	return fmt.Sprintf("%s/%s.html", l.baseURL, url.PathEscape(slug))
}

// Load fetches and converts the opinion HTML
func (l *HTTPLoader) Load(ctx context.Context, slug string) (string, error) {
	if err := validateSlug(slug); err != nil {
		return "", err
	}

	rawURL := l.URL(slug)

	if l.robots != nil {
		allowed, delay, err := l.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return "", fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return "", fmt.Errorf("fetch %s: disallowed by robots.txt", rawURL)
		}
		if err := sleepContext(ctx, delay); err != nil {
			return "", err
		}
	}

	body, err := l.fetchWithRetry(ctx, rawURL)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusNotFound || se.code == http.StatusGone) {
			return "", fmt.Errorf("%w: %s", model.ErrInputNotFound, rawURL)
		}
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	text, err := extract.OpinionText(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return text, nil
}

// fetchWithRetry retries transient failures (network errors, 429, 5xx) with linear backoff
func (l *HTTPLoader) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		body, err := l.fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || attempt == fetchMaxAttempts {
			break
		}
		if err := fetchSleepFunc(ctx, time.Duration(attempt)*time.Second); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (l *HTTPLoader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: http.StatusText(resp.StatusCode)}
	}

	var reader io.Reader = resp.Body
	if l.maxBytes > 0 {
		// One byte past the limit detects oversized documents
		reader = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if l.maxBytes > 0 && int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", l.maxBytes)
	}

	return body, nil
}

// isRetryableFetchError reports whether a fetch failure is transient
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
