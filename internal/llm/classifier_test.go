package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/shepard/internal/cache"
	"github.com/ppiankov/shepard/internal/model"
	"go.uber.org/zap"
)

// stubProvider answers every request through fn
type stubProvider struct {
	fn    func(ctx context.Context, req Request) (*Response, error)
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	s.calls.Add(1)
	return s.fn(ctx, req)
}

func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func respond(text string) func(context.Context, Request) (*Response, error) {
	return func(context.Context, Request) (*Response, error) {
		return &Response{Text: text, TokensUsed: 10}, nil
	}
}

type recordingLimiter struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return nil
}

func newTestClassifier(t *testing.T, provider Provider, opts ClassifierOptions) *Classifier {
	t.Helper()
	opts.Logger = zap.NewNop()
	c, err := NewClassifier(provider, opts)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	return c
}

const negativePayload = `{"treated_case": "100 U.S. 200", "treatment_type": "Overruled", "excerpt": "We overrule 100 U.S. 200.", "explanation": "Expressly overruled.", "is_negative": true}`

func TestNewClassifier_RequiresProvider(t *testing.T) {
	if _, err := NewClassifier(nil, ClassifierOptions{}); err == nil {
		t.Fatal("Expected error without provider")
	}
}

func TestClassifier_ClassifyDocument(t *testing.T) {
	provider := &stubProvider{fn: func(ctx context.Context, req Request) (*Response, error) {
		if req.System != SystemPrompt {
			t.Errorf("Expected system prompt, got %q", req.System)
		}
		if req.Schema != DocumentSchema {
			t.Errorf("Expected document schema, got %v", req.Schema)
		}
		if req.Model != "gpt-4o" || req.MaxTokens != 512 {
			t.Errorf("Expected configured model and max tokens, got %s/%d", req.Model, req.MaxTokens)
		}
		return &Response{
			Text:       `{"citations": [{"treated_case": "Roe", "treatment_type": "Overruled", "excerpt": "Roe is overruled.", "explanation": "Overruled."}]}`,
			TokensUsed: 42,
		}, nil
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{Model: "gpt-4o", MaxTokens: 512})

	judgments, usage, err := c.ClassifyDocument(context.Background(), "opinion")
	if err != nil {
		t.Fatalf("ClassifyDocument failed: %v", err)
	}
	if len(judgments) != 1 || judgments[0].TreatedCase != "Roe" {
		t.Errorf("Unexpected judgments: %+v", judgments)
	}
	if usage.TokensUsed != 42 {
		t.Errorf("Expected 42 tokens, got %d", usage.TokensUsed)
	}
}

func TestClassifier_SchemaViolationNotRetried(t *testing.T) {
	provider := &stubProvider{fn: respond(`{"citations": [{"treated_case": "Roe"}]}`)}
	c := newTestClassifier(t, provider, ClassifierOptions{MaxRetries: 1})

	_, _, err := c.ClassifyDocument(context.Background(), "opinion")
	if !errors.Is(err, model.ErrSchemaViolation) {
		t.Fatalf("Expected schema violation, got %v", err)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("Schema violations must not be retried, got %d calls", provider.calls.Load())
	}
}

func TestClassifier_TransportRetriedOnce(t *testing.T) {
	provider := &stubProvider{}
	provider.fn = func(ctx context.Context, req Request) (*Response, error) {
		if provider.calls.Load() == 1 {
			return nil, fmt.Errorf("%w: connection reset", model.ErrTransportFailure)
		}
		return &Response{Text: negativePayload, TokensUsed: 5}, nil
	}
	c := newTestClassifier(t, provider, ClassifierOptions{MaxRetries: 1})

	outcome := c.ClassifyWindow(context.Background(), testWindow())
	if !outcome.OK() {
		t.Fatalf("Expected success after retry, got %v", outcome.Err)
	}
	if provider.calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", provider.calls.Load())
	}
	if outcome.Judgment.TreatmentType == nil || *outcome.Judgment.TreatmentType != "Overruled" {
		t.Errorf("Unexpected judgment: %+v", outcome.Judgment)
	}
}

func TestClassifier_TransportFailureAfterRetry(t *testing.T) {
	provider := &stubProvider{fn: func(ctx context.Context, req Request) (*Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{MaxRetries: 1})

	outcome := c.ClassifyWindow(context.Background(), testWindow())
	if outcome.OK() {
		t.Fatal("Expected failure")
	}
	if outcome.Failure != model.FailureTransportFailure {
		t.Errorf("Expected transport failure, got %q", outcome.Failure)
	}
	if !errors.Is(outcome.Err, model.ErrTransportFailure) {
		t.Errorf("Expected wrapped transport sentinel, got %v", outcome.Err)
	}
	if provider.calls.Load() != 2 {
		t.Errorf("Expected exactly one retry, got %d calls", provider.calls.Load())
	}
}

func TestClassifier_NoRetryConfigured(t *testing.T) {
	provider := &stubProvider{fn: func(ctx context.Context, req Request) (*Response, error) {
		return nil, errors.New("boom")
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{MaxRetries: 0})

	_ = c.ClassifyWindow(context.Background(), testWindow())
	if provider.calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", provider.calls.Load())
	}
}

func TestClassifier_PerCallTimeout(t *testing.T) {
	provider := &stubProvider{fn: func(ctx context.Context, req Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{CallTimeout: 20 * time.Millisecond, MaxRetries: 1})

	start := time.Now()
	outcome := c.ClassifyWindow(context.Background(), testWindow())
	if outcome.Failure != model.FailureTransportFailure {
		t.Fatalf("Expected transport failure on timeout, got %q (%v)", outcome.Failure, outcome.Err)
	}
	if provider.calls.Load() != 2 {
		t.Errorf("Expected timeout to be retried once, got %d calls", provider.calls.Load())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout not enforced, took %v", elapsed)
	}
}

func TestClassifier_ParentCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &stubProvider{fn: func(context.Context, Request) (*Response, error) {
		cancel()
		return nil, errors.New("interrupted")
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{MaxRetries: 1, RetryBackoff: time.Minute})

	outcome := c.ClassifyWindow(ctx, testWindow())
	if outcome.OK() {
		t.Fatal("Expected failure")
	}
	if provider.calls.Load() != 1 {
		t.Errorf("Expected no retry after cancellation, got %d calls", provider.calls.Load())
	}
}

func TestClassifier_TruncatedOutput(t *testing.T) {
	provider := &stubProvider{fn: func(context.Context, Request) (*Response, error) {
		return &Response{Text: `{"citations": [{"treated_case": "Ro`, Truncated: true}, nil
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{MaxRetries: 1})

	_, _, err := c.ClassifyDocument(context.Background(), "opinion")
	if !errors.Is(err, model.ErrSchemaViolation) {
		t.Fatalf("Expected schema violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "truncated") {
		t.Errorf("Expected truncation in error, got %v", err)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("Truncation must not be retried, got %d calls", provider.calls.Load())
	}
}

func TestClassifier_TruncatedButValid(t *testing.T) {
	provider := &stubProvider{fn: func(context.Context, Request) (*Response, error) {
		return &Response{Text: `{"citations": []}`, Truncated: true}, nil
	}}
	c := newTestClassifier(t, provider, ClassifierOptions{})

	if _, _, err := c.ClassifyDocument(context.Background(), "opinion"); err != nil {
		t.Errorf("A complete payload should be accepted even when flagged truncated: %v", err)
	}
}

func TestClassifier_NotNegative(t *testing.T) {
	provider := &stubProvider{fn: respond(`{"treated_case": "100 U.S. 200", "treatment_type": "", "excerpt": "", "explanation": "Followed.", "is_negative": false}`)}
	c := newTestClassifier(t, provider, ClassifierOptions{})

	outcome := c.ClassifyWindow(context.Background(), testWindow())
	if !outcome.OK() {
		t.Fatalf("Expected success, got %v", outcome.Err)
	}
	if outcome.Judgment.IsNegative || outcome.Judgment.TreatmentType != nil {
		t.Errorf("Expected non-negative judgment, got %+v", outcome.Judgment)
	}
}

func TestClassifier_Cache(t *testing.T) {
	provider := &stubProvider{fn: respond(negativePayload)}
	store := cache.NewMemoryCache(time.Minute, time.Minute)
	c := newTestClassifier(t, provider, ClassifierOptions{Model: "m", Cache: store})

	first := c.ClassifyWindow(context.Background(), testWindow())
	second := c.ClassifyWindow(context.Background(), testWindow())

	if !first.OK() || !second.OK() {
		t.Fatalf("Expected both calls to succeed: %v / %v", first.Err, second.Err)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("Expected cached second call, got %d provider calls", provider.calls.Load())
	}
	if second.Usage.CacheHits != 1 || second.Usage.TokensUsed != 0 {
		t.Errorf("Unexpected usage on cache hit: %+v", second.Usage)
	}
	if *first.Judgment.TreatmentType != *second.Judgment.TreatmentType {
		t.Error("Cached judgment should match the original")
	}
}

func TestClassifier_InvalidCacheEntryIgnored(t *testing.T) {
	provider := &stubProvider{fn: respond(negativePayload)}
	store := cache.NewMemoryCache(time.Minute, time.Minute)
	c := newTestClassifier(t, provider, ClassifierOptions{Model: "m", Cache: store})

	w := testWindow()
	key := cache.Key("stub", "m", CitationSchemaName, SystemPrompt, BuildCitationPrompt(w.Citation.Text, w.Text))
	_ = store.Set(key, []byte(`{"garbage": true}`), 0)

	outcome := c.ClassifyWindow(context.Background(), w)
	if !outcome.OK() {
		t.Fatalf("Expected fresh call to succeed, got %v", outcome.Err)
	}
	if provider.calls.Load() != 1 || outcome.Usage.CacheHits != 0 {
		t.Errorf("Expected provider call instead of cache hit, calls=%d usage=%+v", provider.calls.Load(), outcome.Usage)
	}
}

func TestClassifier_Limiter(t *testing.T) {
	limiter := &recordingLimiter{}
	provider := &stubProvider{fn: respond(negativePayload)}
	c := newTestClassifier(t, provider, ClassifierOptions{Limiter: limiter})

	_ = c.ClassifyWindow(context.Background(), testWindow())
	_ = c.ClassifyWindow(context.Background(), testWindow())

	if len(limiter.keys) != 2 || limiter.keys[0] != "stub" {
		t.Errorf("Expected limiter keyed by provider for each call, got %v", limiter.keys)
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want model.FailureReason
	}{
		{nil, model.FailureNone},
		{fmt.Errorf("parse: %w", model.ErrSchemaViolation), model.FailureSchemaViolation},
		{fmt.Errorf("call: %w", model.ErrTransportFailure), model.FailureTransportFailure},
		{errors.New("anything else"), model.FailureTransportFailure},
	}
	for _, tt := range tests {
		if got := FailureReason(tt.err); got != tt.want {
			t.Errorf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
