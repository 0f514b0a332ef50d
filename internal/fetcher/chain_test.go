package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/resilience"
)

type stubFetcher struct {
	name    string
	detail  bool
	results []func() (*Result, error)
	calls   int
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Supports(t Target) bool { return s.detail || !t.IsDetail() }

func (s *stubFetcher) Fetch(ctx context.Context, t Target) (*Result, error) {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx]()
}

func ok(source string) func() (*Result, error) {
	return func() (*Result, error) {
		return &Result{HTML: "<html/>", Source: source, FetchedAt: time.Now()}, nil
	}
}

func blocked() func() (*Result, error) {
	return func() (*Result, error) { return nil, &BlockedError{StatusCode: 403, Block: BlockStatus} }
}

func empty() func() (*Result, error) {
	return func() (*Result, error) { return nil, ErrEmpty }
}

func fastChainRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func searchTarget() Target {
	c := model.DefaultCriteria()
	return Target{Criteria: &c, Page: 1}
}

func TestChainFirstSuccess(t *testing.T) {
	first := &stubFetcher{name: "a", results: []func() (*Result, error){ok("a")}}
	second := &stubFetcher{name: "b", results: []func() (*Result, error){ok("b")}}

	chain := NewChain(fastChainRetry(), nil, first, second)
	res, err := chain.Fetch(context.Background(), searchTarget())
	require.NoError(t, err)
	assert.Equal(t, "a", res.Source)
	assert.Zero(t, second.calls)
}

func TestChainFallsThroughOnBlock(t *testing.T) {
	first := &stubFetcher{name: "a", results: []func() (*Result, error){blocked()}}
	second := &stubFetcher{name: "b", results: []func() (*Result, error){ok("b")}}

	chain := NewChain(fastChainRetry(), nil, first, second)
	res, err := chain.Fetch(context.Background(), searchTarget())
	require.NoError(t, err)
	assert.Equal(t, "b", res.Source)
	// Blocked responses consume the whole retry budget before falling through.
	assert.Equal(t, 2, first.calls)
}

func TestChainEmptyShortCircuits(t *testing.T) {
	first := &stubFetcher{name: "a", results: []func() (*Result, error){empty()}}
	second := &stubFetcher{name: "b", results: []func() (*Result, error){ok("b")}}

	chain := NewChain(fastChainRetry(), nil, first, second)
	_, err := chain.Fetch(context.Background(), searchTarget())
	require.Error(t, err)
	assert.True(t, IsEmpty(err))
	assert.Zero(t, second.calls)
	// Empty is terminal, not retried.
	assert.Equal(t, 1, first.calls)
}

func TestChainAllFail(t *testing.T) {
	first := &stubFetcher{name: "a", results: []func() (*Result, error){blocked()}}
	second := &stubFetcher{name: "b", results: []func() (*Result, error){blocked()}}

	chain := NewChain(fastChainRetry(), nil, first, second)
	_, err := chain.Fetch(context.Background(), searchTarget())
	require.Error(t, err)
	assert.True(t, IsBlocked(err))
}

func TestChainSkipsUnsupported(t *testing.T) {
	searchOnly := &stubFetcher{name: "api", results: []func() (*Result, error){ok("api")}}
	detail := &stubFetcher{name: "static", detail: true, results: []func() (*Result, error){ok("static")}}

	chain := NewChain(fastChainRetry(), nil, searchOnly, detail)
	res, err := chain.Fetch(context.Background(), Target{URL: "https://www.cian.ru/sale/flat/1/"})
	require.NoError(t, err)
	assert.Equal(t, "static", res.Source)
	assert.Zero(t, searchOnly.calls)
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   BlockType
	}{
		{"forbidden", 403, "", BlockStatus},
		{"too many requests", 429, "", BlockStatus},
		{"captcha page", 200, "<html>please solve the CAPTCHA</html>", BlockCaptcha},
		{"access wall", 200, "<html>Доступ ограничен</html>", BlockWall},
		{"js shell", 200, `<noscript>enable javascript</noscript>`, BlockJSShell},
		{"clean", 200, "<html><article data-name=\"CardComponent\"/></html>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(tt.status, tt.body)
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestSearchURL(t *testing.T) {
	c := model.DefaultCriteria()
	c.DistrictAllowlist = []string{"Хамовники"}
	u := SearchURL("https://www.cian.ru", 1, &c, 3)

	assert.Contains(t, u, "deal_type=sale")
	assert.Contains(t, u, "minarea=38")
	assert.Contains(t, u, "maxarea=150")
	assert.Contains(t, u, "maxprice=100000000")
	assert.Contains(t, u, "floornl=1")
	assert.Contains(t, u, "p=3")
	assert.Contains(t, u, "district%5B%5D=21")
}
