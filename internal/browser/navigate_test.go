package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

type scriptedTab struct {
	schemas.Tab
	results  map[string]schemas.NavigationResult
	attempts []string
	err      error
}

func (s *scriptedTab) Navigate(_ context.Context, rawURL string, _ time.Duration) (schemas.NavigationResult, error) {
	s.attempts = append(s.attempts, rawURL)
	if s.err != nil {
		return schemas.NavigationResult{AttemptedURL: rawURL}, s.err
	}
	if res, ok := s.results[rawURL]; ok {
		return res, nil
	}
	return schemas.NavigationResult{
		Status:       schemas.NavNetworkError,
		AttemptedURL: rawURL,
		Note:         "net::ERR_NAME_NOT_RESOLVED",
	}, nil
}

func TestCandidateURLsOrder(t *testing.T) {
	assert.Equal(t, []string{
		"https://example.com",
		"https://www.example.com",
		"http://example.com",
		"http://www.example.com",
	}, CandidateURLs("example.com"))

	assert.Equal(t, []string{
		"https://www.example.com",
		"http://www.example.com",
	}, CandidateURLs("www.example.com"))

	assert.Equal(t, []string{"https://example.com/a"}, CandidateURLs("https://example.com/a"))
}

func TestNavigateLadderStopsAtFirstSuccess(t *testing.T) {
	tab := &scriptedTab{results: map[string]schemas.NavigationResult{
		"https://www.example.com": {Status: schemas.NavLoaded, AttemptedURL: "https://www.example.com", StatusCode: 200},
	}}

	res, err := NavigateLadder(context.Background(), tab, "example.com", time.Second)
	require.NoError(t, err)
	assert.Equal(t, schemas.NavLoaded, res.Status)
	assert.Equal(t, []string{"https://example.com", "https://www.example.com"}, tab.attempts)
}

func TestNavigateLadderRedirectedCountsAsLoaded(t *testing.T) {
	tab := &scriptedTab{results: map[string]schemas.NavigationResult{
		"https://example.com": {Status: schemas.NavRedirected, AttemptedURL: "https://example.com", FinalURL: "https://other.example.net/"},
	}}

	res, err := NavigateLadder(context.Background(), tab, "example.com", time.Second)
	require.NoError(t, err)
	assert.Equal(t, schemas.NavRedirected, res.Status)
	assert.Len(t, tab.attempts, 1)
}

func TestNavigateLadderExhausted(t *testing.T) {
	tab := &scriptedTab{}

	res, err := NavigateLadder(context.Background(), tab, "nxdomain.example", time.Second)
	require.Error(t, err)

	var navErr *schemas.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "nxdomain.example", navErr.Domain)
	assert.Equal(t, schemas.NavNetworkError, res.Status)
	assert.Len(t, tab.attempts, 4)
}

func TestNavigateLadderPropagatesSessionError(t *testing.T) {
	tab := &scriptedTab{err: schemas.NewSessionError("navigate", errors.New("tab gone"))}

	_, err := NavigateLadder(context.Background(), tab, "example.com", time.Second)
	var sessErr *schemas.SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Len(t, tab.attempts, 1)
}

func TestNavigateLadderHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tab := &scriptedTab{}
	_, err := NavigateLadder(ctx, tab, "example.com", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tab.attempts)
}

func TestCrossedHost(t *testing.T) {
	assert.False(t, crossedHost("https://example.com", "https://www.example.com/home"))
	assert.False(t, crossedHost("https://example.com", ""))
	assert.True(t, crossedHost("https://example.com", "https://consent.example.net/"))
}
