package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBrowser hands out stub tabs and lets tests script failures per domain.
type fakeBrowser struct {
	mu         sync.Mutex
	openCount  int
	closeCount int

	timeoutDomains map[string]bool
	dieOnDomain    string // session drops when this domain navigates
	notice         bool   // every loaded page shows a consent banner
	delay          time.Duration
}

func (b *fakeBrowser) OpenTab(ctx context.Context) (schemas.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.openCount++
	b.mu.Unlock()
	return &stubTab{browser: b}, nil
}

func (b *fakeBrowser) Shutdown(context.Context) error { return nil }

type stubTab struct {
	browser *fakeBrowser
	lastURL string
}

func (t *stubTab) Navigate(ctx context.Context, rawURL string, _ time.Duration) (schemas.NavigationResult, error) {
	b := t.browser
	if b.delay > 0 {
		select {
		case <-ctx.Done():
			return schemas.NavigationResult{}, ctx.Err()
		case <-time.After(b.delay):
		}
	}
	domain := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	domain = strings.TrimPrefix(domain, "www.")

	if b.dieOnDomain != "" && strings.Contains(domain, b.dieOnDomain) {
		return schemas.NavigationResult{}, schemas.NewSessionError("navigate", errors.New("browser went away"))
	}
	if b.timeoutDomains[domain] {
		return schemas.NavigationResult{Status: schemas.NavTimeout, AttemptedURL: rawURL}, nil
	}
	t.lastURL = rawURL
	return schemas.NavigationResult{
		Status:       schemas.NavLoaded,
		AttemptedURL: rawURL,
		FinalURL:     rawURL + "/",
		StatusCode:   200,
	}, nil
}

func (t *stubTab) Snapshot(context.Context) (*schemas.PageSnapshot, error) {
	snap := &schemas.PageSnapshot{
		URL:            "https://example.com/",
		ViewportWidth:  1280,
		ViewportHeight: 800,
		BodyText:       "Welcome to the page.",
	}
	if t.browser.notice && !strings.Contains(t.lastURL, "no-consent") {
		snap.Regions = []schemas.Region{{
			Path:     []int{1, 4},
			Tag:      "div",
			Text:     "We use cookies. Accept all or manage preferences.",
			Box:      schemas.Rect{X: 0, Y: 740, W: 1280, H: 60},
			Position: "fixed",
			Visible:  true,
			Clickables: []schemas.Clickable{{
				Path: []int{1, 4, 0}, Tag: "button", Kind: "button", Text: "Accept all",
				Box: schemas.Rect{X: 10, Y: 750, W: 100, H: 30},
			}},
		}}
	}
	return snap, nil
}

func (t *stubTab) Click(context.Context, schemas.Clickable) error     { return nil }
func (t *stubTab) NoticeVisible(context.Context, []int) (bool, error) { return false, nil }
func (t *stubTab) CurrentURL(context.Context) (string, error)         { return "https://example.com/", nil }
func (t *stubTab) PopupSeen() bool                                    { return false }
func (t *stubTab) Cookies(context.Context) ([]schemas.Cookie, error)  { return nil, nil }
func (t *stubTab) Screenshot(context.Context) ([]byte, error)         { return []byte{1}, nil }

func (t *stubTab) Close() error {
	t.browser.mu.Lock()
	t.browser.closeCount++
	t.browser.mu.Unlock()
	return nil
}

// countingRecorder collects records in memory.
type countingRecorder struct {
	mu      sync.Mutex
	records []*schemas.ScanRecord

	finalStatus schemas.RunStatus
	finalReason string
	finalized   atomic.Bool
}

func (r *countingRecorder) WriteRecord(rec *schemas.ScanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *countingRecorder) WriteScreenshot(int, string, []byte) (string, error) {
	return "shot.png", nil
}

func (r *countingRecorder) Finalize(status schemas.RunStatus, _ time.Time, reason string) error {
	r.finalStatus = status
	r.finalReason = reason
	r.finalized.Store(true)
	return nil
}

func (r *countingRecorder) byDomain() map[string]*schemas.ScanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*schemas.ScanRecord, len(r.records))
	for _, rec := range r.records {
		out[rec.Domain] = rec
	}
	return out
}

func testConfig(workers int) *config.Config {
	return &config.Config{
		Browser: config.BrowserConfig{
			DebuggerURL:       "http://127.0.0.1:9222",
			TabPoolSize:       workers,
			NavigationTimeout: time.Second,
			QuietPeriod:       10 * time.Millisecond,
			SettleTimeout:     50 * time.Millisecond,
		},
		Scan: config.ScanConfig{Dataset: 1, Start: 1, ResultsDir: "results"},
		Detector: config.DetectorConfig{
			AcceptConfidence: 0.5,
			OverlapMerge:     0.5,
			ModalCoverage:    0.4,
			MaxCandidates:    8,
		},
		Interact: config.InteractConfig{ClickCap: 5},
	}
}

func domainList(names ...string) []schemas.Domain {
	out := make([]schemas.Domain, len(names))
	for i, n := range names {
		out[i] = schemas.Domain{Rank: i + 1, Name: n}
	}
	return out
}

func TestRunWritesOneRecordPerDomain(t *testing.T) {
	b := &fakeBrowser{notice: true}
	rec := &countingRecorder{}
	s := New(zap.NewNop(), testConfig(2), b, rec)

	status, err := s.Run(context.Background(), domainList("a.example", "b.example", "c.example"))
	require.NoError(t, err)
	assert.Equal(t, schemas.RunCompleted, status)
	assert.True(t, rec.finalized.Load())

	byDomain := rec.byDomain()
	require.Len(t, byDomain, 3)
	for _, r := range byDomain {
		assert.Equal(t, schemas.LabelBanner, r.Detection.Label)
		assert.Equal(t, schemas.NavLoaded, r.Navigation.Status)
	}
	assert.Equal(t, b.openCount, b.closeCount)
}

func TestRunRecordsTimeoutAndContinues(t *testing.T) {
	b := &fakeBrowser{timeoutDomains: map[string]bool{"slow.example": true}}
	rec := &countingRecorder{}
	s := New(zap.NewNop(), testConfig(1), b, rec)

	status, err := s.Run(context.Background(), domainList("slow.example", "fast.example"))
	require.NoError(t, err)
	assert.Equal(t, schemas.RunCompleted, status)

	byDomain := rec.byDomain()
	require.Len(t, byDomain, 2)
	assert.Equal(t, schemas.NavTimeout, byDomain["slow.example"].Navigation.Status)
	assert.Equal(t, schemas.NavLoaded, byDomain["fast.example"].Navigation.Status)
}

func TestRunAbortsOnSessionLoss(t *testing.T) {
	b := &fakeBrowser{dieOnDomain: "a.example"}
	rec := &countingRecorder{}
	s := New(zap.NewNop(), testConfig(1), b, rec)

	status, err := s.Run(context.Background(), domainList("a.example", "b.example", "c.example"))
	require.Error(t, err)
	assert.Equal(t, schemas.RunFailed, status)
	assert.Equal(t, schemas.RunFailed, rec.finalStatus)
	assert.Contains(t, rec.finalReason, "browser session")

	var sessErr *schemas.SessionError
	assert.ErrorAs(t, err, &sessErr)
}

// failingRecorder rejects every record write.
type failingRecorder struct {
	countingRecorder
}

func (r *failingRecorder) WriteRecord(*schemas.ScanRecord) error {
	return errors.New("disk full")
}

func TestRunFailsWhenRecordWriteFails(t *testing.T) {
	b := &fakeBrowser{}
	rec := &failingRecorder{}
	s := New(zap.NewNop(), testConfig(1), b, rec)

	status, err := s.Run(context.Background(), domainList("a.example", "b.example", "c.example"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist record for a.example")
	assert.Equal(t, schemas.RunFailed, status)
	assert.Equal(t, schemas.RunFailed, rec.finalStatus)
	assert.Contains(t, rec.finalReason, "disk full")
}

func TestRunInterruptedByCancellation(t *testing.T) {
	b := &fakeBrowser{delay: 20 * time.Millisecond}
	rec := &countingRecorder{}
	s := New(zap.NewNop(), testConfig(1), b, rec)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	names := make([]string, 50)
	for i := range names {
		names[i] = "site.example"
	}
	status, err := s.Run(ctx, domainList(names...))
	require.NoError(t, err)
	assert.Equal(t, schemas.RunInterrupted, status)
	assert.Equal(t, schemas.RunInterrupted, rec.finalStatus)

	rec.mu.Lock()
	written := len(rec.records)
	rec.mu.Unlock()
	assert.Less(t, written, 50)
}

func TestRunClickPhasePopulatesInteractions(t *testing.T) {
	b := &fakeBrowser{notice: true}
	rec := &countingRecorder{}
	cfg := testConfig(1)
	cfg.Scan.Click = true
	s := New(zap.NewNop(), cfg, b, rec)

	_, err := s.Run(context.Background(), domainList("a.example"))
	require.NoError(t, err)

	byDomain := rec.byDomain()
	require.Len(t, byDomain, 1)
	outcomes := byDomain["a.example"].Interactions
	require.Len(t, outcomes, 1)
	assert.Equal(t, "accept", outcomes[0].Action)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, schemas.EffectNoticeRemoved, outcomes[0].Effect)
}

func TestRunMixedOutcomes(t *testing.T) {
	b := &fakeBrowser{
		notice:         true,
		timeoutDomains: map[string]bool{"slow.test": true},
	}
	rec := &countingRecorder{}
	cfg := testConfig(2)
	cfg.Scan.Click = true
	s := New(zap.NewNop(), cfg, b, rec)

	status, err := s.Run(context.Background(), domainList("example.com", "no-consent.test", "slow.test"))
	require.NoError(t, err)
	assert.Equal(t, schemas.RunCompleted, status)

	byDomain := rec.byDomain()
	require.Len(t, byDomain, 3)

	withNotice := byDomain["example.com"]
	assert.Equal(t, schemas.LabelBanner, withNotice.Detection.Label)
	require.Len(t, withNotice.Interactions, 1)
	assert.True(t, withNotice.Interactions[0].Success)
	assert.Equal(t, schemas.EffectNoticeRemoved, withNotice.Interactions[0].Effect)

	quiet := byDomain["no-consent.test"]
	assert.Equal(t, schemas.LabelNone, quiet.Detection.Label)
	assert.Empty(t, quiet.Interactions)

	slow := byDomain["slow.test"]
	assert.Equal(t, schemas.NavTimeout, slow.Navigation.Status)
	assert.Equal(t, schemas.LabelNone, slow.Detection.Label)
}

func TestRunManyDomainsNoLeaks(t *testing.T) {
	b := &fakeBrowser{notice: true}
	rec := &countingRecorder{}
	s := New(zap.NewNop(), testConfig(4), b, rec)

	names := make([]string, 100)
	for i := range names {
		names[i] = "site.example"
	}
	status, err := s.Run(context.Background(), domainList(names...))
	require.NoError(t, err)
	assert.Equal(t, schemas.RunCompleted, status)

	rec.mu.Lock()
	written := len(rec.records)
	rec.mu.Unlock()
	assert.Equal(t, 100, written)
	assert.Equal(t, 100, b.openCount)
	assert.Equal(t, 100, b.closeCount)
}
