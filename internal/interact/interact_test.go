package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/config"
)

// fakeTab scripts per-click behavior for the runner.
type fakeTab struct {
	clicks       int
	clickErrs    map[int]error  // click index -> error
	hideAfter    map[int]bool   // click index -> notice disappears
	navigateTo   map[int]string // click index -> page leaves to this URL
	popupOn      map[int]bool
	currentURL   string
	originalURL  string
	cookieCount  int
	restoreFails bool
	restored     int
}

func newFakeTab(origin string) *fakeTab {
	return &fakeTab{
		currentURL:  origin,
		originalURL: origin,
		clickErrs:   map[int]error{},
		hideAfter:   map[int]bool{},
		navigateTo:  map[int]string{},
		popupOn:     map[int]bool{},
		cookieCount: 3,
	}
}

func (f *fakeTab) Navigate(_ context.Context, rawURL string, _ time.Duration) (schemas.NavigationResult, error) {
	f.restored++
	if f.restoreFails {
		return schemas.NavigationResult{Status: schemas.NavTimeout, AttemptedURL: rawURL}, nil
	}
	f.currentURL = rawURL
	return schemas.NavigationResult{Status: schemas.NavLoaded, AttemptedURL: rawURL, FinalURL: rawURL}, nil
}

func (f *fakeTab) Snapshot(context.Context) (*schemas.PageSnapshot, error) { return nil, nil }

func (f *fakeTab) Click(_ context.Context, _ schemas.Clickable) error {
	idx := f.clicks
	f.clicks++
	if err := f.clickErrs[idx]; err != nil {
		return err
	}
	if to := f.navigateTo[idx]; to != "" {
		f.currentURL = to
	}
	f.cookieCount++
	return nil
}

func (f *fakeTab) NoticeVisible(_ context.Context, _ []int) (bool, error) {
	return !f.hideAfter[f.clicks-1], nil
}

func (f *fakeTab) CurrentURL(context.Context) (string, error) { return f.currentURL, nil }

func (f *fakeTab) PopupSeen() bool { return f.popupOn[f.clicks-1] }

func (f *fakeTab) Cookies(context.Context) ([]schemas.Cookie, error) {
	out := make([]schemas.Cookie, f.cookieCount)
	return out, nil
}

func (f *fakeTab) Screenshot(context.Context) ([]byte, error) { return nil, nil }
func (f *fakeTab) Close() error                               { return nil }

func testCandidate(n int) schemas.NoticeCandidate {
	c := schemas.NoticeCandidate{
		Region: schemas.Region{Path: []int{1, 4}},
		Label:  schemas.LabelBanner,
	}
	for i := 0; i < n; i++ {
		c.Region.Clickables = append(c.Region.Clickables, schemas.Clickable{
			Path: []int{1, 4, i},
			Tag:  "button",
			Kind: "button",
			Text: "Button",
			Box:  schemas.Rect{X: float64(i * 50), Y: 750, W: 40, H: 20},
		})
	}
	return c
}

func newTestRunner() *Runner {
	cfg := config.InteractConfig{ClickCap: 5, PostClickWait: 0}
	return NewRunner(zap.NewNop(), cfg, time.Second)
}

func TestRunCapsClickables(t *testing.T) {
	tab := newFakeTab("https://example.com/")
	outcomes, err := newTestRunner().Run(context.Background(), tab, testCandidate(9), tab.originalURL)

	require.NoError(t, err)
	assert.Len(t, outcomes, 5)
	assert.Equal(t, 5, tab.clicks)
}

func TestRunRecordsNoticeRemoved(t *testing.T) {
	tab := newFakeTab("https://example.com/")
	tab.hideAfter[1] = true

	outcomes, err := newTestRunner().Run(context.Background(), tab, testCandidate(3), tab.originalURL)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, schemas.EffectNoChange, outcomes[0].Effect)
	assert.Equal(t, schemas.EffectNoticeRemoved, outcomes[1].Effect)
	assert.True(t, outcomes[1].Success)
	assert.Greater(t, outcomes[1].CookiesAfter, outcomes[1].CookiesBefore)
}

func TestRunContinuesPastClickError(t *testing.T) {
	tab := newFakeTab("https://example.com/")
	tab.clickErrs[0] = errors.New("node detached")

	outcomes, err := newTestRunner().Run(context.Background(), tab, testCandidate(2), tab.originalURL)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, "node detached")
	assert.True(t, outcomes[1].Success)
}

func TestRunRestoresAfterNavigatingClick(t *testing.T) {
	tab := newFakeTab("https://example.com/")
	tab.navigateTo[0] = "https://example.com/privacy"

	outcomes, err := newTestRunner().Run(context.Background(), tab, testCandidate(2), tab.originalURL)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, schemas.EffectNavigated, outcomes[0].Effect)
	assert.Equal(t, 1, tab.restored)
	assert.Equal(t, "https://example.com/", tab.currentURL)
}

func TestRunStopsWhenRestoreFails(t *testing.T) {
	tab := newFakeTab("https://example.com/")
	tab.navigateTo[0] = "https://other.example.net/"
	tab.restoreFails = true

	outcomes, err := newTestRunner().Run(context.Background(), tab, testCandidate(4), tab.originalURL)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
	assert.Equal(t, schemas.EffectNavigated, outcomes[0].Effect)
}

func TestRunStopsOnNewWindow(t *testing.T) {
	tab := newFakeTab("https://example.com/")
	tab.popupOn[0] = true

	outcomes, err := newTestRunner().Run(context.Background(), tab, testCandidate(3), tab.originalURL)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, schemas.EffectNewWindow, outcomes[0].Effect)
	assert.True(t, outcomes[0].Success)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tab := newFakeTab("https://example.com/")
	outcomes, err := newTestRunner().Run(ctx, tab, testCandidate(3), tab.originalURL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
}

func TestActionForAcceptWording(t *testing.T) {
	accept := schemas.Clickable{Text: "Accept all"}
	other := schemas.Clickable{Text: "Settings"}
	assert.Equal(t, "accept", actionFor(accept))
	assert.Equal(t, "click", actionFor(other))
}
