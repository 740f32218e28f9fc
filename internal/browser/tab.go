package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/config"
)

// tab is the chromedp-backed implementation of schemas.Tab. One goroutine
// owns a tab at a time.
type tab struct {
	logger  *zap.Logger
	cfg     config.BrowserConfig
	hints   SnapshotHints
	monitor *netMonitor

	ctx    context.Context
	cancel context.CancelFunc

	popup atomic.Bool

	closeOnce sync.Once
	onClose   func()
}

func newTab(allocCtx context.Context, logger *zap.Logger, cfg config.BrowserConfig, hints SnapshotHints, onClose func()) (*tab, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	t := &tab{
		logger:  logger.Named("tab"),
		cfg:     cfg,
		hints:   hints,
		monitor: newNetMonitor(),
		ctx:     tabCtx,
		cancel:  cancel,
		onClose: onClose,
	}

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.monitor.handleRequestWillBeSent(e)
		case *network.EventResponseReceived:
			t.monitor.handleResponseReceived(e)
		case *network.EventLoadingFinished:
			t.monitor.handleLoadingFinished(e)
		case *network.EventLoadingFailed:
			t.monitor.handleLoadingFailed(e)
		case *page.EventWindowOpen:
			t.popup.Store(true)
		case *page.EventJavascriptDialogOpening:
			t.handleDialog(e)
		}
	})

	// Materialize the target and enable the event domains before any
	// navigation so the first document request is observed.
	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("attach tab: %w", err)
	}

	return t, nil
}

// handleDialog keeps pages from wedging on alert/confirm/prompt. Alerts are
// accepted, everything else dismissed, mirroring a disinterested visitor.
func (t *tab) handleDialog(e *page.EventJavascriptDialogOpening) {
	accept := e.Type == page.DialogTypeAlert
	go func() {
		err := chromedp.Run(t.ctx, page.HandleJavaScriptDialog(accept))
		if err != nil && t.ctx.Err() == nil {
			t.logger.Debug("Failed to dismiss page dialog.", zap.Error(err))
		}
	}()
}

// Navigate loads rawURL and waits for the load event plus a network quiet
// period, all bounded by timeout. The returned result always describes the
// attempt; the error is non-nil only for hard failures.
func (t *tab) Navigate(ctx context.Context, rawURL string, timeout time.Duration) (schemas.NavigationResult, error) {
	res := schemas.NavigationResult{AttemptedURL: rawURL}
	start := time.Now()

	t.monitor.reset()
	t.popup.Store(false)

	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	navCtx, cancelNav := context.WithTimeout(opCtx, timeout)
	defer cancelNav()

	err := chromedp.Run(navCtx, chromedp.Navigate(rawURL))
	res.ElapsedMs = time.Since(start).Milliseconds()

	status, failure, finalURL := t.monitor.document()
	res.StatusCode = status
	res.FinalURL = finalURL

	if err != nil {
		if t.ctx.Err() != nil {
			return res, schemas.NewSessionError("navigate", t.ctx.Err())
		}
		switch {
		case errors.Is(navCtx.Err(), context.DeadlineExceeded):
			res.Status = schemas.NavTimeout
			res.Note = "load event did not fire in time"
		case failure != "":
			res.Status = schemas.NavNetworkError
			res.Note = failure
		default:
			res.Status = schemas.NavNetworkError
			res.Note = err.Error()
		}
		return res, nil
	}

	// Load fired. Let late subresources drain before snapshotting, but never
	// past the overall navigation deadline.
	settleCtx, cancelSettle := context.WithTimeout(navCtx, t.cfg.SettleTimeout)
	if idleErr := t.monitor.waitIdle(settleCtx, t.cfg.QuietPeriod); idleErr != nil && t.ctx.Err() != nil {
		cancelSettle()
		return res, schemas.NewSessionError("settle", t.ctx.Err())
	}
	cancelSettle()

	res.ElapsedMs = time.Since(start).Milliseconds()
	if failure != "" && status == 0 {
		res.Status = schemas.NavNetworkError
		res.Note = failure
		return res, nil
	}
	if status >= 400 {
		res.Status = schemas.NavNetworkError
		res.Note = fmt.Sprintf("server answered %d", status)
		return res, nil
	}

	res.Status = schemas.NavLoaded
	if crossedHost(rawURL, finalURL) {
		res.Status = schemas.NavRedirected
	}
	return res, nil
}

// crossedHost reports whether the final URL landed on a different host than
// attempted, ignoring a www prefix.
func crossedHost(attempted, final string) bool {
	if final == "" {
		return false
	}
	a, err1 := url.Parse(attempted)
	f, err2 := url.Parse(final)
	if err1 != nil || err2 != nil {
		return false
	}
	trim := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return trim(a.Hostname()) != trim(f.Hostname())
}

// Snapshot runs the capture script and decodes its JSON result.
func (t *tab) Snapshot(ctx context.Context) (*schemas.PageSnapshot, error) {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()

	script, err := buildSnapshotScript(t.hints)
	if err != nil {
		return nil, err
	}

	var snap schemas.PageSnapshot
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &snap)); err != nil {
		if t.ctx.Err() != nil {
			return nil, schemas.NewSessionError("snapshot", t.ctx.Err())
		}
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	return &snap, nil
}

// Click dispatches a trusted mouse click at the center of the target's box,
// then waits for any triggered network activity to settle.
func (t *tab) Click(ctx context.Context, target schemas.Clickable) error {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()

	x := target.Box.X + target.Box.W/2
	y := target.Box.Y + target.Box.H/2

	if err := chromedp.Run(opCtx, chromedp.MouseClickXY(x, y)); err != nil {
		if t.ctx.Err() != nil {
			return schemas.NewSessionError("click", t.ctx.Err())
		}
		return fmt.Errorf("click at (%.0f, %.0f): %w", x, y, err)
	}

	settleCtx, cancelSettle := context.WithTimeout(opCtx, t.cfg.SettleTimeout)
	defer cancelSettle()
	if err := t.monitor.waitIdle(settleCtx, t.cfg.QuietPeriod); err != nil && t.ctx.Err() != nil {
		return schemas.NewSessionError("settle", t.ctx.Err())
	}
	return nil
}

// NoticeVisible re-resolves the element at path and checks it still renders.
func (t *tab) NoticeVisible(ctx context.Context, path []int) (bool, error) {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()

	script, err := buildVisibilityScript(path)
	if err != nil {
		return false, err
	}

	var visible bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &visible)); err != nil {
		if t.ctx.Err() != nil {
			return false, schemas.NewSessionError("probe", t.ctx.Err())
		}
		return false, fmt.Errorf("probe notice visibility: %w", err)
	}
	return visible, nil
}

func (t *tab) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()

	var loc string
	if err := chromedp.Run(opCtx, chromedp.Location(&loc)); err != nil {
		if t.ctx.Err() != nil {
			return "", schemas.NewSessionError("location", t.ctx.Err())
		}
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (t *tab) PopupSeen() bool {
	return t.popup.Swap(false)
}

// Cookies lists every cookie the browser holds, not just the current host's.
// The third-party analysis needs the full jar.
func (t *tab) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, schemas.NewSessionError("cookies", t.ctx.Err())
		}
		return nil, fmt.Errorf("list cookies: %w", err)
	}

	out := make([]schemas.Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, schemas.Cookie{
			Name:   c.Name,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}
	return out, nil
}

func (t *tab) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(opCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		if t.ctx.Err() != nil {
			return nil, schemas.NewSessionError("screenshot", t.ctx.Err())
		}
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close releases the tab's pool slot exactly once.
func (t *tab) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		if t.onClose != nil {
			t.onClose()
		}
	})
	return nil
}
