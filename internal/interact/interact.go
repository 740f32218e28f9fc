// Package interact drives the optional click phase: probing each actionable
// element inside a detected notice and recording what the page did.
package interact

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/config"
	"github.com/xkilldash9x/noticescan/internal/detect"
)

// Runner executes the click phase against one tab. Navigation timeout is
// needed to restore the page after a click navigates away.
type Runner struct {
	logger     *zap.Logger
	cfg        config.InteractConfig
	navTimeout time.Duration
}

func NewRunner(logger *zap.Logger, cfg config.InteractConfig, navTimeout time.Duration) *Runner {
	return &Runner{
		logger:     logger.Named("interact"),
		cfg:        cfg,
		navTimeout: navTimeout,
	}
}

// Run clicks the candidate's actionable elements in document order, capped
// by the configured limit. A failed click is recorded and the next element
// is still attempted; a click that navigates away re-loads originalURL, and
// if that re-load fails the phase stops with the outcomes gathered so far.
func (r *Runner) Run(ctx context.Context, tab schemas.Tab, candidate schemas.NoticeCandidate, originalURL string) ([]schemas.InteractionOutcome, error) {
	clickables := candidate.Region.Clickables
	if len(clickables) > r.cfg.ClickCap {
		r.logger.Debug("Clickable count exceeds cap, truncating.",
			zap.Int("found", len(clickables)), zap.Int("cap", r.cfg.ClickCap))
		clickables = clickables[:r.cfg.ClickCap]
	}

	var outcomes []schemas.InteractionOutcome
	for _, target := range clickables {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, stop := r.clickOne(ctx, tab, candidate, target, originalURL)
		outcomes = append(outcomes, outcome)
		if stop {
			break
		}
	}
	return outcomes, nil
}

func (r *Runner) clickOne(ctx context.Context, tab schemas.Tab, candidate schemas.NoticeCandidate, target schemas.Clickable, originalURL string) (outcome schemas.InteractionOutcome, stop bool) {
	outcome = schemas.InteractionOutcome{
		Clickable: target,
		Action:    actionFor(target),
	}

	before, err := tab.Cookies(ctx)
	if err == nil {
		outcome.CookiesBefore = len(before)
	}

	if err := tab.Click(ctx, target); err != nil {
		ierr := &schemas.InteractionError{Target: target.Text, Err: err}
		outcome.Error = ierr.Error()
		r.logger.Debug("Click failed.", zap.String("target", target.Text), zap.Error(err))
		return outcome, false
	}

	if r.cfg.PostClickWait > 0 {
		select {
		case <-ctx.Done():
			return outcome, true
		case <-time.After(r.cfg.PostClickWait):
		}
	}

	outcome.Success = true
	outcome.Effect = schemas.EffectNoChange

	if tab.PopupSeen() {
		// A spawned window is outside this tab's control; leave the page
		// alone rather than clicking on with a popup in the way.
		outcome.Effect = schemas.EffectNewWindow
		if after, err := tab.Cookies(ctx); err == nil {
			outcome.CookiesAfter = len(after)
		}
		return outcome, true
	}

	if current, err := tab.CurrentURL(ctx); err == nil && leftPage(originalURL, current) {
		outcome.Effect = schemas.EffectNavigated
		// Put the original page back so the remaining elements are probed
		// against the same notice.
		if res, err := tab.Navigate(ctx, originalURL, r.navTimeout); err != nil || res.Failed() {
			r.logger.Debug("Could not restore page after navigating click.",
				zap.String("url", originalURL))
			stop = true
		}
	} else if outcome.Effect == schemas.EffectNoChange {
		visible, err := tab.NoticeVisible(ctx, candidate.Region.Path)
		if err == nil && !visible {
			outcome.Effect = schemas.EffectNoticeRemoved
		}
	}

	after, err := tab.Cookies(ctx)
	if err == nil {
		outcome.CookiesAfter = len(after)
	}
	return outcome, stop
}

func actionFor(target schemas.Clickable) string {
	if detect.HasAcceptWording(target.Text) {
		return "accept"
	}
	return "click"
}

// leftPage compares URLs ignoring fragment-only changes, which consent
// widgets use freely without actually leaving the page.
func leftPage(original, current string) bool {
	if current == "" || current == original {
		return false
	}
	o, err1 := url.Parse(original)
	c, err2 := url.Parse(current)
	if err1 != nil || err2 != nil {
		return original != current
	}
	o.Fragment = ""
	c.Fragment = ""
	return strings.TrimSuffix(o.String(), "/") != strings.TrimSuffix(c.String(), "/")
}
