// Package browser attaches to an already running Chromium over its remote
// debugging endpoint and hands out pooled tabs for scanning. It never
// launches a browser process of its own.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/config"
)

// SnapshotHints parameterizes the in-page capture script. The detector owns
// the actual keyword and fingerprint lists; the browser layer only injects
// them.
type SnapshotHints struct {
	Keywords             []string
	FingerprintSelectors []string
	MaxRegions           int
}

// Manager implements schemas.BrowserManager on top of a remote debugging
// connection. Tab concurrency is bounded by a weighted semaphore.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig
	hints  SnapshotHints

	// allocCtx is the connection to the remote browser. All tab contexts
	// derive from it.
	allocCtx    context.Context
	allocCancel context.CancelFunc

	slots *semaphore.Weighted

	// wg tracks open tabs for a graceful shutdown.
	wg sync.WaitGroup
}

var _ schemas.BrowserManager = (*Manager)(nil)

// NewManager connects to the browser at cfg.DebuggerURL and verifies it
// responds before returning. An unreachable browser is a SessionError; there
// is nothing to scan without one.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig, hints SnapshotHints) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		hints:  hints,
		slots:  semaphore.NewWeighted(int64(cfg.TabPoolSize)),
	}

	m.logger.Info("Connecting to remote browser.", zap.String("debugger_url", cfg.DebuggerURL))
	m.allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.DebuggerURL)

	if err := m.verify(); err != nil {
		m.allocCancel()
		return nil, schemas.NewSessionError("connect", err)
	}

	m.logger.Info("Remote browser is responsive.")
	return m, nil
}

// verify opens a throwaway tab and loads about:blank to confirm the
// debugging endpoint actually talks CDP.
func (m *Manager) verify() error {
	testCtx, cancel := context.WithTimeout(m.allocCtx, 15*time.Second)
	defer cancel()
	testCtx, cancelTab := chromedp.NewContext(testCtx)
	defer cancelTab()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("browser at %s did not respond: %w", m.cfg.DebuggerURL, err)
	}
	return nil
}

// OpenTab blocks until a pool slot frees up, then attaches a fresh page.
func (m *Manager) OpenTab(ctx context.Context) (schemas.Tab, error) {
	if err := m.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire tab slot: %w", err)
	}

	t, err := newTab(m.allocCtx, m.logger, m.cfg, m.hints, func() {
		m.slots.Release(1)
		m.wg.Done()
	})
	if err != nil {
		m.slots.Release(1)
		return nil, schemas.NewSessionError("open tab", err)
	}

	m.wg.Add(1)
	return t, nil
}

// Shutdown waits for open tabs to close, bounded by ctx, then detaches from
// the browser. The remote browser process itself keeps running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutting down; waiting for open tabs.")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded with tabs still open.", zap.Error(ctx.Err()))
	}

	m.allocCancel()
	return nil
}

// combineContext derives a context cancelled when either parent is done.
// chromedp tab contexts outlive individual operations, so per-operation
// deadlines have to be joined with the tab's own lifetime.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(tabCtx)
	stop := context.AfterFunc(opCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
