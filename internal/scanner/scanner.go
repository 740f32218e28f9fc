// Package scanner orchestrates a run: it fans the domain list out to a
// bounded pool of tab workers, drives each domain through navigation,
// detection, and the optional click phase, and hands the outcome to the
// recorder. Exactly one record is written per attempted domain.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/browser"
	"github.com/xkilldash9x/noticescan/internal/config"
	"github.com/xkilldash9x/noticescan/internal/detect"
	"github.com/xkilldash9x/noticescan/internal/interact"
	"github.com/xkilldash9x/noticescan/internal/results"
)

// Recorder is the slice of the results layer the scanner needs. Narrow so
// tests can count writes without touching the filesystem.
type Recorder interface {
	WriteRecord(rec *schemas.ScanRecord) error
	WriteScreenshot(rank int, domain string, data []byte) (string, error)
	Finalize(status schemas.RunStatus, finishedAt time.Time, failureReason string) error
}

// Scanner runs one scan over a domain list.
type Scanner struct {
	logger   *zap.Logger
	cfg      *config.Config
	manager  schemas.BrowserManager
	recorder Recorder
	runner   *interact.Runner
	limiter  *rate.Limiter
	now      func() time.Time
}

func New(logger *zap.Logger, cfg *config.Config, manager schemas.BrowserManager, recorder Recorder) *Scanner {
	var limiter *rate.Limiter
	if cfg.Scan.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Scan.RateLimit), 1)
	}
	return &Scanner{
		logger:   logger.Named("scanner"),
		cfg:      cfg,
		manager:  manager,
		recorder: recorder,
		runner:   interact.NewRunner(logger, cfg.Interact, cfg.Browser.NavigationTimeout),
		limiter:  limiter,
		now:      time.Now,
	}
}

// Run processes every domain and finalizes the manifest. The returned status
// mirrors what was written there: completed, interrupted when ctx was
// cancelled from outside, or failed when the browser session died or a
// record could not be written.
func (s *Scanner) Run(ctx context.Context, domains []schemas.Domain) (schemas.RunStatus, error) {
	scanCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tasks := make(chan schemas.Domain)
	workers := s.cfg.Browser.TabPoolSize

	var (
		wg       sync.WaitGroup
		fatalMu  sync.Mutex
		fatalErr error
	)
	setFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel(err)
	}

	s.logger.Info("Scan starting.",
		zap.Int("domains", len(domains)),
		zap.Int("workers", workers),
		zap.Bool("click", s.cfg.Scan.Click))

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.runWorker(scanCtx, id, tasks, setFatal)
		}(i)
	}

dispatch:
	for _, d := range domains {
		select {
		case tasks <- d:
		case <-scanCtx.Done():
			break dispatch
		}
	}
	close(tasks)
	wg.Wait()

	status := schemas.RunCompleted
	reason := ""
	fatalMu.Lock()
	err := fatalErr
	fatalMu.Unlock()
	switch {
	case err != nil:
		status = schemas.RunFailed
		reason = err.Error()
	case ctx.Err() != nil:
		status = schemas.RunInterrupted
		reason = ctx.Err().Error()
	}

	if ferr := s.recorder.Finalize(status, s.now().UTC(), reason); ferr != nil {
		s.logger.Error("Failed to finalize manifest.", zap.Error(ferr))
		if err == nil {
			err = ferr
		}
	}

	s.logger.Info("Scan finished.", zap.String("status", string(status)))
	return status, err
}

// runWorker drains the task channel. Each domain gets its own tab so cookie
// state never leaks between sites.
func (s *Scanner) runWorker(ctx context.Context, id int, tasks <-chan schemas.Domain, setFatal func(error)) {
	logger := s.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case domain, ok := <-tasks:
			if !ok {
				return
			}
			if err := s.process(ctx, logger, domain); err != nil {
				var sessErr *schemas.SessionError
				if errors.As(err, &sessErr) {
					logger.Error("Browser session lost, aborting run.", zap.Error(err))
					setFatal(err)
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				// Anything else is a dropped record, which breaks the
				// one-record-per-domain guarantee. The run cannot claim
				// completion after that.
				logger.Error("Record could not be persisted, aborting run.",
					zap.String("domain", domain.Name), zap.Error(err))
				setFatal(err)
				return
			}
		}
	}
}

// process scans one domain end to end and writes its record. Per-domain
// failures are folded into the record; only session loss, cancellation, and
// a failed record write come back as errors.
func (s *Scanner) process(ctx context.Context, logger *zap.Logger, domain schemas.Domain) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := s.now()
	rec := &schemas.ScanRecord{
		Domain:           domain.Name,
		Rank:             domain.Rank,
		RegisteredDomain: results.RegisteredDomain(domain.Name),
		Timestamp:        start.UTC(),
		Detection:        schemas.DetectionSummary{Label: schemas.LabelNone},
	}

	tab, err := s.manager.OpenTab(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return err
	}
	defer tab.Close()

	nav, err := browser.NavigateLadder(ctx, tab, domain.Name, s.cfg.Browser.NavigationTimeout)
	rec.Navigation = nav
	if err != nil {
		var navErr *schemas.NavigationError
		if errors.As(err, &navErr) {
			logger.Info("Domain unreachable.",
				zap.String("domain", domain.Name),
				zap.String("status", string(nav.Status)))
			return s.finish(rec, start)
		}
		return err
	}

	s.inspect(ctx, logger, tab, rec)
	return s.finish(rec, start)
}

// inspect runs detection and the optional click phase on a loaded page. All
// failures inside end up on the record, never as returned errors.
func (s *Scanner) inspect(ctx context.Context, logger *zap.Logger, tab schemas.Tab, rec *schemas.ScanRecord) {
	snap, err := tab.Snapshot(ctx)
	if err != nil {
		detErr := &schemas.DetectionError{Domain: rec.Domain, Err: err}
		rec.Detection = schemas.DetectionSummary{Label: schemas.LabelNone, Error: detErr.Error()}
		return
	}

	rec.CMPDefined = snap.CMPDefined
	rec.Language = detect.Language(snap.BodyText)

	candidates := detect.Detect(snap, s.cfg.Detector)
	rec.Detection = detect.Classify(candidates)

	logger.Debug("Detection done.",
		zap.String("domain", rec.Domain),
		zap.String("label", string(rec.Detection.Label)),
		zap.Int("candidates", len(candidates)))

	if s.cfg.Scan.Screenshots && len(candidates) > 0 {
		if shot, err := tab.Screenshot(ctx); err == nil {
			if name, err := s.recorder.WriteScreenshot(rec.Rank, rec.Domain, shot); err == nil {
				rec.Screenshot = name
			}
		}
	}

	if s.cfg.Scan.Click && len(candidates) > 0 {
		outcomes, err := s.runner.Run(ctx, tab, candidates[0], snap.URL)
		rec.Interactions = outcomes
		if err != nil && !errors.Is(err, context.Canceled) {
			rec.Error = err.Error()
		}
	}

	if cookies, err := tab.Cookies(ctx); err == nil {
		rec.Cookies = results.SummarizeCookies(cookies, registeredFromURL(snap.URL, rec.RegisteredDomain))
	}
}

func (s *Scanner) finish(rec *schemas.ScanRecord, start time.Time) error {
	rec.DurationMs = s.now().Sub(start).Milliseconds()
	if err := s.recorder.WriteRecord(rec); err != nil {
		return fmt.Errorf("persist record for %s: %w", rec.Domain, err)
	}
	return nil
}

// registeredFromURL prefers the page's final host over the input domain so a
// cross-host redirect does not misclassify every cookie as third party.
func registeredFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fallback
	}
	return results.RegisteredDomain(u.Hostname())
}
