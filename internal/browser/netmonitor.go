package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// netMonitor follows CDP network events for one tab. It answers two
// questions: is the network quiet, and how did the main document request
// end. State is reset before every navigation and every click settle.
type netMonitor struct {
	mu       sync.RWMutex
	inflight map[network.RequestID]bool

	// docRequestID is the first document request of the current navigation.
	// Redirect legs reuse the same ID, so the last seen response wins.
	docRequestID network.RequestID
	docStatus    int
	docFailure   string
	docURL       string
}

func newNetMonitor() *netMonitor {
	return &netMonitor{inflight: make(map[network.RequestID]bool)}
}

// reset clears per-navigation state. Inflight tracking carries over so a
// click settle still sees requests started before the reset.
func (nm *netMonitor) reset() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.docRequestID = ""
	nm.docStatus = 0
	nm.docFailure = ""
	nm.docURL = ""
}

func (nm *netMonitor) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.inflight[e.RequestID] = true

	if e.Type != network.ResourceTypeDocument {
		return
	}
	if nm.docRequestID == "" {
		nm.docRequestID = e.RequestID
	}
	if e.RequestID == nm.docRequestID {
		nm.docURL = e.Request.URL
	}
}

func (nm *netMonitor) handleResponseReceived(e *network.EventResponseReceived) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if e.RequestID == nm.docRequestID && e.Response != nil {
		nm.docStatus = int(e.Response.Status)
		nm.docURL = e.Response.URL
	}
}

func (nm *netMonitor) handleLoadingFinished(e *network.EventLoadingFinished) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.inflight, e.RequestID)
}

func (nm *netMonitor) handleLoadingFailed(e *network.EventLoadingFailed) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	delete(nm.inflight, e.RequestID)

	if e.RequestID == nm.docRequestID && nm.docFailure == "" {
		nm.docFailure = e.ErrorText
	}
}

// document returns the main request's outcome for the current navigation.
func (nm *netMonitor) document() (status int, failure, finalURL string) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.docStatus, nm.docFailure, nm.docURL
}

// waitIdle polls until no request has been in flight for quiet, or ctx ends.
func (nm *netMonitor) waitIdle(ctx context.Context, quiet time.Duration) error {
	interval := quiet / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			nm.mu.RLock()
			busy := len(nm.inflight)
			nm.mu.RUnlock()

			if busy > 0 {
				lastActivity = time.Now()
			} else if time.Since(lastActivity) >= quiet {
				return nil
			}
		}
	}
}
