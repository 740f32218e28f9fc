package schemas

import (
	"context"
	"time"
)

// Cookie is the subset of browser cookie state the scanner records.
type Cookie struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
	Secure bool   `json:"secure,omitempty"`
}

// Tab is one browser page under the scanner's control. Implementations are
// not safe for concurrent use; each worker owns its tab exclusively.
type Tab interface {
	// Navigate drives the page to rawURL and waits until the load event has
	// fired and network activity has gone quiet, bounded by timeout.
	Navigate(ctx context.Context, rawURL string, timeout time.Duration) (NavigationResult, error)

	// Snapshot captures the settled page as a PageSnapshot.
	Snapshot(ctx context.Context) (*PageSnapshot, error)

	// Click dispatches a trusted click at the center of the clickable's box
	// and waits for the page to settle again.
	Click(ctx context.Context, target Clickable) error

	// NoticeVisible re-probes whether the region at path is still rendered
	// and visible.
	NoticeVisible(ctx context.Context, path []int) (bool, error)

	// CurrentURL returns the page's present location.
	CurrentURL(ctx context.Context) (string, error)

	// PopupSeen reports whether the page opened a new window since the last
	// call, clearing the flag.
	PopupSeen() bool

	// Cookies lists all cookies visible to the browser for this tab.
	Cookies(ctx context.Context) ([]Cookie, error)

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the tab and its pool slot.
	Close() error
}

// BrowserManager hands out tabs from a shared remote browser, bounding how
// many are open at once.
type BrowserManager interface {
	// OpenTab blocks until a pool slot is free, then attaches a new page.
	OpenTab(ctx context.Context) (Tab, error)

	// Shutdown closes every outstanding tab and detaches from the browser.
	Shutdown(ctx context.Context) error
}
