package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

// CandidateURLs builds the fallback ladder for a bare domain name. Secure
// origins come first, then the www variant, then plain http. A domain that
// already carries a scheme gets no ladder.
func CandidateURLs(domain string) []string {
	d := strings.TrimSpace(strings.TrimSuffix(domain, "."))
	if strings.Contains(d, "://") {
		return []string{d}
	}

	urls := []string{"https://" + d}
	if !strings.HasPrefix(d, "www.") {
		urls = append(urls, "https://www."+d)
	}
	urls = append(urls, "http://"+d)
	if !strings.HasPrefix(d, "www.") {
		urls = append(urls, "http://www."+d)
	}
	return urls
}

// NavigateLadder walks the candidate URLs until one loads. Timeouts and
// network errors advance the ladder; the first loaded (or redirected) result
// wins. When every rung fails, the last attempt's result comes back inside a
// NavigationError.
func NavigateLadder(ctx context.Context, t schemas.Tab, domain string, timeout time.Duration) (schemas.NavigationResult, error) {
	var last schemas.NavigationResult
	for _, candidate := range CandidateURLs(domain) {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		res, err := t.Navigate(ctx, candidate, timeout)
		if err != nil {
			// Hard failures (dead session) propagate immediately.
			return res, err
		}
		last = res
		if !res.Failed() {
			return res, nil
		}
	}

	return last, &schemas.NavigationError{
		Domain: domain,
		Result: last,
		Err:    fmt.Errorf("all candidate urls failed, last: %s", last.Note),
	}
}
