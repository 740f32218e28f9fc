package results

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

// RegisteredDomain reduces a host name to its eTLD+1. Returns the input
// unchanged when the public suffix list cannot place it, which covers bare
// IPs and intranet names well enough for grouping.
func RegisteredDomain(host string) string {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	h = strings.TrimPrefix(h, "www.")
	etld, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return etld
}

// SummarizeCookies counts the jar and how many entries belong to a different
// registered domain than the scanned site.
func SummarizeCookies(cookies []schemas.Cookie, registered string) schemas.CookieSummary {
	summary := schemas.CookieSummary{Total: len(cookies)}
	for _, c := range cookies {
		cookieHost := strings.TrimPrefix(c.Domain, ".")
		if RegisteredDomain(cookieHost) != registered {
			summary.ThirdParty++
		}
	}
	return summary
}
