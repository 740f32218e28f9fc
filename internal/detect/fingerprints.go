package detect

import "strings"

// cmpFingerprints are id/class fragments of widely deployed consent
// management platforms. A match is strong evidence on its own.
var cmpFingerprints = []string{
	"onetrust",
	"ot-sdk",
	"cookiebot",
	"cybotcookiebot",
	"didomi",
	"cc-window",
	"cc-banner",
	"cookieconsent",
	"cookie-consent",
	"cookie-banner",
	"cookie-notice",
	"qc-cmp2",
	"sp_message",
	"sp-message",
	"truste",
	"trustarc",
	"cmp-container",
	"gdpr",
	"usercentrics",
	"klaro",
	"borlabs-cookie",
	"cmplz",
	"iubenda",
	"osano",
	"hs-eu-cookie",
	"fc-consent-root",
}

// FingerprintSelectors converts the fragments into CSS selectors for the
// in-page pre-selection pass.
func FingerprintSelectors() []string {
	out := make([]string, 0, 2*len(cmpFingerprints))
	for _, f := range cmpFingerprints {
		out = append(out, `[id*="`+f+`"]`, `[class*="`+f+`"]`)
	}
	return out
}

// matchFingerprint returns the first fingerprint fragment found in the
// element's id or classes, or "".
func matchFingerprint(id string, classes []string) string {
	lowerID := strings.ToLower(id)
	for _, f := range cmpFingerprints {
		if lowerID != "" && strings.Contains(lowerID, f) {
			return f
		}
		for _, c := range classes {
			if strings.Contains(strings.ToLower(c), f) {
				return f
			}
		}
	}
	return ""
}
