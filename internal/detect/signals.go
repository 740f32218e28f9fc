package detect

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

// Signal weights. Lexical evidence alone never clears the default accept
// threshold; it needs structural or ARIA corroboration.
const (
	lexicalBase   = 0.20
	lexicalPerHit = 0.125
	lexicalCap    = 0.45
	fingerprintW  = 0.35
	stickyW       = 0.20
	zIndexW       = 0.10
	edgeAnchoredW = 0.15
	roleDialogW   = 0.25
	roleBannerW   = 0.15
	zIndexFloor   = 1000
)

// scoreRegion computes every applicable signal for one region.
func scoreRegion(r schemas.Region, vw, vh int) []schemas.Signal {
	var signals []schemas.Signal

	if hits, sample := countKeywordHits(r.Text); hits > 0 {
		score := lexicalBase + float64(hits-1)*lexicalPerHit
		if score > lexicalCap {
			score = lexicalCap
		}
		signals = append(signals, schemas.Signal{
			Name:   "lexical",
			Score:  score,
			Detail: fmt.Sprintf("%d keyword hits, e.g. %q", hits, sample),
		})
	}

	if f := matchFingerprint(r.ID, r.Classes); f != "" {
		signals = append(signals, schemas.Signal{
			Name:   "fingerprint",
			Score:  fingerprintW,
			Detail: f,
		})
	}

	if r.Position == "fixed" || r.Position == "sticky" {
		signals = append(signals, schemas.Signal{
			Name:   "sticky",
			Score:  stickyW,
			Detail: r.Position,
		})
	}

	if r.ZIndex >= zIndexFloor {
		signals = append(signals, schemas.Signal{
			Name:   "zindex",
			Score:  zIndexW,
			Detail: fmt.Sprintf("z-index %d", r.ZIndex),
		})
	}

	if edgeAnchored(r.Box, vw, vh) {
		signals = append(signals, schemas.Signal{
			Name:  "edge_anchored",
			Score: edgeAnchoredW,
		})
	}

	switch r.Role {
	case "dialog", "alertdialog":
		signals = append(signals, schemas.Signal{Name: "role", Score: roleDialogW, Detail: r.Role})
	case "banner":
		signals = append(signals, schemas.Signal{Name: "role", Score: roleBannerW, Detail: r.Role})
	}

	return signals
}

// countKeywordHits counts distinct keywords present in text across all
// languages and returns one matched keyword as a sample.
func countKeywordHits(text string) (int, string) {
	s := strings.ToLower(text)
	if s == "" {
		return 0, ""
	}
	hits := 0
	sample := ""
	for _, kw := range AllKeywords() {
		if strings.Contains(s, kw) {
			hits++
			if sample == "" || len(kw) > len(sample) {
				sample = kw
			}
		}
	}
	return hits, sample
}

func sumSignals(signals []schemas.Signal) float64 {
	total := 0.0
	for _, s := range signals {
		total += s.Score
	}
	if total > 1 {
		return 1
	}
	return total
}

// HasAcceptWording reports whether a clickable's label reads like a consent
// grant. Used to order the interaction phase.
func HasAcceptWording(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return false
	}
	for _, w := range acceptWords {
		if s == w || strings.Contains(s, w) {
			return true
		}
	}
	return false
}
