// Package detect classifies page snapshots. It is pure: the same snapshot
// and configuration always produce the same candidates, which keeps the
// scanner's output reproducible and the package trivially testable.
package detect

import (
	"sort"
	"strconv"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/config"
)

// Detect scores every region in the snapshot, merges overlapping candidates,
// and returns those above the acceptance threshold ordered by confidence. An
// empty result means no notice was found. Merging runs before the threshold
// so a weak fragment overlapping a real notice still contributes its
// geometry, signals, and clickables instead of being thrown away early.
func Detect(snap *schemas.PageSnapshot, cfg config.DetectorConfig) []schemas.NoticeCandidate {
	if snap == nil {
		return nil
	}

	var candidates []schemas.NoticeCandidate
	for _, region := range snap.Regions {
		if !region.Visible {
			continue
		}
		signals := scoreRegion(region, snap.ViewportWidth, snap.ViewportHeight)
		confidence := sumSignals(signals)
		if confidence == 0 {
			continue
		}
		candidates = append(candidates, schemas.NoticeCandidate{
			Region:     region,
			Bounds:     region.Box,
			Signals:    signals,
			Confidence: confidence,
		})
	}

	sortCandidates(candidates)
	candidates = mergeOverlapping(candidates, cfg.OverlapMerge)

	accepted := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= cfg.AcceptConfidence {
			accepted = append(accepted, c)
		}
	}
	candidates = accepted

	if len(candidates) > cfg.MaxCandidates {
		candidates = candidates[:cfg.MaxCandidates]
	}

	for i := range candidates {
		candidates[i].Label = labelFor(candidates[i], snap.ViewportWidth, snap.ViewportHeight, cfg.ModalCoverage)
	}
	return candidates
}

// Classify reduces the candidate list to the page-level summary stored on
// the scan record.
func Classify(candidates []schemas.NoticeCandidate) schemas.DetectionSummary {
	summary := schemas.DetectionSummary{Label: schemas.LabelNone}
	for _, c := range candidates {
		summary.Candidates = append(summary.Candidates, c.Summarize())
	}
	if len(candidates) > 0 {
		summary.Label = candidates[0].Label
		summary.Confidence = candidates[0].Confidence
	}
	return summary
}

// Language guesses the page language from its visible text. Returns "" when
// the text is too short or the guess is unreliable.
func Language(bodyText string) string {
	if len(bodyText) < 40 {
		return ""
	}
	info := whatlanggo.Detect(bodyText)
	if !info.IsReliable() {
		return ""
	}
	return whatlanggo.LangToString(info.Lang)
}

// sortCandidates orders by confidence descending, ties broken by DOM path so
// equal-confidence candidates keep document order.
func sortCandidates(cs []schemas.NoticeCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		return comparePaths(cs[i].Region.Path, cs[j].Region.Path) < 0
	})
}

// mergeOverlapping folds candidates whose boxes substantially overlap into
// the higher-confidence one, growing its bounds to the union and carrying
// over the absorbed entry's signals and clickables. Input must be sorted;
// the winner absorbs later overlapping entries.
func mergeOverlapping(cs []schemas.NoticeCandidate, threshold float64) []schemas.NoticeCandidate {
	var out []schemas.NoticeCandidate
	for _, c := range cs {
		merged := false
		for i := range out {
			if overlapRatio(out[i].Bounds, c.Bounds) >= threshold {
				out[i].Bounds = union(out[i].Bounds, c.Bounds)
				out[i].Signals = absorbSignals(out[i].Signals, c.Signals)
				out[i].Region.Clickables = absorbClickables(out[i].Region.Clickables, c.Region.Clickables)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, c)
		}
	}
	return out
}

// absorbSignals carries over signal kinds the winner did not have itself, so
// a merged candidate keeps the evidence trail of everything it swallowed.
func absorbSignals(winner, absorbed []schemas.Signal) []schemas.Signal {
	have := make(map[string]bool, len(winner))
	for _, s := range winner {
		have[s.Name] = true
	}
	for _, s := range absorbed {
		if !have[s.Name] {
			have[s.Name] = true
			winner = append(winner, s)
		}
	}
	return winner
}

// absorbClickables folds the absorbed region's controls into the winner,
// deduplicated by DOM path and kept in document order so the click phase
// sees every control inside the union bounds.
func absorbClickables(winner, absorbed []schemas.Clickable) []schemas.Clickable {
	if len(absorbed) == 0 {
		return winner
	}
	have := make(map[string]bool, len(winner))
	for _, cl := range winner {
		have[pathKey(cl.Path)] = true
	}
	for _, cl := range absorbed {
		key := pathKey(cl.Path)
		if !have[key] {
			have[key] = true
			winner = append(winner, cl)
		}
	}
	sort.SliceStable(winner, func(i, j int) bool {
		return comparePaths(winner[i].Path, winner[j].Path) < 0
	})
	return winner
}

func pathKey(path []int) string {
	var b strings.Builder
	for i, n := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func labelFor(c schemas.NoticeCandidate, vw, vh int, modalCoverage float64) schemas.NoticeLabel {
	if coverage(c.Bounds, vw, vh) >= modalCoverage {
		return schemas.LabelModal
	}
	if hasRole(c, "dialog") || hasRole(c, "alertdialog") {
		return schemas.LabelModal
	}
	if edgeAnchored(c.Bounds, vw, vh) {
		return schemas.LabelBanner
	}
	return schemas.LabelUnknown
}

func hasRole(c schemas.NoticeCandidate, role string) bool {
	return c.Region.Role == role
}

func comparePaths(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

