package results

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

// RunSummary is the offline aggregation over one run directory.
type RunSummary struct {
	Manifest       *schemas.RunManifest `json:"manifest,omitempty"`
	Records        int                  `json:"records"`
	Notices        int                  `json:"notices"`
	Banners        int                  `json:"banners"`
	Modals         int                  `json:"modals"`
	CMPDefined     int                  `json:"cmpDefined"`
	Languages      map[string]int       `json:"languages,omitempty"`
	NavFailures    int                  `json:"navFailures"`
	WithThirdParty int                  `json:"withThirdPartyCookies"`
	AvgCookies     float64              `json:"avgCookies"`
}

// Summarize re-reads every record in a run directory and aggregates it. It
// works on interrupted runs too; whatever records exist get counted.
func Summarize(dir string) (*RunSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read run directory: %w", err)
	}

	summary := &RunSummary{Languages: make(map[string]int)}
	totalCookies := 0

	if data, err := os.ReadFile(filepath.Join(dir, manifestName)); err == nil {
		var m schemas.RunManifest
		if err := json.Unmarshal(data, &m); err == nil {
			summary.Manifest = &m
		}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == manifestName || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read record %s: %w", name, err)
		}
		var rec schemas.ScanRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", name, err)
		}

		summary.Records++
		if rec.Navigation.Status == schemas.NavTimeout || rec.Navigation.Status == schemas.NavNetworkError {
			summary.NavFailures++
			continue
		}

		switch rec.Detection.Label {
		case schemas.LabelBanner:
			summary.Notices++
			summary.Banners++
		case schemas.LabelModal:
			summary.Notices++
			summary.Modals++
		case schemas.LabelUnknown:
			summary.Notices++
		}

		if rec.CMPDefined {
			summary.CMPDefined++
		}
		if rec.Language != "" {
			summary.Languages[rec.Language]++
		}
		if rec.Cookies.ThirdParty > 0 {
			summary.WithThirdParty++
		}
		totalCookies += rec.Cookies.Total
	}

	if loaded := summary.Records - summary.NavFailures; loaded > 0 {
		summary.AvgCookies = float64(totalCookies) / float64(loaded)
	}
	return summary, nil
}
