// Package schemas holds the data model shared across the scanner: the
// snapshot format produced by the browser layer, the candidate format
// produced by the detector, and the records persisted per domain.
package schemas

import (
	"time"
)

// Domain is a single scan target together with its 1-based position in the
// input list. The rank is carried through to the output file names so a run
// directory sorts in input order.
type Domain struct {
	Rank int    `json:"rank"`
	Name string `json:"name"`
}

// Rect is a bounding box in CSS pixels relative to the viewport.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the box area, never negative.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Clickable is an actionable element found inside a candidate region.
type Clickable struct {
	// Path is the DOM-order index path from the document root, used both as
	// a stable ordering key and to re-resolve the element in the live page.
	Path []int  `json:"path"`
	Tag  string `json:"tag"`
	Kind string `json:"kind"` // "link" or "button"
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
	Role string `json:"role,omitempty"`
	Box  Rect   `json:"box"`
}

// Region is one DOM subtree the snapshot pre-selected as a possible notice.
type Region struct {
	Path       []int       `json:"path"`
	Tag        string      `json:"tag"`
	ID         string      `json:"id,omitempty"`
	Classes    []string    `json:"classes,omitempty"`
	Role       string      `json:"role,omitempty"`
	Text       string      `json:"text"`
	Box        Rect        `json:"box"`
	Position   string      `json:"position"` // computed CSS position
	ZIndex     int         `json:"zIndex"`
	Visible    bool        `json:"visible"`
	Clickables []Clickable `json:"clickables,omitempty"`
}

// PageSnapshot is the read-only DOM summary captured once navigation has
// settled. It is the only input the detector sees; it is discarded after
// detection.
type PageSnapshot struct {
	URL            string   `json:"url"`
	ViewportWidth  int      `json:"viewportWidth"`
	ViewportHeight int      `json:"viewportHeight"`
	BodyText       string   `json:"bodyText"`
	CMPDefined     bool     `json:"cmpDefined"`
	Regions        []Region `json:"regions"`
}

// NoticeLabel classifies a detected region.
type NoticeLabel string

const (
	LabelNone    NoticeLabel = "none"
	LabelBanner  NoticeLabel = "banner"
	LabelModal   NoticeLabel = "modal"
	LabelUnknown NoticeLabel = "unknown"
)

// Signal is one scored detection signal with a short note on what matched.
type Signal struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// NoticeCandidate is a scored region. At most a small bounded set exists per
// page and only the derived summary is persisted.
type NoticeCandidate struct {
	Region     Region      `json:"region"`
	Bounds     Rect        `json:"bounds"`
	Signals    []Signal    `json:"signals"`
	Label      NoticeLabel `json:"label"`
	Confidence float64     `json:"confidence"`
}

// NavStatus is the terminal state of one navigation attempt.
type NavStatus string

const (
	NavLoaded       NavStatus = "loaded"
	NavTimeout      NavStatus = "timeout"
	NavNetworkError NavStatus = "network_error"
	NavRedirected   NavStatus = "redirected"
)

// NavigationResult describes how a page load ended.
type NavigationResult struct {
	Status       NavStatus `json:"status"`
	AttemptedURL string    `json:"attemptedUrl"`
	FinalURL     string    `json:"finalUrl,omitempty"`
	StatusCode   int       `json:"statusCode,omitempty"`
	ElapsedMs    int64     `json:"elapsedMs"`
	Note         string    `json:"note,omitempty"`
}

// Failed reports whether the attempt should advance the fallback ladder.
func (n NavigationResult) Failed() bool {
	return n.Status == NavTimeout || n.Status == NavNetworkError
}

// InteractionEffect is the page state change observed after a click.
type InteractionEffect string

const (
	EffectNoticeRemoved InteractionEffect = "notice_removed"
	EffectNavigated     InteractionEffect = "navigated"
	EffectNewWindow     InteractionEffect = "new_window"
	EffectNoChange      InteractionEffect = "no_change"
)

// InteractionOutcome records one attempted click inside a detected notice.
type InteractionOutcome struct {
	Clickable     Clickable         `json:"clickable"`
	Action        string            `json:"action"`
	Effect        InteractionEffect `json:"effect,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	CookiesBefore int               `json:"cookiesBefore"`
	CookiesAfter  int               `json:"cookiesAfter"`
}

// CandidateSummary is the persisted projection of a NoticeCandidate.
type CandidateSummary struct {
	Label          NoticeLabel `json:"label"`
	Confidence     float64     `json:"confidence"`
	Bounds         Rect        `json:"bounds"`
	Text           string      `json:"text"`
	Signals        []Signal    `json:"signals"`
	ClickableCount int         `json:"clickableCount"`
}

// Summarize projects a candidate into its persisted form.
func (c NoticeCandidate) Summarize() CandidateSummary {
	return CandidateSummary{
		Label:          c.Label,
		Confidence:     c.Confidence,
		Bounds:         c.Bounds,
		Text:           c.Region.Text,
		Signals:        c.Signals,
		ClickableCount: len(c.Region.Clickables),
	}
}

// DetectionSummary is the page-level classification stored in a ScanRecord.
type DetectionSummary struct {
	Label      NoticeLabel        `json:"label"`
	Confidence float64            `json:"confidence"`
	Candidates []CandidateSummary `json:"candidates,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// CookieSummary counts cookies present after the scan, split by whether the
// cookie domain belongs to the scanned registered domain.
type CookieSummary struct {
	Total      int `json:"total"`
	ThirdParty int `json:"thirdParty"`
}

// ScanRecord is the persisted unit: exactly one per input domain per run.
type ScanRecord struct {
	Domain           string               `json:"domain"`
	Rank             int                  `json:"rank"`
	RegisteredDomain string               `json:"registeredDomain,omitempty"`
	Timestamp        time.Time            `json:"timestamp"`
	DurationMs       int64                `json:"durationMs"`
	Navigation       NavigationResult     `json:"navigation"`
	Language         string               `json:"language,omitempty"`
	CMPDefined       bool                 `json:"cmpDefined"`
	Detection        DetectionSummary     `json:"detection"`
	Interactions     []InteractionOutcome `json:"interactions,omitempty"`
	Cookies          CookieSummary        `json:"cookies"`
	Screenshot       string               `json:"screenshot,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// RunStatus marks how a run ended.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)

// StatusCounts aggregates per-domain outcomes for the manifest. Total always
// equals the number of records written.
type StatusCounts struct {
	Total         int `json:"total"`
	Detected      int `json:"detected"`
	NoNotice      int `json:"noNotice"`
	Timeouts      int `json:"timeouts"`
	NetworkErrors int `json:"networkErrors"`
	Errors        int `json:"errors"`
}

// RunManifest is the run-level metadata, created at orchestration start and
// finalized at the end.
type RunManifest struct {
	RunID          string       `json:"runId"`
	Dataset        string       `json:"dataset"`
	ResultsDir     string       `json:"resultsDir"`
	ClickMode      bool         `json:"clickMode"`
	StartedAt      time.Time    `json:"startedAt"`
	FinishedAt     time.Time    `json:"finishedAt"`
	Status         RunStatus    `json:"status"`
	Counts         StatusCounts `json:"counts"`
	AcceptConf     float64      `json:"acceptConfidence"`
	OverlapMerge   float64      `json:"overlapMerge"`
	ClickCap       int          `json:"clickCap"`
	FailureReason  string       `json:"failureReason,omitempty"`
	DomainListSize int          `json:"domainListSize"`
}
