package models

import "strings"

// Review is a raw crawled review as it crosses the worker boundary.
// Crawl sources disagree on whether the body lives in "text" or
// "content", so both are carried and BodyText picks the winner.
type Review struct {
	ID      string `json:"id,omitempty"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
	Rating  int    `json:"rating"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
}

// BodyText returns the first non-empty of text/content, trimmed.
func (r Review) BodyText() string {
	if t := strings.TrimSpace(r.Text); t != "" {
		return t
	}
	return strings.TrimSpace(r.Content)
}

// Trust labels assigned per review from the 0-100 trust score.
const (
	LabelHigh   = "high"
	LabelMedium = "medium"
	LabelLow    = "low"
)

// Color classes rendered by the frontend for each label.
const (
	ColorGreen  = "status-green"
	ColorOrange = "status-orange"
	ColorRed    = "status-red"
	ColorGray   = "status-gray"
)

// Aggregate verdicts over a review set.
const (
	VerdictSafe       = "safe"
	VerdictSuspicious = "suspicious"
	VerdictMalicious  = "malicious"
	VerdictError      = "error"
)

// DisplayLabel maps an internal trust label to the Korean label shown
// to users. Unknown labels render as the pending placeholder.
func DisplayLabel(label string) string {
	switch label {
	case LabelHigh:
		return "매우 도움됨"
	case LabelMedium:
		return "부분적으로 도움됨"
	case LabelLow:
		return "도움 안됨"
	default:
		return "분석 대기"
	}
}

// ScoredReview is a review enriched by one pipeline run. Immutable
// after creation.
type ScoredReview struct {
	Review
	TrustScore float64 `json:"trust_score"` // 0..100
	Label      string  `json:"label"`
	ColorClass string  `json:"color_class"`
}

// PipelineStats carries the aggregate numbers behind a verdict.
type PipelineStats struct {
	AvgScore   float64 `json:"avg_score"` // mean trust probability, 0..1
	TotalCount int     `json:"total_count"`
}

// PipelineResult is the single object a scoring worker writes for one
// invocation. It is consumed once by the orchestrator and discarded;
// only derived fields are persisted.
type PipelineResult struct {
	Verdict       string         `json:"verdict"`
	Confidence    float64        `json:"confidence"` // 0..100, 2 decimals
	ScoredReviews []ScoredReview `json:"scored_reviews"`
	Stats         PipelineStats  `json:"stats"`
}

// WorkerRequest is the JSON object the server writes to the worker's
// standard input.
type WorkerRequest struct {
	Reviews    []Review `json:"reviews"`
	AnalysisID uint     `json:"analysis_id,omitempty"`
}

// WorkerResponse is the single JSON object the worker writes to its
// standard output. Diagnostics go to stderr, never here.
type WorkerResponse struct {
	Success bool            `json:"success"`
	Result  *PipelineResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CrawlResult is the fixed contract of every review crawler.
type CrawlResult struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Reviews  []Review `json:"reviews"`
	RawCount int      `json:"raw_count"`
}

// ReviewSample is the persisted form of a sampled review inside the
// top_samples/worst_samples JSON columns. Key names are part of the
// stored-data compatibility contract.
type ReviewSample struct {
	Content          string  `json:"content"`
	Rating           int     `json:"rating"`
	Date             string  `json:"date"`
	Author           string  `json:"author"`
	ReliabilityScore float64 `json:"reliability_score"`
	AnalysisLabel    string  `json:"analysis_label"`
	ColorClass       string  `json:"color_class"`
	AnalysisReason   string  `json:"analysis_reason"`
}
