package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"review-radar/config"
	"review-radar/models"
)

// Summarizer talks to an external text-generation service for review
// summaries and per-review reasons. Every call has a deterministic
// template fallback: the collaborator being down never fails an
// analysis and never blocks beyond the client timeout.
type Summarizer struct {
	baseURL       string
	apiKey        string
	maxReviews    int
	highThreshold float64
	client        *http.Client
	logger        *zap.Logger
}

// NewSummarizer creates a summarizer client. An empty base URL keeps
// it in fallback-only mode.
func NewSummarizer(cfg *config.Config, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		baseURL:       strings.TrimSuffix(cfg.SummarizerBaseURL, "/"),
		apiKey:        cfg.SummarizerAPIKey,
		maxReviews:    cfg.SummarizerMaxReviews,
		highThreshold: cfg.LabelHighThreshold,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

// Summarize produces a short Korean summary of the review set.
func (s *Summarizer) Summarize(ctx context.Context, reviews []models.Review) string {
	if s.baseURL == "" {
		return s.basicSummary(reviews)
	}

	sample := reviews
	if len(sample) > s.maxReviews {
		sample = sample[:s.maxReviews]
	}

	var resp struct {
		Summary string `json:"summary"`
	}
	if err := s.post(ctx, "/summarize", map[string]any{"reviews": sample}, &resp); err != nil {
		s.logger.Warn("summarize call failed, using template", zap.Error(err))
		return s.basicSummary(reviews)
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return s.basicSummary(reviews)
	}
	return resp.Summary
}

// ExplainBatch produces one analysis reason per sample, in input
// order. Entries the service does not answer for fall back to the
// score template.
func (s *Summarizer) ExplainBatch(ctx context.Context, samples []models.ReviewSample) []string {
	reasons := make([]string, len(samples))
	for i, sample := range samples {
		reasons[i] = s.templateReason(sample.ReliabilityScore)
	}
	if s.baseURL == "" || len(samples) == 0 {
		return reasons
	}

	payload := make([]map[string]any, len(samples))
	for i, sample := range samples {
		payload[i] = map[string]any{
			"index":  i,
			"text":   sample.Content,
			"score":  sample.ReliabilityScore,
			"rating": sample.Rating,
		}
	}

	var resp struct {
		Reasons []struct {
			Index  int    `json:"index"`
			Reason string `json:"reason"`
		} `json:"reasons"`
	}
	if err := s.post(ctx, "/explain", map[string]any{"reviews": payload}, &resp); err != nil {
		s.logger.Warn("explain call failed, using templates", zap.Error(err))
		return reasons
	}

	for _, item := range resp.Reasons {
		if item.Index >= 0 && item.Index < len(reasons) && strings.TrimSpace(item.Reason) != "" {
			reasons[item.Index] = item.Reason
		}
	}
	return reasons
}

// templateReason is the deterministic local fallback sentence.
func (s *Summarizer) templateReason(score float64) string {
	if score >= s.highThreshold {
		return fmt.Sprintf("AI 분석 결과 %.1f%%의 높은 신뢰도를 보이는 리뷰입니다.", score)
	}
	return fmt.Sprintf("AI 분석 결과 %.1f%%의 신뢰도를 보이는 리뷰입니다.", score)
}

// basicSummary derives a summary sentence from rating counts alone.
func (s *Summarizer) basicSummary(reviews []models.Review) string {
	if len(reviews) == 0 {
		return "분석할 리뷰가 없습니다."
	}
	var positive, rated int
	var sum float64
	for _, r := range reviews {
		if r.Rating > 0 {
			rated++
			sum += float64(r.Rating)
			if r.Rating >= 4 {
				positive++
			}
		}
	}
	if rated == 0 {
		return fmt.Sprintf("리뷰 %d건을 분석했습니다.", len(reviews))
	}
	return fmt.Sprintf("리뷰 %d건을 분석했습니다. 평균 별점은 %.1f점이며, %d건이 긍정적인 평가입니다.",
		len(reviews), sum/float64(rated), positive)
}

func (s *Summarizer) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
