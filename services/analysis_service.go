package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"review-radar/config"
	"review-radar/models"
	"review-radar/providers"
)

// Number of samples kept per rating partition.
const samplesPerBucket = 10

// User-facing messages. Model and execution failures surface the
// generic message; details stay in the logs.
const (
	msgModelError     = "AI 분석 오류"
	msgScoringTimeout = "AI 분석 시간 초과"
	msgNoProvider     = "지원하지 않는 상품 URL입니다"
)

// AnalysisService drives the end-to-end analysis flow: crawl → score →
// sample → summarize → persist. Each analysis row is owned exclusively
// by the background task created for it until it reaches a terminal
// state.
type AnalysisService struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *zap.Logger
	Providers  []providers.Provider
	Runner     *PipelineRunner
	Summarizer *Summarizer
}

// NewAnalysisService wires the orchestrator.
func NewAnalysisService(cfg *config.Config, db *gorm.DB, logger *zap.Logger,
	provs []providers.Provider, runner *PipelineRunner, summarizer *Summarizer) *AnalysisService {
	return &AnalysisService{
		Config:     cfg,
		DB:         db,
		Logger:     logger,
		Providers:  provs,
		Runner:     runner,
		Summarizer: summarizer,
	}
}

// Create inserts a new queued analysis for the URL.
func (s *AnalysisService) Create(sourceURL string) (*models.Analysis, error) {
	analysis := &models.Analysis{SourceURL: sourceURL, Status: models.StatusQueued}
	if err := s.DB.Create(analysis).Error; err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	return analysis, nil
}

// Get loads one analysis by id.
func (s *AnalysisService) Get(id uint) (*models.Analysis, error) {
	var analysis models.Analysis
	if err := s.DB.First(&analysis, id).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

// List returns analyses newest-first, optionally filtered by status.
func (s *AnalysisService) List(status string, limit, offset int) ([]models.Analysis, error) {
	query := s.DB.Model(&models.Analysis{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit <= 0 {
		limit = 10
	}
	var analyses []models.Analysis
	err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&analyses).Error
	return analyses, err
}

// Process runs one analysis to a terminal state. Every failure path
// marks the row failed before the error is returned, so pollers always
// see an inspectable state.
func (s *AnalysisService) Process(ctx context.Context, analysisID uint, sourceURL string) error {
	log := s.Logger.With(zap.Uint("analysis_id", analysisID))
	log.Info("analysis started", zap.String("url", sourceURL))

	if err := s.update(analysisID, map[string]any{"status": models.StatusProcessing}); err != nil {
		return err
	}

	// 1. Crawl.
	provider := s.providerFor(sourceURL)
	if provider == nil {
		s.fail(analysisID, msgNoProvider)
		return fmt.Errorf("no provider matches %s", sourceURL)
	}
	crawl, err := provider.Crawl(ctx, sourceURL, s.Config.CrawlMaxReviews)
	if err != nil {
		s.fail(analysisID, err.Error())
		return fmt.Errorf("crawl: %w", err)
	}
	if !crawl.Success {
		s.fail(analysisID, crawl.Message)
		return fmt.Errorf("crawl: %s", crawl.Message)
	}
	raw := crawl.Reviews
	log.Info("crawl finished", zap.Int("reviews", len(raw)), zap.Int("raw_count", crawl.RawCount))

	// 2. Score out of process.
	result, err := s.Runner.Run(ctx, raw, analysisID)
	if err != nil {
		var timeout *TimeoutError
		if errors.As(err, &timeout) {
			s.fail(analysisID, msgScoringTimeout)
		} else {
			// Internal detail stays in the log only.
			s.fail(analysisID, msgModelError)
		}
		log.Error("scoring failed", zap.Error(err))
		return fmt.Errorf("scoring: %w", err)
	}

	// 3. Sample by rating partition.
	topSamples, worstSamples := s.sample(result.ScoredReviews)

	// 4. Reasons for the displayed samples, summary over the raw set.
	combined := append(append([]models.ReviewSample{}, topSamples...), worstSamples...)
	reasons := s.Summarizer.ExplainBatch(ctx, combined)
	for i := range combined {
		combined[i].AnalysisReason = reasons[i]
	}
	topSamples = combined[:len(topSamples)]
	worstSamples = combined[len(topSamples):]

	summary := s.Summarizer.Summarize(ctx, raw)

	// 5. Persist. Average rating comes from the raw crawl set,
	// independent of scoring and sampling.
	topJSON, err := json.Marshal(topSamples)
	if err != nil {
		s.fail(analysisID, msgModelError)
		return fmt.Errorf("encode top samples: %w", err)
	}
	worstJSON, err := json.Marshal(worstSamples)
	if err != nil {
		s.fail(analysisID, msgModelError)
		return fmt.Errorf("encode worst samples: %w", err)
	}

	err = s.update(analysisID, map[string]any{
		"status":        models.StatusCompleted,
		"verdict":       result.Verdict,
		"confidence":    result.Confidence,
		"review_count":  len(raw),
		"avg_rating":    averageRating(raw),
		"top_reviews":   datatypes.JSON(topJSON),
		"worst_reviews": datatypes.JSON(worstJSON),
		"summary":       summary,
	})
	if err != nil {
		return err
	}

	log.Info("analysis completed",
		zap.String("verdict", result.Verdict),
		zap.Float64("confidence", result.Confidence),
		zap.Int("top_samples", len(topSamples)),
		zap.Int("worst_samples", len(worstSamples)))
	return nil
}

// sample partitions scored reviews by rating (>=4 vs <=3), shuffles
// each partition and keeps up to 10 per side. Short partitions are
// taken whole, never padded.
func (s *AnalysisService) sample(scored []models.ScoredReview) (top, worst []models.ReviewSample) {
	var high, low []models.ScoredReview
	for _, r := range scored {
		if r.Rating >= 4 {
			high = append(high, r)
		} else {
			low = append(low, r)
		}
	}
	rand.Shuffle(len(high), func(i, j int) { high[i], high[j] = high[j], high[i] })
	rand.Shuffle(len(low), func(i, j int) { low[i], low[j] = low[j], low[i] })

	return toSamples(high, samplesPerBucket), toSamples(low, samplesPerBucket)
}

func toSamples(scored []models.ScoredReview, max int) []models.ReviewSample {
	if len(scored) > max {
		scored = scored[:max]
	}
	samples := make([]models.ReviewSample, len(scored))
	for i, r := range scored {
		author := r.Author
		if author == "" {
			author = "***"
		}
		color := r.ColorClass
		if color == "" {
			color = models.ColorGray
		}
		samples[i] = models.ReviewSample{
			Content:          r.BodyText(),
			Rating:           r.Rating,
			Date:             r.Date,
			Author:           author,
			ReliabilityScore: r.TrustScore,
			AnalysisLabel:    models.DisplayLabel(r.Label),
			ColorClass:       color,
			AnalysisReason:   "AI 분석 결과를 기다리는 중입니다.",
		}
	}
	return samples
}

func averageRating(reviews []models.Review) float64 {
	var sum float64
	var count int
	for _, r := range reviews {
		if r.Rating > 0 {
			sum += float64(r.Rating)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Round(sum/float64(count)*10) / 10
}

func (s *AnalysisService) providerFor(sourceURL string) providers.Provider {
	for _, p := range s.Providers {
		if p.Matches(sourceURL) {
			return p
		}
	}
	return nil
}

// fail transitions the analysis to its terminal failed state. The row
// keeps the message verbatim for pollers.
func (s *AnalysisService) fail(analysisID uint, message string) {
	if err := s.update(analysisID, map[string]any{
		"status":        models.StatusFailed,
		"error_message": message,
	}); err != nil {
		s.Logger.Error("failed to mark analysis failed",
			zap.Uint("analysis_id", analysisID), zap.Error(err))
	}
}

func (s *AnalysisService) update(analysisID uint, fields map[string]any) error {
	if err := s.DB.Model(&models.Analysis{}).Where("id = ?", analysisID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update analysis %d: %w", analysisID, err)
	}
	return nil
}
