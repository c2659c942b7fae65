package analyzer

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"review-radar/models"
)

// TextModel is stage 1 of the scoring pipeline.
type TextModel interface {
	Score(texts []string) ([]float64, error)
}

// TabularModel is the optional stage 2.
type TabularModel interface {
	ExpectedInputWidth() int
	PredictProba(features [][]float64) ([]float64, error)
}

// PipelineConfig carries the labeling thresholds on the 0-100 score.
// Thresholds are inclusive-lower: a score exactly on a boundary lands
// in the higher bucket.
type PipelineConfig struct {
	HighThreshold float64
	LowThreshold  float64
}

// DefaultPipelineConfig returns the canonical 76/36 thresholds.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{HighThreshold: 76, LowThreshold: 36}
}

// ScoringPipeline turns raw reviews into a PipelineResult: preprocess,
// two-stage scoring, per-review labeling, verdict aggregation.
type ScoringPipeline struct {
	text    TextModel
	refiner TabularModel // nil means single-stage mode
	cfg     PipelineConfig
	logger  *zap.Logger
}

// NewScoringPipeline wires the pipeline. refiner may be nil.
func NewScoringPipeline(text TextModel, refiner TabularModel, cfg PipelineConfig, logger *zap.Logger) *ScoringPipeline {
	return &ScoringPipeline{text: text, refiner: refiner, cfg: cfg, logger: logger}
}

// Run scores one review batch. Any stage failure aborts the whole run;
// partial results are never returned.
func (p *ScoringPipeline) Run(reviews []models.Review) (*models.PipelineResult, error) {
	survivors := preprocess(reviews)
	if len(survivors) == 0 {
		return nil, ErrNoScorableInput
	}
	p.logger.Info("scoring started",
		zap.Int("input", len(reviews)), zap.Int("scorable", len(survivors)))

	texts := make([]string, len(survivors))
	for i, r := range survivors {
		texts[i] = r.Text
	}

	textScores, err := p.text.Score(texts)
	if err != nil {
		return nil, fmt.Errorf("text scoring: %w", err)
	}

	finalScores := textScores
	if p.refiner != nil {
		finalScores, err = p.refine(survivors, textScores)
		if err != nil {
			return nil, fmt.Errorf("tabular refinement: %w", err)
		}
	}

	scored := make([]models.ScoredReview, len(survivors))
	var sum float64
	for i, r := range survivors {
		score := finalScores[i] * 100
		label, color := p.labelFor(score)
		scored[i] = models.ScoredReview{
			Review:     r,
			TrustScore: round(score, 1),
			Label:      label,
			ColorClass: color,
		}
		sum += finalScores[i]
	}

	avg := sum / float64(len(finalScores))
	verdict, confidence := verdictFor(avg)

	p.logger.Info("scoring finished",
		zap.String("verdict", verdict),
		zap.Float64("confidence", confidence),
		zap.Int("reviews", len(scored)))

	return &models.PipelineResult{
		Verdict:       verdict,
		Confidence:    confidence,
		ScoredReviews: scored,
		Stats: models.PipelineStats{
			AvgScore:   round(avg, 4),
			TotalCount: len(scored),
		},
	}, nil
}

// preprocess unifies the text field and drops reviews with no body.
func preprocess(reviews []models.Review) []models.Review {
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		body := r.BodyText()
		if body == "" {
			continue
		}
		r.Text = body
		out = append(out, r)
	}
	return out
}

// refine builds [text_score, rating, 0...] vectors zero-padded to the
// refiner's trained width and takes the trustworthy-class probability.
func (p *ScoringPipeline) refine(reviews []models.Review, textScores []float64) ([]float64, error) {
	width := p.refiner.ExpectedInputWidth()
	features := make([][]float64, len(reviews))
	for i, r := range reviews {
		row := make([]float64, width)
		row[0] = textScores[i]
		if width > 1 {
			row[1] = float64(r.Rating)
		}
		features[i] = row
	}
	return p.refiner.PredictProba(features)
}

func (p *ScoringPipeline) labelFor(score float64) (label, color string) {
	switch {
	case score >= p.cfg.HighThreshold:
		return models.LabelHigh, models.ColorGreen
	case score >= p.cfg.LowThreshold:
		return models.LabelMedium, models.ColorOrange
	default:
		return models.LabelLow, models.ColorRed
	}
}

// verdictFor remaps the mean trust probability into a verdict and a
// confidence that always sits in the band of its verdict (suspicious
// never reports below 50, malicious never below 90).
func verdictFor(avg float64) (string, float64) {
	var verdict string
	var confidence float64
	switch {
	case avg > 0.7:
		verdict = models.VerdictSafe
		confidence = avg * 100
	case avg >= 0.3:
		verdict = models.VerdictSuspicious
		confidence = 50 + (avg-0.3)*125
	default:
		verdict = models.VerdictMalicious
		confidence = 90 + (1-avg/0.3)*10
	}
	confidence = math.Max(0, math.Min(100, confidence))
	return verdict, round(confidence, 2)
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
