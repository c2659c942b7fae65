package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"review-radar/models"
)

// stubTextModel returns a fixed score per input index.
type stubTextModel struct {
	scores []float64
}

func (s *stubTextModel) Score(texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	for i := range texts {
		out[i] = s.scores[i%len(s.scores)]
	}
	return out, nil
}

// stubRefiner records the feature rows it receives and echoes fixed
// probabilities.
type stubRefiner struct {
	width    int
	got      [][]float64
	response []float64
}

func (s *stubRefiner) ExpectedInputWidth() int { return s.width }

func (s *stubRefiner) PredictProba(features [][]float64) ([]float64, error) {
	s.got = features
	out := make([]float64, len(features))
	for i := range features {
		out[i] = s.response[i%len(s.response)]
	}
	return out, nil
}

func newPipeline(text TextModel, refiner TabularModel) *ScoringPipeline {
	return NewScoringPipeline(text, refiner, DefaultPipelineConfig(), zap.NewNop())
}

func reviewsWithText(texts ...string) []models.Review {
	out := make([]models.Review, len(texts))
	for i, t := range texts {
		out[i] = models.Review{Text: t, Rating: 3}
	}
	return out
}

func TestLabelThresholdBoundaries(t *testing.T) {
	// Boundary scores land in the higher bucket.
	text := &stubTextModel{scores: []float64{0.76, 0.7599, 0.36, 0.3599}}
	p := newPipeline(text, nil)

	result, err := p.Run(reviewsWithText("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Len(t, result.ScoredReviews, 4)

	assert.Equal(t, models.LabelHigh, result.ScoredReviews[0].Label)
	assert.Equal(t, models.ColorGreen, result.ScoredReviews[0].ColorClass)
	assert.Equal(t, 76.0, result.ScoredReviews[0].TrustScore)

	assert.Equal(t, models.LabelMedium, result.ScoredReviews[1].Label)
	assert.Equal(t, models.ColorOrange, result.ScoredReviews[1].ColorClass)

	assert.Equal(t, models.LabelMedium, result.ScoredReviews[2].Label)
	assert.Equal(t, 36.0, result.ScoredReviews[2].TrustScore)

	assert.Equal(t, models.LabelLow, result.ScoredReviews[3].Label)
	assert.Equal(t, models.ColorRed, result.ScoredReviews[3].ColorClass)
}

func TestVerdictBands(t *testing.T) {
	cases := []struct {
		name       string
		avg        float64
		verdict    string
		confidence float64
	}{
		{"safe above 0.7", 0.71, models.VerdictSafe, 71.0},
		{"suspicious midpoint", 0.5, models.VerdictSuspicious, 75.0},
		{"suspicious lower bound", 0.3, models.VerdictSuspicious, 50.0},
		{"malicious", 0.1, models.VerdictMalicious, 96.67},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(&stubTextModel{scores: []float64{tc.avg}}, nil)
			result, err := p.Run(reviewsWithText("review body"))
			require.NoError(t, err)
			assert.Equal(t, tc.verdict, result.Verdict)
			assert.Equal(t, tc.confidence, result.Confidence)
		})
	}
}

func TestPreprocessDropsEmptyReviews(t *testing.T) {
	p := newPipeline(&stubTextModel{scores: []float64{0.8}}, nil)

	reviews := []models.Review{
		{Text: "good product", Rating: 5},
		{Text: "   ", Rating: 1},
		{Content: "fallback body", Rating: 4},
		{},
	}
	result, err := p.Run(reviews)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.TotalCount)
	assert.Equal(t, "good product", result.ScoredReviews[0].Text)
	assert.Equal(t, "fallback body", result.ScoredReviews[1].Text)
}

func TestRunNoScorableInput(t *testing.T) {
	p := newPipeline(&stubTextModel{scores: []float64{0.5}}, nil)

	_, err := p.Run([]models.Review{{Text: "  "}, {}})
	assert.ErrorIs(t, err, ErrNoScorableInput)

	_, err = p.Run(nil)
	assert.ErrorIs(t, err, ErrNoScorableInput)
}

func TestRefinerReceivesPaddedFeatures(t *testing.T) {
	refiner := &stubRefiner{width: 5, response: []float64{0.9}}
	p := newPipeline(&stubTextModel{scores: []float64{0.42}}, refiner)

	reviews := []models.Review{{Text: "great", Rating: 4}}
	result, err := p.Run(reviews)
	require.NoError(t, err)

	require.Len(t, refiner.got, 1)
	assert.Equal(t, []float64{0.42, 4, 0, 0, 0}, refiner.got[0])

	// Refiner output wins over the text score.
	assert.Equal(t, 90.0, result.ScoredReviews[0].TrustScore)
}

func TestRunStats(t *testing.T) {
	text := &stubTextModel{scores: []float64{0.2, 0.4, 0.6}}
	p := newPipeline(text, nil)

	result, err := p.Run(reviewsWithText("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.TotalCount)
	assert.InDelta(t, 0.4, result.Stats.AvgScore, 1e-9)
}
