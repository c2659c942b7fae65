package analyzer

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	// batchSize bounds how many texts are featurized at once.
	batchSize = 32
	// defaultMaxTokens is the token budget when the artifact omits one.
	defaultMaxTokens = 128

	classifierFile = "classifier.json"
)

// textArtifact is the on-disk format of a trained text classifier:
// a logistic model over hashed token buckets.
type textArtifact struct {
	ModelName string    `json:"model_name"`
	Version   string    `json:"version"`
	Dim       int       `json:"dim"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	MaxTokens int       `json:"max_tokens"`
}

// TextScorer produces one trust probability per review text. Weights
// are read-only after Load; a scorer may be shared across many calls
// within one worker process.
type TextScorer struct {
	path   string
	art    *textArtifact
	logger *zap.Logger
}

// NewTextScorer builds a scorer bound to the newest retrained
// snapshot, or the base artifact when none exists.
func NewTextScorer(basePath, retrainRoot string, logger *zap.Logger) *TextScorer {
	return &TextScorer{
		path:   LatestArtifactDir(basePath, retrainRoot, logger),
		logger: logger,
	}
}

// Path returns the artifact directory chosen at construction.
func (s *TextScorer) Path() string {
	return s.path
}

// Ready reports whether weights are loaded.
func (s *TextScorer) Ready() bool {
	return s.art != nil
}

// Load reads and validates the classifier weights.
func (s *TextScorer) Load() error {
	file := filepath.Join(s.path, classifierFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return &ModelLoadError{Path: file, Err: err}
	}

	var art textArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return &ModelLoadError{Path: file, Err: fmt.Errorf("decode: %w", err)}
	}
	if art.Dim <= 0 || len(art.Weights) != art.Dim {
		return &ModelLoadError{
			Path: file,
			Err:  fmt.Errorf("weight vector has %d entries, artifact declares dim %d", len(art.Weights), art.Dim),
		}
	}
	if art.MaxTokens <= 0 {
		art.MaxTokens = defaultMaxTokens
	}

	s.art = &art
	s.logger.Info("text model loaded",
		zap.String("path", s.path),
		zap.String("version", art.Version),
		zap.Int("dim", art.Dim))
	return nil
}

// Score returns one probability in [0,1] per input text, in input
// order. Inputs are processed in batches of 32 to bound memory. Texts
// longer than the token budget are truncated, never rejected.
func (s *TextScorer) Score(texts []string) ([]float64, error) {
	if s.art == nil {
		return nil, ErrNotReady
	}

	scores := make([]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, text := range texts[start:end] {
			scores = append(scores, s.scoreOne(text))
		}
	}
	return scores, nil
}

func (s *TextScorer) scoreOne(text string) float64 {
	tokens := tokenize(text, s.art.MaxTokens)
	if len(tokens) == 0 {
		return 0.5
	}

	var z float64
	for _, tok := range tokens {
		z += s.art.Weights[bucket(tok, s.art.Dim)]
	}
	// Normalize by token count so long reviews do not saturate.
	z = z/float64(len(tokens)) + s.art.Bias
	return sigmoid(z)
}

// tokenize lowercases, splits on whitespace, and truncates to the
// token budget.
func tokenize(text string, maxTokens int) []string {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens
}

func bucket(token string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(dim))
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
