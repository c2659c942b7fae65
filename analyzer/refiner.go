package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const ensembleFile = "ensemble.json"

// Feature widths refiner artifacts have been trained with. The first
// two slots are always [text_score, rating]; remaining slots are
// reserved and zero-padded.
var supportedWidths = map[int]bool{2: true, 4: true, 5: true}

// treeNode is one node of a serialized decision tree. Leaves carry the
// positive-class ("trustworthy") probability directly.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

// walk descends from the root and returns the reached leaf value.
func (t tree) walk(features []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if features[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

type ensembleArtifact struct {
	ModelName string `json:"model_name"`
	Version   string `json:"version"`
	NFeatures int    `json:"n_features"`
	Trees     []tree `json:"trees"`
}

// TabularRefiner refines text-model probabilities with a tabular
// ensemble over [text_score, rating, ...] vectors. Read-only after
// load.
type TabularRefiner struct {
	art    *ensembleArtifact
	logger *zap.Logger
}

// LoadRefiner reads the ensemble artifact from dir. A missing file is
// not an error: it returns (nil, nil) and the pipeline runs
// single-stage. Corrupt files and unsupported feature widths fail.
func LoadRefiner(dir string, logger *zap.Logger) (*TabularRefiner, error) {
	file := filepath.Join(dir, ensembleFile)
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("no refiner artifact, running single-stage", zap.String("dir", dir))
			return nil, nil
		}
		return nil, &ModelLoadError{Path: file, Err: err}
	}

	var art ensembleArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, &ModelLoadError{Path: file, Err: fmt.Errorf("decode: %w", err)}
	}
	if !supportedWidths[art.NFeatures] {
		return nil, &UnsupportedFeatureShapeError{Width: art.NFeatures}
	}
	if len(art.Trees) == 0 {
		return nil, &ModelLoadError{Path: file, Err: fmt.Errorf("ensemble has no trees")}
	}
	for ti, t := range art.Trees {
		if err := validateTree(t, art.NFeatures); err != nil {
			return nil, &ModelLoadError{Path: file, Err: fmt.Errorf("tree %d: %w", ti, err)}
		}
	}

	logger.Info("refiner loaded",
		zap.String("version", art.Version),
		zap.Int("n_features", art.NFeatures),
		zap.Int("trees", len(art.Trees)))
	return &TabularRefiner{art: &art, logger: logger}, nil
}

func validateTree(t tree, width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d references feature %d", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

// ExpectedInputWidth returns the feature width the artifact was
// trained with. The pipeline zero-pads vectors to this width.
func (r *TabularRefiner) ExpectedInputWidth() int {
	return r.art.NFeatures
}

// PredictProba returns the positive-class probability per feature
// vector, averaged over the ensemble.
func (r *TabularRefiner) PredictProba(features [][]float64) ([]float64, error) {
	width := r.art.NFeatures
	probs := make([]float64, len(features))
	for i, row := range features {
		if len(row) != width {
			return nil, fmt.Errorf("feature vector %d has width %d, refiner expects %d", i, len(row), width)
		}
		var sum float64
		for _, t := range r.art.Trees {
			sum += t.walk(row)
		}
		probs[i] = sum / float64(len(r.art.Trees))
	}
	return probs, nil
}
