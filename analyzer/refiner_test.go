package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeEnsemble(t *testing.T, dir string, art ensembleArtifact) {
	t.Helper()
	data, err := json.Marshal(art)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ensembleFile), data, 0o644))
}

// splitTree splits on feature 0 at 0.5: low side predicts lo, high
// side predicts hi.
func splitTree(lo, hi float64) tree {
	return tree{Nodes: []treeNode{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: lo},
		{Leaf: true, Value: hi},
	}}
}

func TestLoadRefinerMissingFile(t *testing.T) {
	r, err := LoadRefiner(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestLoadRefinerCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ensembleFile), []byte("{not json"), 0o644))

	_, err := LoadRefiner(dir, zap.NewNop())
	var loadErr *ModelLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadRefinerUnsupportedWidth(t *testing.T) {
	dir := t.TempDir()
	writeEnsemble(t, dir, ensembleArtifact{NFeatures: 3, Trees: []tree{splitTree(0.2, 0.8)}})

	_, err := LoadRefiner(dir, zap.NewNop())
	var shapeErr *UnsupportedFeatureShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 3, shapeErr.Width)
}

func TestLoadRefinerInvalidTree(t *testing.T) {
	bad := tree{Nodes: []treeNode{
		{Feature: 0, Threshold: 0.5, Left: 0, Right: 2}, // left points at itself
		{Leaf: true, Value: 0.1},
		{Leaf: true, Value: 0.9},
	}}
	dir := t.TempDir()
	writeEnsemble(t, dir, ensembleArtifact{NFeatures: 2, Trees: []tree{bad}})

	_, err := LoadRefiner(dir, zap.NewNop())
	var loadErr *ModelLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestPredictProba(t *testing.T) {
	dir := t.TempDir()
	writeEnsemble(t, dir, ensembleArtifact{
		Version:   "test",
		NFeatures: 2,
		Trees:     []tree{splitTree(0.2, 0.8)},
	})
	r, err := LoadRefiner(dir, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 2, r.ExpectedInputWidth())

	probs, err := r.PredictProba([][]float64{{0.4, 5}, {0.6, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.8}, probs)
}

func TestPredictProbaAveragesTrees(t *testing.T) {
	dir := t.TempDir()
	writeEnsemble(t, dir, ensembleArtifact{
		NFeatures: 2,
		Trees:     []tree{splitTree(0.2, 0.8), splitTree(0.4, 0.6)},
	})
	r, err := LoadRefiner(dir, zap.NewNop())
	require.NoError(t, err)

	probs, err := r.PredictProba([][]float64{{0.9, 3}})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, probs[0], 1e-9)
}

func TestPredictProbaRejectsWrongWidth(t *testing.T) {
	dir := t.TempDir()
	writeEnsemble(t, dir, ensembleArtifact{NFeatures: 2, Trees: []tree{splitTree(0.2, 0.8)}})
	r, err := LoadRefiner(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = r.PredictProba([][]float64{{0.4, 5, 1}})
	assert.Error(t, err)
}
