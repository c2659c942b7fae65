package analyzer

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Score when the scorer has not loaded its
// weights yet.
var ErrNotReady = errors.New("text scorer is not loaded")

// ErrNoScorableInput is returned when no review survives
// preprocessing: every input was empty on both text and content.
var ErrNoScorableInput = errors.New("no reviews with scorable text")

// ModelLoadError reports a missing or corrupt model artifact.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// UnsupportedFeatureShapeError reports a refiner artifact trained on a
// feature width the pipeline cannot build vectors for.
type UnsupportedFeatureShapeError struct {
	Width int
}

func (e *UnsupportedFeatureShapeError) Error() string {
	return fmt.Sprintf("refiner expects unsupported feature width %d", e.Width)
}
