package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"review-radar/config"
	"review-radar/models"
)

func newTestRunner(timeoutSeconds int) *PipelineRunner {
	cfg := &config.Config{
		WorkerCommand:         "scoreworker",
		ScoringTimeoutSeconds: timeoutSeconds,
	}
	return NewPipelineRunner(cfg, zap.NewNop())
}

func workerStdout(t *testing.T, resp models.WorkerResponse) []byte {
	t.Helper()
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return data
}

func TestRunnerSuccess(t *testing.T) {
	r := newTestRunner(30)

	result := &models.PipelineResult{
		Verdict:    models.VerdictSafe,
		Confidence: 82.5,
		ScoredReviews: []models.ScoredReview{
			{Review: models.Review{Text: "good"}, TrustScore: 82.5, Label: models.LabelHigh},
		},
		Stats: models.PipelineStats{AvgScore: 0.825, TotalCount: 1},
	}

	var gotStdin []byte
	r.WithInvoker(func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		gotStdin = stdin
		return workerStdout(t, models.WorkerResponse{Success: true, Result: result}), nil, nil
	})

	reviews := []models.Review{{Text: "good", Rating: 5}}
	got, err := r.Run(context.Background(), reviews, 7)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictSafe, got.Verdict)
	assert.Equal(t, 82.5, got.Confidence)

	var req models.WorkerRequest
	require.NoError(t, json.Unmarshal(gotStdin, &req))
	assert.Equal(t, uint(7), req.AnalysisID)
	require.Len(t, req.Reviews, 1)
	assert.Equal(t, "good", req.Reviews[0].Text)
}

func TestRunnerTimeout(t *testing.T) {
	r := newTestRunner(0) // deadline expires immediately

	r.WithInvoker(func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	})

	_, err := r.Run(context.Background(), []models.Review{{Text: "x"}}, 1)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestRunnerExecutionFailure(t *testing.T) {
	r := newTestRunner(30)

	r.WithInvoker(func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		return nil, []byte("traceback: model file corrupt\n"), errors.New("exit status 1")
	})

	_, err := r.Run(context.Background(), []models.Review{{Text: "x"}}, 1)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Stderr, "model file corrupt")
}

func TestRunnerMalformedOutput(t *testing.T) {
	r := newTestRunner(30)

	r.WithInvoker(func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		return []byte("INFO: starting up\n{broken"), nil, nil
	})

	_, err := r.Run(context.Background(), []models.Review{{Text: "x"}}, 1)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Msg, "malformed")
}

func TestRunnerWorkerReportedFailure(t *testing.T) {
	r := newTestRunner(30)

	r.WithInvoker(func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		return workerStdout(t, models.WorkerResponse{Success: false, Error: "no scorable reviews"}), nil, nil
	})

	_, err := r.Run(context.Background(), []models.Review{{Text: "x"}}, 1)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "no scorable reviews", execErr.Msg)
}
