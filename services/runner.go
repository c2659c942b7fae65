package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"review-radar/config"
	"review-radar/models"
)

// TimeoutError reports a scoring run that exceeded its hard cap. The
// worker has already been terminated when this is returned.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scoring timed out after %s", e.Timeout)
}

// ExecutionError reports a worker that exited non-zero, broke the
// output protocol, or reported failure. Stderr is the captured
// diagnostic text.
type ExecutionError struct {
	Msg    string
	Stderr string
}

func (e *ExecutionError) Error() string {
	if e.Stderr == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Stderr)
}

// WorkerInvoker runs one worker process: payload in on stdin, stdout
// and stderr captured. Injectable for tests.
type WorkerInvoker func(ctx context.Context, stdin []byte) (stdout, stderr []byte, err error)

// PipelineRunner executes the scoring pipeline out of process. Each
// Run spawns a fresh worker; a crash or hang in the scoring code
// degrades one analysis, not the serving process.
type PipelineRunner struct {
	command string
	timeout time.Duration
	logger  *zap.Logger
	invoke  WorkerInvoker
}

// NewPipelineRunner builds a runner around the configured worker
// command and timeout.
func NewPipelineRunner(cfg *config.Config, logger *zap.Logger) *PipelineRunner {
	r := &PipelineRunner{
		command: cfg.WorkerCommand,
		timeout: time.Duration(cfg.ScoringTimeoutSeconds) * time.Second,
		logger:  logger,
	}
	r.invoke = r.execWorker
	return r
}

// WithInvoker sets a custom worker invoker (for testing).
func (r *PipelineRunner) WithInvoker(invoke WorkerInvoker) {
	r.invoke = invoke
}

// Run serializes the reviews to the worker's stdin and decodes the
// single JSON result object from its stdout.
func (r *PipelineRunner) Run(ctx context.Context, reviews []models.Review, analysisID uint) (*models.PipelineResult, error) {
	log := r.logger.With(
		zap.Uint("analysis_id", analysisID),
		zap.String("run_id", uuid.NewString()[:8]))

	payload, err := json.Marshal(models.WorkerRequest{Reviews: reviews, AnalysisID: analysisID})
	if err != nil {
		return nil, fmt.Errorf("encode worker input: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, runErr := r.invoke(runCtx, payload)
	elapsed := time.Since(start)

	relayWorkerLog(log, stderr)
	log.Info("worker run finished", zap.Duration("elapsed", elapsed))

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.Error("worker exceeded timeout", zap.Duration("timeout", r.timeout))
		return nil, &TimeoutError{Timeout: r.timeout}
	}
	if runErr != nil {
		log.Error("worker execution failed", zap.Error(runErr))
		return nil, &ExecutionError{Msg: "scoring worker failed", Stderr: tail(stderr, 2000)}
	}

	var resp models.WorkerResponse
	if err := json.Unmarshal(stdout, &resp); err != nil {
		log.Error("worker output malformed", zap.Error(err))
		return nil, &ExecutionError{Msg: "malformed worker output", Stderr: tail(stderr, 2000)}
	}
	if !resp.Success || resp.Result == nil {
		msg := resp.Error
		if msg == "" {
			msg = "worker reported failure without detail"
		}
		return nil, &ExecutionError{Msg: msg}
	}

	log.Info("scoring succeeded",
		zap.String("verdict", resp.Result.Verdict),
		zap.Float64("confidence", resp.Result.Confidence),
		zap.Int("scored", len(resp.Result.ScoredReviews)))
	return resp.Result, nil
}

// execWorker is the default invoker: one subprocess per run.
func (r *PipelineRunner) execWorker(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, r.command) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// relayWorkerLog mirrors the worker's stderr lines into the server log
// so subprocess diagnostics survive the process boundary.
func relayWorkerLog(log *zap.Logger, stderr []byte) {
	for _, line := range strings.Split(string(stderr), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			log.Info("worker log", zap.String("line", line))
		}
	}
}

func tail(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
