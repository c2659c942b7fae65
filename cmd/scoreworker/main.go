// Command scoreworker runs one scoring pipeline invocation in an
// isolated process. It reads {"reviews": [...]} as UTF-8 JSON from
// stdin and writes exactly one {"success", "result", "error"} object
// to stdout. All diagnostics go to stderr so the result stream stays
// clean.
package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"review-radar/analyzer"
	"review-radar/models"
)

type workerConfig struct {
	ModelBasePath      string  `envconfig:"MODEL_BASE_PATH" default:"ai_models"`
	RetrainModelRoot   string  `envconfig:"RETRAIN_MODEL_ROOT" default:"ai_models_retrained"`
	LabelHighThreshold float64 `envconfig:"LABEL_HIGH_THRESHOLD" default:"76"`
	LabelLowThreshold  float64 `envconfig:"LABEL_LOW_THRESHOLD" default:"36"`
}

func main() {
	logger, err := stderrLogger()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	var cfg workerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		emit(models.WorkerResponse{Success: false, Error: "config: " + err.Error()})
		return
	}

	var req models.WorkerRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		emit(models.WorkerResponse{Success: false, Error: "decode input: " + err.Error()})
		return
	}
	logger = logger.With(zap.Uint("analysis_id", req.AnalysisID))
	logger.Info("worker started", zap.Int("reviews", len(req.Reviews)))

	scorer := analyzer.NewTextScorer(cfg.ModelBasePath, cfg.RetrainModelRoot, logger)
	if err := scorer.Load(); err != nil {
		logger.Error("model load failed", zap.Error(err))
		emit(models.WorkerResponse{Success: false, Error: err.Error()})
		return
	}

	var refiner analyzer.TabularModel
	if r, err := analyzer.LoadRefiner(scorer.Path(), logger); err != nil {
		logger.Error("refiner load failed", zap.Error(err))
		emit(models.WorkerResponse{Success: false, Error: err.Error()})
		return
	} else if r != nil {
		refiner = r
	}

	pipeline := analyzer.NewScoringPipeline(scorer, refiner, analyzer.PipelineConfig{
		HighThreshold: cfg.LabelHighThreshold,
		LowThreshold:  cfg.LabelLowThreshold,
	}, logger)

	result, err := pipeline.Run(req.Reviews)
	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		emit(models.WorkerResponse{Success: false, Error: err.Error()})
		return
	}

	logger.Info("worker finished",
		zap.String("verdict", result.Verdict),
		zap.Float64("confidence", result.Confidence))
	emit(models.WorkerResponse{Success: true, Result: result})
}

// stderrLogger builds a production logger that writes to stderr only.
func stderrLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func emit(resp models.WorkerResponse) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		os.Exit(1)
	}
}
