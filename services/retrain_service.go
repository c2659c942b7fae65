package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"review-radar/config"
	"review-radar/models"
	"review-radar/storage"
)

// RetrainService drives queued training jobs. The scheduled batch run
// claims pending rows, builds a weakly-labeled dataset from feedback
// votes, invokes the external trainer and registers the produced
// snapshot as the new active model.
type RetrainService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	S3Client *s3.Client
}

// NewRetrainService wires the retraining batch job. s3Client may be
// nil when no artifact bucket is configured.
func NewRetrainService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, s3Client *s3.Client) *RetrainService {
	return &RetrainService{Config: cfg, DB: db, Logger: logger, S3Client: s3Client}
}

// Enqueue creates a pending training job.
func (s *RetrainService) Enqueue() (*models.AIJob, error) {
	job := &models.AIJob{Type: "training", Status: models.JobPending}
	if err := s.DB.Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// RunPending processes all pending training jobs sequentially. Each
// job reaches a terminal state independently; one failure does not
// block the rest.
func (s *RetrainService) RunPending(ctx context.Context) {
	var jobs []models.AIJob
	if err := s.DB.Where("status = ? AND type = ?", models.JobPending, "training").
		Order("submitted_at asc").Find(&jobs).Error; err != nil {
		s.Logger.Error("failed to list pending jobs", zap.Error(err))
		return
	}
	for i := range jobs {
		s.runJob(ctx, &jobs[i])
	}
}

func (s *RetrainService) runJob(ctx context.Context, job *models.AIJob) {
	log := s.Logger.With(zap.Uint("job_id", job.ID))
	now := time.Now()
	if err := s.DB.Model(job).Updates(map[string]any{
		"status":     models.JobRunning,
		"started_at": &now,
	}).Error; err != nil {
		log.Error("failed to claim job", zap.Error(err))
		return
	}

	if err := s.execute(ctx, job, log); err != nil {
		log.Error("training job failed", zap.Error(err))
		s.finish(job, models.JobFailed, err.Error())
		return
	}
	s.finish(job, models.JobCompleted, "")
	log.Info("training job completed")
}

func (s *RetrainService) execute(ctx context.Context, job *models.AIJob, log *zap.Logger) error {
	if s.Config.TrainerCommand == "" {
		return errors.New("trainer command not configured")
	}

	datasetPath, rows, err := s.buildDataset()
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}
	defer os.Remove(datasetPath)
	if rows == 0 {
		return errors.New("no feedback available for training")
	}
	log.Info("dataset prepared", zap.Int("rows", rows))

	version := time.Now().Format("20060102_150405")
	outputDir := filepath.Join(s.Config.RetrainModelRoot, "model_"+version)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.Config.TrainerCommand,
		"--dataset", datasetPath,
		"--output", outputDir,
	)
	output, err := cmd.CombinedOutput()
	s.DB.Model(job).Update("logs", string(output))
	if err != nil {
		return fmt.Errorf("trainer: %w", err)
	}

	if s.S3Client != nil && s.Config.ModelS3Bucket != "" {
		prefix := "models/model_" + version
		if err := storage.UploadDir(ctx, s.S3Client, s.Config.ModelS3Bucket, prefix, outputDir); err != nil {
			// Local snapshot is still usable, so the job succeeds.
			log.Warn("artifact upload failed", zap.Error(err))
		}
	}

	model := &models.AIModel{
		ModelName:   "trust-classifier",
		Version:     version,
		ArtifactURL: outputDir,
		Description: fmt.Sprintf("retrained on %d feedback-labeled reviews", rows),
		Active:      true,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AIModel{}).Where("active = ?", true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(model).Error
	})
	if err != nil {
		return fmt.Errorf("register model: %w", err)
	}
	s.DB.Model(job).Update("model_id", model.ID)
	return nil
}

// buildDataset joins feedback votes with the sampled reviews of the
// voted analyses and writes a {text,label} CSV. Votes are weak labels:
// each vote applies uniformly to every sample of its analysis.
func (s *RetrainService) buildDataset() (string, int, error) {
	var feedbacks []models.Feedback
	if err := s.DB.Find(&feedbacks).Error; err != nil {
		return "", 0, err
	}

	f, err := os.CreateTemp("", "trainset-*.csv")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"text", "label"}); err != nil {
		return "", 0, err
	}

	rows := 0
	for _, fb := range feedbacks {
		var analysis models.Analysis
		if err := s.DB.First(&analysis, fb.AnalysisID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return "", 0, err
		}
		label := "0"
		if fb.Helpful {
			label = "1"
		}
		for _, raw := range [][]byte{analysis.TopSamples, analysis.WorstSamples} {
			if len(raw) == 0 {
				continue
			}
			var samples []models.ReviewSample
			if err := json.Unmarshal(raw, &samples); err != nil {
				continue
			}
			for _, sample := range samples {
				if sample.Content == "" {
					continue
				}
				if err := w.Write([]string{sample.Content, label}); err != nil {
					return "", 0, err
				}
				rows++
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, err
	}
	return f.Name(), rows, nil
}

func (s *RetrainService) finish(job *models.AIJob, status, errMsg string) {
	now := time.Now()
	updates := map[string]any{
		"status":      status,
		"finished_at": &now,
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	if err := s.DB.Model(job).Updates(updates).Error; err != nil {
		s.Logger.Error("failed to finish job",
			zap.Uint("job_id", job.ID), zap.String("status", status), zap.Error(err))
	}
}
