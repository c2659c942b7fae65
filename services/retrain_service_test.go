package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"review-radar/config"
	"review-radar/models"
)

func seedVotedAnalysis(t *testing.T, svc *RetrainService, helpful bool) {
	t.Helper()
	samples, err := json.Marshal([]models.ReviewSample{
		{Content: "배송이 빨랐어요", Rating: 5},
		{Content: "재질이 기대 이하", Rating: 2},
	})
	require.NoError(t, err)

	analysis := models.Analysis{
		SourceURL:  "https://www.musinsa.com/goods/1",
		Status:     models.StatusCompleted,
		TopSamples: datatypes.JSON(samples),
	}
	require.NoError(t, svc.DB.Create(&analysis).Error)
	require.NoError(t, svc.DB.Create(&models.Feedback{AnalysisID: analysis.ID, Helpful: helpful}).Error)
}

func newTestRetrainService(t *testing.T, trainerCommand string) *RetrainService {
	t.Helper()
	cfg := &config.Config{
		TrainerCommand:   trainerCommand,
		RetrainModelRoot: t.TempDir(),
	}
	return NewRetrainService(cfg, openTestDB(t), zap.NewNop(), nil)
}

func TestRunPendingWithoutTrainerCommand(t *testing.T) {
	svc := newTestRetrainService(t, "")
	job, err := svc.Enqueue()
	require.NoError(t, err)

	svc.RunPending(context.Background())

	var got models.AIJob
	require.NoError(t, svc.DB.First(&got, job.ID).Error)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "trainer command not configured", got.ErrorMessage)
	assert.NotNil(t, got.FinishedAt)
}

func TestRunPendingWithoutFeedback(t *testing.T) {
	svc := newTestRetrainService(t, "true")
	job, err := svc.Enqueue()
	require.NoError(t, err)

	svc.RunPending(context.Background())

	var got models.AIJob
	require.NoError(t, svc.DB.First(&got, job.ID).Error)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "no feedback")
}

func TestRunPendingRegistersNewActiveModel(t *testing.T) {
	// "true" stands in for the trainer binary: accepts any args, exits 0.
	svc := newTestRetrainService(t, "true")
	seedVotedAnalysis(t, svc, true)

	// Pre-existing active model must be deactivated.
	require.NoError(t, svc.DB.Create(&models.AIModel{
		ModelName: "trust-classifier", Version: "base", ArtifactURL: "ai_models", Active: true,
	}).Error)

	job, err := svc.Enqueue()
	require.NoError(t, err)
	svc.RunPending(context.Background())

	var got models.AIJob
	require.NoError(t, svc.DB.First(&got, job.ID).Error)
	assert.Equal(t, models.JobCompleted, got.Status)
	require.NotNil(t, got.ModelID)

	var active []models.AIModel
	require.NoError(t, svc.DB.Where("active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, *got.ModelID, active[0].ID)
	assert.NotEqual(t, "base", active[0].Version)
}
