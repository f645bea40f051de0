package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/sources"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *sources.Config
	sourceRepo   database.SourceRepository
}

func NewSyncSourceConfigTask(sourceName string, sourceConfig *sources.Config, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceName),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	source := &database.Source{
		Title:               t.SourceConfig.Title,
		URL:                 t.SourceConfig.URL,
		FormatType:          t.SourceConfig.Format,
		Enabled:             t.SourceConfig.Settings.Enabled,
		ReimportInterval:    t.SourceConfig.Settings.ReimportInterval,
		ExtractDescriptions: t.SourceConfig.Settings.ExtractDescriptions,
	}

	if err := t.sourceRepo.UpsertSource(source); err != nil {
		slog.Error("Task failed", "type", "SyncSourceConfig", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
