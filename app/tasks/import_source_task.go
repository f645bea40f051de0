package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/importer"
)

type ImportSourceTask struct {
	Task
	Source     *database.Source
	imp        *importer.Importer
	sourceRepo database.SourceRepository
}

func NewImportSourceTask(source *database.Source, imp *importer.Importer, sourceRepo database.SourceRepository) *ImportSourceTask {
	return &ImportSourceTask{
		Task:       NewTask(TaskTypeImportSource, source.Title),
		Source:     source,
		imp:        imp,
		sourceRepo: sourceRepo,
	}
}

func (t *ImportSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Source.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.Source.Title)
		return nil
	}

	result, err := t.imp.Import(ctx, t.Source)
	if err != nil {
		if errors.Is(err, importer.ErrAuthRequired) {
			// Retrying without different credentials cannot help.
			slog.Error("Source requires authentication", "source", t.Source.Title, "error", err)
			t.RetryCount = t.MaxRetries
		}
		return fmt.Errorf("failed to import source: %w", err)
	}

	now := time.Now().UTC()
	next := now.Add(time.Duration(t.Source.ReimportInterval) * time.Second)
	if err := t.sourceRepo.UpdateImportTimes(t.Source.ID, now, next); err != nil {
		return fmt.Errorf("failed to update import times: %w", err)
	}

	slog.Info("Task completed",
		"type", "ImportSource",
		"source", t.Source.Title,
		"duration", t.GetDuration(),
		"decoder", result.DecoderLabel,
		"decoded", result.Decoded,
		"new", result.Created,
		"duplicates", result.Duplicates)

	return nil
}
