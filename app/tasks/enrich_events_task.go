package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/importer"
)

const enrichBatchSize = 25

type EnrichEventsTask struct {
	Task
	Source     *database.Source
	httpClient *http.Client
	extractor  *importer.DescriptionExtractor
	eventRepo  database.EventRepository
	userAgent  string
}

func NewEnrichEventsTask(source *database.Source, httpClient *http.Client, extractor *importer.DescriptionExtractor, eventRepo database.EventRepository, userAgent string) *EnrichEventsTask {
	return &EnrichEventsTask{
		Task:       NewTask(TaskTypeEnrichEvents, source.Title),
		Source:     source,
		httpClient: httpClient,
		extractor:  extractor,
		eventRepo:  eventRepo,
		userAgent:  userAgent,
	}
}

func (t *EnrichEventsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Source.ExtractDescriptions {
		slog.Debug("Description extraction disabled for source", "source", t.Source.Title)
		return nil
	}

	events, err := t.eventRepo.GetEventsForEnrichment(t.Source.ID, enrichBatchSize)
	if err != nil {
		return fmt.Errorf("failed to get events for enrichment: %w", err)
	}

	if len(events) == 0 {
		slog.Debug("No events need description enrichment", "source", t.Source.Title)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, event := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := t.enrichEvent(ctx, event); err != nil {
			slog.Error("Failed to enrich event", "event_id", event.ID, "url", event.URL, "error", err)
			errorCount++
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.Source.Title,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *EnrichEventsTask) enrichEvent(ctx context.Context, event database.Event) error {
	if event.URL == "" {
		return fmt.Errorf("event has no URL")
	}

	data, err := t.fetchEventPage(ctx, event.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch event page: %w", err)
	}

	description, err := t.extractor.Run(data)
	if err != nil {
		return fmt.Errorf("failed to extract description: %w", err)
	}

	if err := t.eventRepo.UpdateEventDescription(event.ID, description); err != nil {
		return fmt.Errorf("failed to update event description: %w", err)
	}

	slog.Debug("Description extracted successfully", "event_id", event.ID,
		"url", event.URL, "description_length", len(description))
	return nil
}

func (t *EnrichEventsTask) fetchEventPage(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
