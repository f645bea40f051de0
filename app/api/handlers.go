package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/dedupe"
	"github.com/eventcomb/eventcomb/app/importer"
	"github.com/eventcomb/eventcomb/app/machinetag"
	"github.com/eventcomb/eventcomb/app/sources"
	"github.com/eventcomb/eventcomb/app/tasks"
)

const defaultEventLimit = 100

func NewHandler(configCache *sources.ConfigCache, sourceRepo database.SourceRepository,
	eventRepo database.EventRepository, venueRepo database.VenueRepository,
	tagRepo database.TagRepository, checker *dedupe.Checker, imp *importer.Importer,
	resolver *machinetag.Resolver, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceRepo:  sourceRepo,
		eventRepo:   eventRepo,
		venueRepo:   venueRepo,
		tagRepo:     tagRepo,
		configCache: configCache,
		checker:     checker,
		imp:         imp,
		resolver:    resolver,
		scheduler:   scheduler,
	}
}

// GetEvents lists upcoming primary events, soonest first.
func (h *Handler) GetEvents(c *gin.Context) {
	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = n
	}

	events, err := h.eventRepo.ListEvents(time.Now().UTC(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": eventsResponse(events),
		"total":  len(events),
	})
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	event, err := h.eventRepo.GetEvent(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_event", "event_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	resp := eventResponse(*event)

	if tags, err := h.tagRepo.GetTags(database.KindEvent, event.ID); err == nil {
		resp["tags"] = h.tagsResponse(tags)
	}

	if event.VenueID != 0 {
		if venue, err := h.venueRepo.GetVenue(event.VenueID); err == nil && venue != nil {
			resp["venue"] = venueResponse(*venue)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetVenues(c *gin.Context) {
	venues, err := h.venueRepo.ListVenues(defaultEventLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_venues", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]gin.H, 0, len(venues))
	for _, v := range venues {
		out = append(out, venueResponse(v))
	}

	c.JSON(http.StatusOK, gin.H{
		"venues": out,
		"total":  len(out),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}
	if eventCount, err := h.eventRepo.GetEventCount(); err == nil {
		health["events"] = eventCount
	}
	if venueCount, err := h.venueRepo.GetVenueCount(); err == nil {
		health["venues"] = venueCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	out := make([]map[string]interface{}, 0, len(configs))

	for _, sourceConfig := range configs {
		sourceInfo := map[string]interface{}{
			"name":              sourceConfig.Name,
			"url":               sourceConfig.URL,
			"title":             sourceConfig.Title,
			"format":            sourceConfig.Format,
			"enabled":           sourceConfig.Settings.Enabled,
			"reimport_interval": (time.Duration(sourceConfig.Settings.ReimportInterval) * time.Second).String(),
		}

		if source, err := h.sourceRepo.GetSourceByURL(sourceConfig.URL); err == nil && source != nil {
			sourceInfo["id"] = source.ID
			sourceInfo["last_imported_at"] = source.LastImportedAt
			sourceInfo["next_import_at"] = source.NextImportAt
			sourceInfo["updated_at"] = source.UpdatedAt
		}

		out = append(out, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": out,
		"total":   len(out),
	})
}

func (h *Handler) APIGetSourceDetails(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	source, err := h.sourceRepo.GetSourceByURL(sourceConfig.URL)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found in database"})
		return
	}

	details := map[string]interface{}{
		"name":                 name,
		"url":                  sourceConfig.URL,
		"title":                source.Title,
		"format":               sourceConfig.Format,
		"enabled":              sourceConfig.Settings.Enabled,
		"reimport_interval":    (time.Duration(sourceConfig.Settings.ReimportInterval) * time.Second).String(),
		"extract_descriptions": sourceConfig.Settings.ExtractDescriptions,
	}

	details["database"] = map[string]interface{}{
		"id":               source.ID,
		"last_imported_at": source.LastImportedAt,
		"next_import_at":   source.NextImportAt,
		"created_at":       source.CreatedAt,
		"updated_at":       source.UpdatedAt,
	}

	if events, err := h.eventRepo.ListEventsBySource(source.ID); err == nil {
		details["event_count"] = len(events)
	}

	c.JSON(http.StatusOK, details)
}

// APIReloadSource re-reads the source's YAML config and enqueues a sync plus
// an immediate import.
func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	sourceConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncSourceConfigTask(name, sourceConfig, h.sourceRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	response := gin.H{
		"success": true,
		"source": gin.H{
			"name": name,
			"url":  sourceConfig.URL,
		},
		"tasks": []gin.H{
			{"id": syncTask.ID, "type": syncTask.Type},
		},
	}

	// The import task needs the persisted row; a source seen for the first
	// time is imported on the next scheduler tick instead.
	source, err := h.sourceRepo.GetSourceByURL(sourceConfig.URL)
	if err == nil && source != nil {
		importTask := tasks.NewImportSourceTask(source, h.imp, h.sourceRepo)
		if err := h.scheduler.EnqueueTask(importTask); err != nil {
			slog.Error("Error enqueueing import task", "source", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue import task",
				"details": err.Error(),
			})
			return
		}
		response["tasks"] = append(response["tasks"].([]gin.H),
			gin.H{"id": importTask.ID, "type": importTask.Type})
	}

	c.JSON(http.StatusOK, response)
}

// APIListDuplicates groups suspected duplicates of a kind for review. The
// grouping basis comes from the "by" query parameter: "all" (default),
// "any", or a comma-separated list of significant fields.
func (h *Handler) APIListDuplicates(c *gin.Context) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown kind"})
		return
	}

	basis := c.DefaultQuery("by", dedupe.BasisAll)
	fields := strings.Split(basis, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	groups, err := h.checker.FindDuplicatesBy(kind, fields...)
	if err != nil {
		if errors.Is(err, dedupe.ErrUnknownBasis) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Database error", "operation", "list_duplicates", "kind", kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([][]gin.H, 0, len(groups))
	for _, group := range groups {
		members := make([]gin.H, 0, len(group))
		for _, r := range group {
			members = append(members, gin.H{
				"id":         r.RecordID(),
				"attributes": r.SignificantAttributes(),
			})
		}
		out = append(out, members)
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":   kind,
		"by":     basis,
		"groups": out,
		"total":  len(out),
	})
}

func (h *Handler) APISquashDuplicates(c *gin.Context) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown kind"})
		return
	}

	var req SquashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	report := h.checker.Squash(kind, req.PrimaryID, req.DuplicateIDs)

	failures := make([]gin.H, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, gin.H{"id": f.ID, "error": f.Err.Error()})
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}

	c.JSON(status, gin.H{
		"kind":       kind,
		"primary_id": report.PrimaryID,
		"squashed":   report.Squashed,
		"failures":   failures,
	})
}

// tagsResponse annotates machine tags with their resolved external URLs.
func (h *Handler) tagsResponse(tags []string) []gin.H {
	out := make([]gin.H, 0, len(tags))
	for _, tag := range tags {
		entry := gin.H{"name": tag}
		if url := h.resolver.URL(tag); url != "" {
			entry["url"] = url
		}
		out = append(out, entry)
	}
	return out
}

func parseKind(s string) (string, bool) {
	switch s {
	case database.KindEvent, database.KindVenue:
		return s, true
	default:
		return "", false
	}
}

func eventsResponse(events []database.Event) []gin.H {
	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse(e))
	}
	return out
}

func eventResponse(e database.Event) gin.H {
	resp := gin.H{
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"url":         e.URL,
		"start_time":  e.StartTime.Format(time.RFC3339),
	}
	if e.EndTime != nil {
		resp["end_time"] = e.EndTime.Format(time.RFC3339)
	}
	if e.VenueID != 0 {
		resp["venue_id"] = e.VenueID
	}
	if e.VenueDetails != "" {
		resp["venue_details"] = e.VenueDetails
	}
	return resp
}

func venueResponse(v database.Venue) gin.H {
	resp := gin.H{
		"id":    v.ID,
		"title": v.Title,
	}
	if v.Address != "" {
		resp["address"] = v.Address
	}
	if v.StreetAddress != "" {
		resp["street_address"] = v.StreetAddress
	}
	if v.Locality != "" {
		resp["locality"] = v.Locality
	}
	if v.Region != "" {
		resp["region"] = v.Region
	}
	if v.PostalCode != "" {
		resp["postal_code"] = v.PostalCode
	}
	if v.Country != "" {
		resp["country"] = v.Country
	}
	if v.Latitude != nil && v.Longitude != nil {
		resp["latitude"] = *v.Latitude
		resp["longitude"] = *v.Longitude
	}
	if v.URL != "" {
		resp["url"] = v.URL
	}
	return resp
}
