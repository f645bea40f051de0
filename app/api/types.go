package api

import (
	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/dedupe"
	"github.com/eventcomb/eventcomb/app/importer"
	"github.com/eventcomb/eventcomb/app/machinetag"
	"github.com/eventcomb/eventcomb/app/sources"
	"github.com/eventcomb/eventcomb/app/tasks"
)

type Handler struct {
	sourceRepo  database.SourceRepository
	eventRepo   database.EventRepository
	venueRepo   database.VenueRepository
	tagRepo     database.TagRepository
	configCache *sources.ConfigCache
	checker     *dedupe.Checker
	imp         *importer.Importer
	resolver    *machinetag.Resolver
	scheduler   tasks.TaskSchedulerInterface
}

// SquashRequest is the body of a squash call. DuplicateIDs are merged into
// PrimaryID.
type SquashRequest struct {
	PrimaryID    int64   `json:"primary_id" binding:"required"`
	DuplicateIDs []int64 `json:"duplicate_ids" binding:"required"`
}
