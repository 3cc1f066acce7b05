package handlers

import (
	"errors"
	"sort"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"

	"github.com/byteberry/statsync/pkg/targets"
	"github.com/byteberry/statsync/pkg/tasks"
)

// TargetSummary is the list representation of a configured target
type TargetSummary struct {
	Name          string `json:"name"`
	OrgID         string `json:"orgId"`
	OrgName       string `json:"orgName"`
	MetricType    string `json:"metricType"`
	Tab           string `json:"tab"`
	Streams       int    `json:"streams"`
	RetentionDays int    `json:"retentionDays"`
	Schedule      string `json:"schedule,omitempty"`
}

// TargetDetail extends the summary with stream and header configuration
type TargetDetail struct {
	TargetSummary
	StreamNames     []string `json:"streamNames"`
	ExpectedHeaders []string `json:"expectedHeaders,omitempty"`
}

// ListTargets handles GET /api/v1/targets
func (s *Server) ListTargets(c fiber.Ctx) error {
	summaries := make([]TargetSummary, 0, len(s.catalog.Targets))

	for i := range s.catalog.Targets {
		summaries = append(summaries, s.summarize(&s.catalog.Targets[i]))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"targets": summaries,
		"total":   len(summaries),
	})
}

// GetTarget handles GET /api/v1/targets/{metric}/{org}
func (s *Server) GetTarget(c fiber.Ctx) error {
	target, err := s.findTarget(c)
	if err != nil {
		return err
	}

	streamNames := make([]string, 0, len(target.Streams))
	for _, stream := range target.Streams {
		streamNames = append(streamNames, stream.Name)
	}

	detail := TargetDetail{
		TargetSummary:   s.summarize(target),
		StreamNames:     streamNames,
		ExpectedHeaders: target.ExpectedHeaders,
	}

	return c.Status(fiber.StatusOK).JSON(detail)
}

// GetCheckpoint handles GET /api/v1/targets/{metric}/{org}/checkpoint
func (s *Server) GetCheckpoint(c fiber.Ctx) error {
	target, err := s.findTarget(c)
	if err != nil {
		return err
	}

	dates, err := s.checkpoints.Load(c.Context(), target.CheckpointKey())
	if err != nil {
		s.log.WithError(err).WithField("target", target.Name()).Error("Failed to load checkpoint")
		return fiber.ErrInternalServerError
	}

	written := make([]string, 0, len(dates))
	for date := range dates {
		written = append(written, date.String())
	}

	sort.Strings(written)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"target": target.Name(),
		"dates":  written,
		"total":  len(written),
	})
}

// TriggerSync handles POST /api/v1/targets/{metric}/{org}/sync
func (s *Server) TriggerSync(c fiber.Ctx) error {
	target, err := s.findTarget(c)
	if err != nil {
		return err
	}

	payload := tasks.TaskPayload{TargetName: target.Name(), EnqueuedAt: time.Now().UTC()}

	pending, err := s.queue.IsTaskPendingOrRunning(payload)
	if err != nil {
		s.log.WithError(err).WithField("target", target.Name()).Error("Failed to inspect queue")

		return fiber.ErrInternalServerError
	}

	if pending {
		return ErrSyncAlreadyQueued
	}

	// The enqueue itself can still race a scheduler tick; the task ID
	// conflict closes that window.
	if err := s.queue.EnqueueSync(c.Context(), payload); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return ErrSyncAlreadyQueued
		}

		s.log.WithError(err).WithField("target", target.Name()).Error("Failed to enqueue sync")

		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"target": target.Name(),
		"status": "queued",
	})
}

func (s *Server) summarize(target *targets.Target) TargetSummary {
	tab, err := s.titles.TabName(target)
	if err != nil {
		// Template failures surface when the sync runs; the listing
		// still shows the target.
		s.log.WithError(err).WithField("target", target.Name()).Warn("Failed to render tab title")
		tab = ""
	}

	return TargetSummary{
		Name:          target.Name(),
		OrgID:         target.OrgID,
		OrgName:       target.OrgName,
		MetricType:    target.MetricType,
		Tab:           tab,
		Streams:       len(target.Streams),
		RetentionDays: target.RetentionDays,
		Schedule:      target.Schedule,
	}
}
