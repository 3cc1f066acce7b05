package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/byteberry/statsync/pkg/tasks"
)

// QueueStatus summarizes the sync queue
type QueueStatus struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
	Failed  int    `json:"failed"`
	Size    int    `json:"size"`
}

// GetQueueStatus handles GET /api/v1/queue
func (s *Server) GetQueueStatus(c fiber.Ctx) error {
	info, err := s.queue.GetQueueStats(tasks.QueueSync)
	if err != nil {
		// The queue only exists in Redis once something has been enqueued
		if tasks.IsNotFound(err) {
			return c.Status(fiber.StatusOK).JSON(QueueStatus{Queue: tasks.QueueSync})
		}

		s.log.WithError(err).Error("Failed to read queue stats")

		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusOK).JSON(QueueStatus{
		Queue:   info.Queue,
		Pending: info.Pending,
		Active:  info.Active,
		Retry:   info.Retry,
		Failed:  info.Failed,
		Size:    info.Size,
	})
}
