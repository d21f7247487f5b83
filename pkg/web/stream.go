package web

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
	"github.com/gofiber/fiber/v3"
)

const (
	defaultStreamLimit = 5 * time.Minute
	streamBuffer       = 64
)

// StreamExecution streams progress frames of a running execution as server-sent events. For an
// execution that already completed, a single terminal frame built from its record is sent. A
// submitted execution that has not emitted its first event yet is streamed like a running one.
func (h *APIHandlers) StreamExecution(c fiber.Ctx) error {
	executionID := c.Params("id")

	// Subscribe before looking the record up so a terminal frame emitted in between is not missed.
	sub := h.broadcaster.Subscribe(executionID, streamBuffer)

	record, err := h.executions.Get(executionID)
	if err != nil {
		if h.queryService.Pending(executionID) {
			err = nil
		} else {
			// it may have finished between the two lookups
			record, err = h.executions.Get(executionID)
		}
	}

	if err != nil {
		sub.Close()

		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	if record != nil && record.Status != models.ExecutionStatusRunning {
		sub.Close()

		return c.SendString(formatFrame(snapshot(record)))
	}

	reader, writer := io.Pipe()
	limit := h.streamLimit

	go func() {
		defer sub.Close()

		timeout := time.NewTimer(limit)
		defer timeout.Stop()

		for {
			select {
			case frame, ok := <-sub.Events():
				if !ok {
					_ = writer.Close()

					return
				}

				if _, err := io.WriteString(writer, formatFrame(frame)); err != nil {
					_ = writer.CloseWithError(err)

					return
				}
			case <-timeout.C:
				_ = writer.Close()

				return
			}
		}
	}()

	return c.SendStream(reader)
}

func snapshot(record *models.ExecutionRecord) events.Progress {
	return events.Progress{
		Type:        events.ExecutionCompletedEvent,
		ExecutionID: record.ExecutionID,
		Timestamp:   record.EndTime,
		Data: map[string]any{
			"duration_ms": record.Duration().Milliseconds(),
		},
	}
}

func formatFrame(frame events.Progress) string {
	payload, err := json.Marshal(frame)
	if err != nil {
		payload = []byte(`{}`)
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", frame.Type, payload)
}
