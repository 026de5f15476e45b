package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
)

// maxEventBatch bounds the number of gesture events accepted per request.
const maxEventBatch = 256

type eventsRequest struct {
	Events []mapview.Event `json:"events"`
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// frameResponse is a frame plus any marker commit the host rejected.
type frameResponse struct {
	Frame mapview.Frame `json:"frame"`
	Error string        `json:"error,omitempty"`
}

// MapConfigHandler describes the map image, bounds and viewport limits.
func MapConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(deps.Maps.Config(c.UserContext()))
	}
}

// OpenMapSessionHandler starts a viewport session sized to the client container.
func OpenMapSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req usecases.OpenMapSession
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Width < 0 || req.Height < 0 {
			return errBadRequest(c, "width and height must not be negative")
		}
		view, err := deps.Maps.Open(c.UserContext(), req)
		if err != nil {
			return writeError(c, err)
		}
		metrics.ActiveMapSessions.Set(float64(deps.Maps.Count()))
		c.Location("/v1/map/sessions/" + view.ID)
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// DispatchEventsHandler feeds a batch of gesture events to a session.
// A rejected marker commit still returns the (reverted) frame, with 400 or
// 404 as the status.
func DispatchEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req eventsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Events) > maxEventBatch {
			return errBadRequest(c, "too many events in one batch")
		}
		countEvents(req.Events)

		frame, err := deps.Maps.Dispatch(c.UserContext(), c.Params("id"), req.Events)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return writeError(c, err)
		}
		if err != nil {
			metrics.MarkerMoves.WithLabelValues(outcome(err)).Inc()
			status := fiber.StatusInternalServerError
			if errors.Is(err, domain.ErrOutOfBounds) || errors.Is(err, domain.ErrNotFound) {
				status = fiber.StatusBadRequest
			}
			return c.Status(status).JSON(frameResponse{Frame: frame, Error: err.Error()})
		}
		return c.JSON(frameResponse{Frame: frame})
	}
}

// ResizeMapSessionHandler refits a session to a new container size.
func ResizeMapSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req resizeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		frame, err := deps.Maps.Resize(c.Params("id"), req.Width, req.Height)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(frameResponse{Frame: frame})
	}
}

// ResetMapSessionHandler restores the fitted view.
func ResetMapSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Maps.Reset(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(frameResponse{Frame: frame})
	}
}

// MapFrameHandler returns the session's current frame.
func MapFrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Maps.Frame(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(frameResponse{Frame: frame})
	}
}

// CloseMapSessionHandler ends a session. A drag still in progress is saved;
// a rejected position is reported after the session is gone.
func CloseMapSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := deps.Maps.Close(c.UserContext(), c.Params("id"))
		metrics.ActiveMapSessions.Set(float64(deps.Maps.Count()))
		if err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func countEvents(events []mapview.Event) {
	for _, ev := range events {
		kind := string(ev.Kind)
		if !ev.Kind.Known() {
			kind = "unknown"
		}
		metrics.GestureEvents.WithLabelValues(kind).Inc()
	}
}
