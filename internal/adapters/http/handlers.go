package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
)

// pageParams reads offset/limit query parameters, clamped to sane values.
func pageParams(c *fiber.Ctx, defLimit, maxLimit int) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", defLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxLimit {
		limit = defLimit
	}
	return offset, limit
}

func businessFilter(c *fiber.Ctx) (domain.BusinessFilter, error) {
	q := c.Query("q")
	if len(q) > 200 {
		return domain.BusinessFilter{}, fiber.NewError(fiber.StatusBadRequest, "query too long (max 200 characters)")
	}
	return domain.BusinessFilter{
		Category: domain.Category(c.Query("category")),
		Query:    q,
		Status:   domain.Status(c.Query("status")),
	}, nil
}

// ListBusinessesHandler returns approved businesses, sponsored first.
func ListBusinessesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := businessFilter(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		offset, limit := pageParams(c, 20, 100)

		items, total, err := deps.Businesses.List(c.UserContext(), filter, limit, offset)
		if err != nil {
			return writeError(c, err)
		}
		if items == nil {
			items = []domain.Business{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// NearbyBusinessesHandler returns approved businesses within a radius of a point.
func NearbyBusinessesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lng := c.QueryFloat("lng", 0)
		radius := c.QueryFloat("radius", 1000)
		limit := c.QueryInt("limit", 20)

		if lat == 0 || lng == 0 {
			return errBadRequest(c, "lat and lng are required")
		}
		if radius <= 0 || radius > 20000 {
			return errBadRequest(c, "radius must be between 1 and 20000 meters")
		}

		out, err := deps.Businesses.Nearby(c.UserContext(), domain.GeoPoint{Lat: lat, Lng: lng}, radius, limit)
		if err != nil {
			return writeError(c, err)
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(out)
	}
}

// GetBusinessHandler returns a single business by ID.
func GetBusinessHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Businesses.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(b)
	}
}

// SubmitBusinessHandler registers a listing for moderation.
func SubmitBusinessHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b domain.Business
		if err := c.BodyParser(&b); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Businesses.Submit(c.UserContext(), &b); err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// ListCategoriesHandler returns the known business categories.
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(domain.Categories)
	}
}

// BusinessCouponsHandler returns active coupons offered by one business.
func BusinessCouponsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cs, err := deps.Coupons.ListByBusiness(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		if cs == nil {
			cs = []domain.Coupon{}
		}
		return c.JSON(cs)
	}
}

// ListCouponsHandler returns every active coupon.
func ListCouponsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cs, err := deps.Coupons.List(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}
		if cs == nil {
			cs = []domain.Coupon{}
		}
		return c.JSON(cs)
	}
}

// GetCouponHandler looks a coupon up by its redemption code.
func GetCouponHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cp, err := deps.Coupons.GetByCode(c.UserContext(), c.Params("code"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(cp)
	}
}

// CouponQRHandler renders a coupon code as a PNG QR code.
func CouponQRHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		png, err := deps.Coupons.QRCode(c.UserContext(), c.Params("code"), c.QueryInt("size", 0))
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		c.Set("Cache-Control", "public, max-age=86400")
		return c.Send(png)
	}
}

type chatRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

// ChatHandler forwards a visitor prompt to the assistant. When the model is
// unavailable the reply carries a localized fallback text.
func ChatHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		reply, err := deps.Chat.Ask(c.UserContext(), req.Prompt, req.Language)
		if err != nil {
			metrics.ChatRequests.WithLabelValues(outcome(err)).Inc()
			if errors.Is(err, domain.ErrUnavailable) {
				reqID, _ := c.Locals("requestid").(string)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":     fiber.StatusServiceUnavailable,
					"code":       "unavailable",
					"message":    err.Error(),
					"request_id": reqID,
					"fallback":   usecases.ChatFallback(req.Language),
				})
			}
			return writeError(c, err)
		}
		metrics.ChatRequests.WithLabelValues("ok").Inc()
		return c.JSON(reply)
	}
}

type statusRequest struct {
	Status domain.Status `json:"status"`
}

// AdminListBusinessesHandler lists businesses in any moderation status.
func AdminListBusinessesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := businessFilter(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		offset, limit := pageParams(c, 20, 100)

		items, total, err := deps.Businesses.ListAdmin(c.UserContext(), filter, limit, offset)
		if err != nil {
			return writeError(c, err)
		}
		if items == nil {
			items = []domain.Business{}
		}
		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "no-store")
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// SetStatusHandler approves or rejects a listing.
func SetStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req statusRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Businesses.SetStatus(c.UserContext(), c.Params("id"), req.Status); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type sponsorshipRequest struct {
	Level     domain.AdLevel `json:"level"`
	StartDate *time.Time     `json:"start_date,omitempty"`
	EndDate   *time.Time     `json:"end_date,omitempty"`
}

// SetSponsorshipHandler changes a listing's ad level and campaign dates.
func SetSponsorshipHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sponsorshipRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		sp := domain.Sponsorship{
			BusinessID: c.Params("id"),
			Level:      req.Level,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
		}
		if err := deps.Sponsorships.Set(c.UserContext(), &sp); err != nil {
			return writeError(c, err)
		}
		return c.JSON(sp)
	}
}

// MoveLocationHandler stores a new map position for a listing.
func MoveLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var loc domain.GeoPoint
		if err := c.BodyParser(&loc); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Businesses.MoveLocation(c.UserContext(), c.Params("id"), loc, ""); err != nil {
			metrics.MarkerMoves.WithLabelValues(outcome(err)).Inc()
			return writeError(c, err)
		}
		metrics.MarkerMoves.WithLabelValues("ok").Inc()
		return c.SendStatus(fiber.StatusNoContent)
	}
}
