package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/apns-push/internal/domain"
)

type DeliveryLog interface {
	ListRecent(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error)
	Get(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
}

type DeliveryHandler struct {
	log DeliveryLog
}

func RegisterDeliveryRoutes(router fiber.Router, log DeliveryLog) error {
	if log == nil {
		return fmt.Errorf("delivery log is required")
	}
	h := &DeliveryHandler{log: log}

	v1 := router.Group("/v1")
	v1.Get("/deliveries", h.ListDeliveries)
	v1.Get("/deliveries/:id", h.GetDelivery)

	return nil
}

type deliveryResponse struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlationId"`
	Environment   string    `json:"environment"`
	Gateway       string    `json:"gateway,omitempty"`
	TokenSuffix   string    `json:"tokenSuffix,omitempty"`
	FrameBytes    int       `json:"frameBytes"`
	Identifier    *uint32   `json:"identifier,omitempty"`
	Outcome       string    `json:"outcome"`
	Error         *string   `json:"error,omitempty"`
	DurationMS    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
}

func (h *DeliveryHandler) ListDeliveries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}

	attempts, err := h.log.ListRecent(c.UserContext(), limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]deliveryResponse, 0, len(attempts))
	for i := range attempts {
		data = append(data, toDeliveryResponse(&attempts[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{Data: data})
}

func (h *DeliveryHandler) GetDelivery(c *fiber.Ctx) error {
	attempt, err := h.log.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(attempt))
}

func toDeliveryResponse(a *domain.DeliveryAttempt) deliveryResponse {
	if a == nil {
		return deliveryResponse{}
	}

	return deliveryResponse{
		ID:            a.ID,
		CorrelationID: a.CorrelationID,
		Environment:   a.Environment.String(),
		Gateway:       a.Gateway,
		TokenSuffix:   a.TokenSuffix,
		FrameBytes:    a.FrameBytes,
		Identifier:    a.Identifier,
		Outcome:       a.Outcome.String(),
		Error:         a.Error,
		DurationMS:    a.Duration.Milliseconds(),
		CreatedAt:     a.CreatedAt,
	}
}
