package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/apns-push/internal/domain"
	"github.com/kursadbilgin/apns-push/internal/observability"
	"github.com/kursadbilgin/apns-push/internal/service"
)

type PushService interface {
	Push(ctx context.Context, params map[string]any) (*service.PushReceipt, error)
}

type PushHandler struct {
	service PushService
}

func NewPushHandler(service PushService) (*PushHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("push service is required")
	}
	return &PushHandler{service: service}, nil
}

// RegisterPushRoutes mounts the webtask style entry point at "/" and the
// versioned endpoint at "/v1/push".
func RegisterPushRoutes(router fiber.Router, service PushService) error {
	h, err := NewPushHandler(service)
	if err != nil {
		return err
	}

	router.Post("/", h.Send)
	router.Group("/v1").Post("/push", h.Push)

	return nil
}

type pushResponse struct {
	Success     bool    `json:"success"`
	AttemptID   string  `json:"attemptId"`
	Environment string  `json:"environment"`
	Gateway     string  `json:"gateway"`
	FrameBytes  int     `json:"frameBytes"`
	Identifier  *uint32 `json:"identifier,omitempty"`
}

// Send answers with the bare {"success":true} body.
func (h *PushHandler) Send(c *fiber.Ctx) error {
	if _, err := h.push(c); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *PushHandler) Push(c *fiber.Ctx) error {
	receipt, err := h.push(c)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pushResponse{
		Success:     true,
		AttemptID:   receipt.AttemptID,
		Environment: receipt.Environment.String(),
		Gateway:     receipt.Gateway.Address(),
		FrameBytes:  receipt.FrameBytes,
		Identifier:  receipt.Identifier,
	})
}

func (h *PushHandler) push(c *fiber.Ctx) (*service.PushReceipt, error) {
	params, err := requestParams(c)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}

	receipt, err := h.service.Push(ctx, params)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return receipt, nil
}

// requestParams merges query arguments with the body. A JSON body keeps its
// value types; a form body yields strings only.
func requestParams(c *fiber.Ctx) (map[string]any, error) {
	params := map[string]any{}
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return params, nil
	}

	if isJSONRequest(c, body) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var decoded map[string]any
		if err := dec.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("invalid request body: %v", err)
		}
		for k, v := range decoded {
			params[k] = v
		}
		return params, nil
	}

	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	return params, nil
}

func isJSONRequest(c *fiber.Ctx, body []byte) bool {
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
	if strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		return true
	}
	return contentType == "" && body[0] == '{'
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrMissingDestination),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMissingCredentials),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrEncoding),
		errors.Is(err, domain.ErrTLSAuthorization),
		errors.Is(err, domain.ErrConnection):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		return err
	}
}
