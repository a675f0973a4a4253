package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errFromDomain maps a service error onto a structured response.
func errFromDomain(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= 500 {
		LoggerFromCtx(c.UserContext()).Error("request failed",
			"path", c.Path(), "status", status, "error", err)
	}
	return newError(c, status, errorCodes[status], err.Error())
}

var errorCodes = map[int]string{
	400: "bad_request",
	404: "not_found",
	500: "internal_error",
	502: "bad_gateway",
	503: "unavailable",
	504: "timeout",
}

// statusFor classifies service errors. Upstream failures are the remote
// side's fault and answer 502; a missing API key is a deployment problem.
func statusFor(err error) int {
	var (
		pairing  *domain.PairingError
		upstream *domain.UpstreamError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidRatio),
		errors.Is(err, domain.ErrOverlappingDirs),
		errors.Is(err, domain.ErrUnsupportedGeometry),
		errors.As(err, &pairing):
		return 400
	case errors.Is(err, domain.ErrNotFound):
		return 404
	case errors.Is(err, domain.ErrLinkNotFound),
		errors.Is(err, domain.ErrUnexpectedContent),
		errors.Is(err, domain.ErrImageTooLarge),
		errors.As(err, &upstream):
		return 502
	case errors.Is(err, domain.ErrMissingAPIKey):
		return 503
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	default:
		return 500
	}
}
