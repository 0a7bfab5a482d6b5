// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	businessflow "github.com/amirphl/segment-backoffice/business_flow"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries what every handler needs: a validator, the envelope
// helpers and the request scoped context
type baseHandler struct {
	validator *validator.Validate
	timeout   time.Duration
}

func newBaseHandler(timeout time.Duration) baseHandler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return baseHandler{validator: validator.New(), timeout: timeout}
}

func (h baseHandler) ErrorResponse(c fiber.Ctx, status int, message, code string, details any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h baseHandler) SuccessResponse(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// validate runs struct validation and writes the 400 response on failure.
// It reports whether the handler may continue.
func (h baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{err.Error()})
		}
		validationErrors := make([]string, 0, len(ve))
		for _, e := range ve {
			validationErrors = append(validationErrors, getValidationErrorMessage(e))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return true, nil
}

// createRequestContext builds the context flows run with: request metadata
// for audit rows, the operator session and a deadline. Callers must call the
// returned cancel func.
func (h baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, h.timeout)

	session := businessflow.Session{}
	if token, ok := c.Locals(utils.LocalAccessToken).(string); ok {
		session.AccessToken = token
	}
	if claims, ok := c.Locals(utils.LocalOperator).(*services.OperatorClaims); ok {
		session.Claims = claims
	}
	return businessflow.WithSession(ctx, session), cancel
}

func requestID(c fiber.Ctx) string {
	if id, ok := c.Locals(utils.LocalRequestID).(string); ok && id != "" {
		return id
	}
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

// flowError maps a business flow error to the response envelope. Unknown
// errors are logged and answered with the fallback code.
func (h baseHandler) flowError(c fiber.Ctx, err error, action, fallbackCode string) error {
	status := fiber.StatusInternalServerError
	switch {
	case businessflow.IsUpstreamUnauthorized(err):
		status = fiber.StatusUnauthorized
	case businessflow.IsTagValidationFailed(err), businessflow.IsSegmentValidationFailed(err):
		status = fiber.StatusUnprocessableEntity
	case businessflow.IsTagNotFound(err), businessflow.IsDraftNotFound(err),
		businessflow.IsGroupNotFound(err), businessflow.IsRuleNotFound(err),
		businessflow.IsAuditEntryNotFound(err):
		status = fiber.StatusNotFound
	case businessflow.IsSegmentSetupBusy(err):
		status = fiber.StatusConflict
	case businessflow.IsDraftLimitExceeded(err), businessflow.IsUnknownDraftOp(err),
		businessflow.IsInvalidIDList(err), businessflow.IsInvalidTimeWindow(err):
		status = fiber.StatusBadRequest
	case businessflow.IsAuditNotAvailable(err), businessflow.IsCacheNotAvailable(err):
		status = fiber.StatusServiceUnavailable
	case businessflow.IsUpstreamFailed(err):
		status = fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}

	if be, ok := businessflow.AsBusinessError(err); ok {
		if status >= fiber.StatusInternalServerError {
			log.Printf("%s failed: %v", action, err)
		}
		return h.ErrorResponse(c, status, be.Message, be.Code, be.Details)
	}

	log.Printf("%s failed: %v", action, err)
	return h.ErrorResponse(c, status, action+" failed", fallbackCode, nil)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
