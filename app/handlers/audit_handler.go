package handlers

import (
	"strconv"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	businessflow "github.com/amirphl/segment-backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

type AuditHandlerInterface interface {
	ListAudit(c fiber.Ctx) error
	GetAudit(c fiber.Ctx) error
}

type AuditHandler struct {
	baseHandler
	flow businessflow.AuditFlow
}

func NewAuditHandler(flow businessflow.AuditFlow, timeout time.Duration) AuditHandlerInterface {
	return &AuditHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// ListAudit returns the operator action log, newest first
// @Summary List audit log
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param action query string false "Action filter"
// @Param targetId query int false "Tag or segment id"
// @Param failed query bool false "Only failed actions"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListAuditResponse}
// @Failure 503 {object} dto.APIResponse "No database configured"
// @Router /api/audit [get]
func (h *AuditHandler) ListAudit(c fiber.Ctx) error {
	var q dto.ListAuditQuery
	if err := c.Bind().Query(&q); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &q); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/audit")
	defer cancel()

	res, err := h.flow.List(ctx, &q)
	if err != nil {
		return h.flowError(c, err, "List audit log", "AUDIT_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Audit log retrieved", res)
}

// GetAudit returns one audit entry
// @Summary Get audit entry
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param id path int true "Audit entry id"
// @Success 200 {object} dto.APIResponse{data=dto.AuditLogItem}
// @Failure 404 {object} dto.APIResponse "Entry not found"
// @Failure 503 {object} dto.APIResponse "No database configured"
// @Router /api/audit/{id} [get]
func (h *AuditHandler) GetAudit(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Audit entry id must be a positive integer", "INVALID_AUDIT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/audit/:id")
	defer cancel()

	res, err := h.flow.Get(ctx, uint(id))
	if err != nil {
		return h.flowError(c, err, "Get audit entry", "AUDIT_GET_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Audit entry retrieved", res)
}
