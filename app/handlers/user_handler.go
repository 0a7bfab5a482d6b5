package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	businessflow "github.com/amirphl/segment-backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UserHandlerInterface defines the users listing and timeline endpoints
type UserHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	Timeline(c fiber.Ctx) error
	ExportTimeline(c fiber.Ctx) error
}

type UserHandler struct {
	baseHandler
	flow businessflow.UserFlow
}

func NewUserHandler(flow businessflow.UserFlow, timeout time.Duration) UserHandlerInterface {
	return &UserHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// ListUsers returns one page of users with their segment and tags
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (1..500, default 20)"
// @Param offset query int false "Offset"
// @Param search query string false "Free text search"
// @Param segmentIds query string false "Comma separated segment ids, 0 means no segment"
// @Param tagIds query string false "Comma separated tag ids, 0 means no tag"
// @Success 200 {object} dto.APIResponse{data=dto.ListUsersResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/users [get]
func (h *UserHandler) ListUsers(c fiber.Ctx) error {
	var q dto.ListUsersQuery
	if err := c.Bind().Query(&q); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &q); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/users")
	defer cancel()

	res, err := h.flow.ListUsers(ctx, &q)
	if err != nil {
		return h.flowError(c, err, "List users", "USER_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved", res)
}

// Timeline reconstructs a user's tag and segment activity
// @Summary User timeline
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param from query int false "Window start, epoch milliseconds (default now - 2 days)"
// @Param to query int false "Window end, epoch milliseconds (default now)"
// @Success 200 {object} dto.APIResponse{data=dto.TimelineResponse}
// @Failure 400 {object} dto.APIResponse "Invalid window"
// @Router /api/users/{id}/timeline [get]
func (h *UserHandler) Timeline(c fiber.Ctx) error {
	q, ok, err := h.timelineQuery(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/users/:id/timeline")
	defer cancel()

	res, err := h.flow.Timeline(ctx, q)
	if err != nil {
		return h.flowError(c, err, "User timeline", "USER_TIMELINE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Timeline built", res)
}

// ExportTimeline sends the timeline as an xlsx workbook
// @Summary Export user timeline
// @Tags Users
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param from query int false "Window start, epoch milliseconds"
// @Param to query int false "Window end, epoch milliseconds"
// @Success 200 {file} file
// @Failure 400 {object} dto.APIResponse "Invalid window"
// @Router /api/users/{id}/timeline/export [get]
func (h *UserHandler) ExportTimeline(c fiber.Ctx) error {
	q, ok, err := h.timelineQuery(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/users/:id/timeline/export")
	defer cancel()

	res, err := h.flow.ExportTimeline(ctx, q)
	if err != nil {
		return h.flowError(c, err, "Export timeline", "TIMELINE_EXPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.FileName))
	return c.Status(fiber.StatusOK).Send(res.Content)
}

func (h *UserHandler) timelineQuery(c fiber.Ctx) (*dto.TimelineQuery, bool, error) {
	userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || userID <= 0 {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "User id must be a positive integer", "INVALID_USER_ID", nil)
	}
	q := &dto.TimelineQuery{UserID: userID}
	if q.FromMs, err = optionalInt64(c.Query("from")); err != nil {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "from must be epoch milliseconds", "INVALID_REQUEST", nil)
	}
	if q.ToMs, err = optionalInt64(c.Query("to")); err != nil {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "to must be epoch milliseconds", "INVALID_REQUEST", nil)
	}
	return q, true, nil
}
