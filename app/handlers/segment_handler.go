package handlers

import (
	"strconv"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	businessflow "github.com/amirphl/segment-backoffice/business_flow"
	"github.com/amirphl/segment-backoffice/segments"
	"github.com/gofiber/fiber/v3"
)

// SegmentHandlerInterface defines the segment configuration endpoints
type SegmentHandlerInterface interface {
	ListSegments(c fiber.Ctx) error
	SetupSegments(c fiber.Ctx) error
	Statistics(c fiber.Ctx) error
}

type SegmentHandler struct {
	baseHandler
	flow businessflow.SegmentFlow
}

func NewSegmentHandler(flow businessflow.SegmentFlow, timeout time.Duration) SegmentHandlerInterface {
	return &SegmentHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// ListSegments returns segments in display convention with the form prefill
// @Summary List segments
// @Tags Segments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListSegmentsResponse}
// @Failure 401 {object} dto.APIResponse "Token rejected"
// @Failure 502 {object} dto.APIResponse "Backend failure"
// @Router /api/segments [get]
func (h *SegmentHandler) ListSegments(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/segments")
	defer cancel()

	res, err := h.flow.ListSegments(ctx)
	if err != nil {
		return h.flowError(c, err, "List segments", "SEGMENT_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Segments retrieved", res)
}

// SetupSegments validates and forwards the segment configuration
// @Summary Setup segments
// @Tags Segments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body segments.SetupInput true "Segment configuration in display convention"
// @Success 200 {object} dto.APIResponse{data=dto.SetupSegmentsResponse}
// @Failure 400 {object} dto.APIResponse "Invalid body"
// @Failure 409 {object} dto.APIResponse "Another setup is running"
// @Failure 422 {object} dto.APIResponse "Segment validation failed"
// @Router /api/segments/setup [post]
func (h *SegmentHandler) SetupSegments(c fiber.Ctx) error {
	var in segments.SetupInput
	if err := c.Bind().JSON(&in); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/segments/setup")
	defer cancel()

	res, err := h.flow.SetupSegments(ctx, in)
	if err != nil {
		return h.flowError(c, err, "Setup segments", "SEGMENT_SETUP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Segments configured", res)
}

// Statistics returns bucketed segment statistics and the stacked view
// @Summary Segment statistics
// @Tags Segments
// @Produce json
// @Security BearerAuth
// @Param from query int false "Window start, epoch milliseconds"
// @Param to query int false "Window end, epoch milliseconds"
// @Param buckets query int false "Bucket count (1..16)"
// @Param metric query string false "usersCount | userTimeSeconds | avgUsers"
// @Success 200 {object} dto.APIResponse{data=dto.SegmentStatisticsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/segments/statistics [get]
func (h *SegmentHandler) Statistics(c fiber.Ctx) error {
	var q dto.SegmentStatisticsQuery
	var err error
	if q.FromMs, err = optionalInt64(c.Query("from")); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "from must be epoch milliseconds", "INVALID_REQUEST", nil)
	}
	if q.ToMs, err = optionalInt64(c.Query("to")); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "to must be epoch milliseconds", "INVALID_REQUEST", nil)
	}
	if raw := c.Query("buckets"); raw != "" {
		if q.Buckets, err = strconv.Atoi(raw); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "buckets must be an integer", "INVALID_REQUEST", nil)
		}
	}
	q.Metric = c.Query("metric")
	if ok, err := h.validate(c, &q); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/segments/statistics")
	defer cancel()

	res, err := h.flow.Statistics(ctx, &q)
	if err != nil {
		return h.flowError(c, err, "Segment statistics", "SEGMENT_STATISTICS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Segment statistics retrieved", res)
}

func optionalInt64(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
