package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	businessflow "github.com/amirphl/segment-backoffice/business_flow"
	"github.com/amirphl/segment-backoffice/rules"
	"github.com/gofiber/fiber/v3"
)

// TagHandlerInterface defines the tag authoring endpoints
type TagHandlerInterface interface {
	ListTags(c fiber.Ctx) error
	Template(c fiber.Ctx) error
	EditState(c fiber.Ctx) error
	Preview(c fiber.Ctx) error
	Validate(c fiber.Ctx) error
	CreateTag(c fiber.Ctx) error
	UpdateTag(c fiber.Ctx) error
	DeleteTag(c fiber.Ctx) error

	CreateDraft(c fiber.Ctx) error
	GetDraft(c fiber.Ctx) error
	ApplyDraftOp(c fiber.Ctx) error
	DeleteDraft(c fiber.Ctx) error
}

type TagHandler struct {
	baseHandler
	flow businessflow.TagFlow
}

func NewTagHandler(flow businessflow.TagFlow, timeout time.Duration) TagHandlerInterface {
	return &TagHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// ListTags returns the stored tags
// @Summary List tags
// @Description List tags stored in the backoffice backend together with the rule enums
// @Tags Tags
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active tags"
// @Success 200 {object} dto.APIResponse{data=dto.ListTagsResponse}
// @Failure 401 {object} dto.APIResponse "Token rejected"
// @Failure 502 {object} dto.APIResponse "Backend failure"
// @Router /api/tags [get]
func (h *TagHandler) ListTags(c fiber.Ctx) error {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))

	ctx, cancel := h.createRequestContext(c, "/api/tags")
	defer cancel()

	res, err := h.flow.ListTags(ctx, activeOnly)
	if err != nil {
		return h.flowError(c, err, "List tags", "TAG_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tags retrieved", res)
}

// Template returns the initial builder state of the create form
// @Summary Tag template
// @Tags Tags
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.TagStateResponse}
// @Router /api/tags/template [get]
func (h *TagHandler) Template(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/tags/template")
	defer cancel()

	return h.SuccessResponse(c, fiber.StatusOK, "Template created", h.flow.Template(ctx))
}

// EditState rehydrates a stored tag into builder shape
// @Summary Tag edit state
// @Tags Tags
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tag ID"
// @Success 200 {object} dto.APIResponse{data=dto.TagStateResponse}
// @Failure 400 {object} dto.APIResponse "Invalid id"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Router /api/tags/{id}/edit-state [get]
func (h *TagHandler) EditState(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Tag id must be a positive integer", "INVALID_TAG_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/:id/edit-state")
	defer cancel()

	res, err := h.flow.EditState(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Load tag", "TAG_LOAD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tag loaded", res)
}

// Preview builds the payload for a builder state without sending it
// @Summary Preview tag payload
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body rules.TagState true "Builder state"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewTagResponse}
// @Failure 400 {object} dto.APIResponse "Invalid body"
// @Router /api/tags/preview [post]
func (h *TagHandler) Preview(c fiber.Ctx) error {
	var state rules.TagState
	if err := c.Bind().JSON(&state); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/preview")
	defer cancel()

	return h.SuccessResponse(c, fiber.StatusOK, "Payload built", h.flow.Preview(ctx, state))
}

// Validate checks a payload against the rule taxonomy
// @Summary Validate tag payload
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body rules.Payload true "Tag payload"
// @Success 200 {object} dto.APIResponse{data=rules.Result}
// @Failure 400 {object} dto.APIResponse "Invalid body"
// @Router /api/tags/validate [post]
func (h *TagHandler) Validate(c fiber.Ctx) error {
	var payload *rules.Payload
	if err := c.Bind().JSON(&payload); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/validate")
	defer cancel()

	return h.SuccessResponse(c, fiber.StatusOK, "Payload validated", h.flow.Validate(ctx, payload))
}

// CreateTag builds, validates and forwards a new tag
// @Summary Create tag
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body rules.TagState true "Builder state"
// @Success 201 {object} dto.APIResponse{data=dto.TagWriteResponse}
// @Failure 400 {object} dto.APIResponse "Invalid body"
// @Failure 422 {object} dto.APIResponse "Tag validation failed"
// @Failure 502 {object} dto.APIResponse "Backend failure"
// @Router /api/tags/create [post]
func (h *TagHandler) CreateTag(c fiber.Ctx) error {
	var state rules.TagState
	if err := c.Bind().JSON(&state); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/create")
	defer cancel()

	res, err := h.flow.CreateTag(ctx, state)
	if err != nil {
		return h.flowError(c, err, "Create tag", "TAG_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Tag created", res)
}

// UpdateTag builds, validates and forwards a tag replacement
// @Summary Update tag
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateTagRequest true "Tag id and builder state"
// @Success 200 {object} dto.APIResponse{data=dto.TagWriteResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 422 {object} dto.APIResponse "Tag validation failed"
// @Router /api/tags/update [post]
func (h *TagHandler) UpdateTag(c fiber.Ctx) error {
	var req dto.UpdateTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/update")
	defer cancel()

	res, err := h.flow.UpdateTag(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Update tag", "TAG_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tag updated", res)
}

// DeleteTag removes a tag
// @Summary Delete tag
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeleteTagRequest true "Tag id"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteTagResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Router /api/tags/delete [post]
func (h *TagHandler) DeleteTag(c fiber.Ctx) error {
	var req dto.DeleteTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/delete")
	defer cancel()

	res, err := h.flow.DeleteTag(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Delete tag", "TAG_DELETE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tag deleted", res)
}

// CreateDraft starts a builder session
// @Summary Create tag draft
// @Tags Tag Drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateDraftRequest false "Optional tag to edit"
// @Success 201 {object} dto.APIResponse{data=dto.DraftResponse}
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Router /api/tags/drafts [post]
func (h *TagHandler) CreateDraft(c fiber.Ctx) error {
	var req dto.CreateDraftRequest
	if len(strings.TrimSpace(string(c.Body()))) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/drafts")
	defer cancel()

	res, err := h.flow.CreateDraft(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Create draft", "DRAFT_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Draft created", res)
}

// GetDraft returns a stored builder session
// @Summary Get tag draft
// @Tags Tag Drafts
// @Produce json
// @Security BearerAuth
// @Param key path string true "Draft key"
// @Success 200 {object} dto.APIResponse{data=dto.DraftResponse}
// @Failure 404 {object} dto.APIResponse "Draft not found"
// @Router /api/tags/drafts/{key} [get]
func (h *TagHandler) GetDraft(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/tags/drafts/:key")
	defer cancel()

	res, err := h.flow.GetDraft(ctx, c.Params("key"))
	if err != nil {
		return h.flowError(c, err, "Load draft", "DRAFT_LOAD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Draft retrieved", res)
}

// ApplyDraftOp runs one builder operation on a draft
// @Summary Apply draft operation
// @Tags Tag Drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Draft key"
// @Param request body dto.DraftOpRequest true "Operation"
// @Success 200 {object} dto.APIResponse{data=dto.DraftOpResponse}
// @Failure 400 {object} dto.APIResponse "Validation error or limit exceeded"
// @Failure 404 {object} dto.APIResponse "Draft, group or rule not found"
// @Router /api/tags/drafts/{key}/ops [post]
func (h *TagHandler) ApplyDraftOp(c fiber.Ctx) error {
	var req dto.DraftOpRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/tags/drafts/:key/ops")
	defer cancel()

	res, err := h.flow.ApplyDraftOp(ctx, c.Params("key"), &req)
	if err != nil {
		return h.flowError(c, err, "Apply draft operation", "DRAFT_OP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Draft updated", res)
}

// DeleteDraft discards a builder session
// @Summary Delete tag draft
// @Tags Tag Drafts
// @Produce json
// @Security BearerAuth
// @Param key path string true "Draft key"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Draft not found"
// @Router /api/tags/drafts/{key} [delete]
func (h *TagHandler) DeleteDraft(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/tags/drafts/:key")
	defer cancel()

	if err := h.flow.DeleteDraft(ctx, c.Params("key")); err != nil {
		return h.flowError(c, err, "Delete draft", "DRAFT_DELETE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Draft deleted", nil)
}
