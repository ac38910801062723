package stories

import (
	"errors"
	"strconv"

	"datakit/core/logger"
	"datakit/core/reconcile"
	"datakit/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxListLimit = 500

// Handler handles HTTP requests for stories.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the story routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/stories")
	group.Get("/", h.HandleList)
	group.Get("/status", h.HandleStatus)
	group.Post("/refresh", h.HandleRefresh)
	group.Post("/snapshot", h.HandleExportSnapshot)
	group.Get("/:id", h.HandleGet)
	group.Post("/:id/refresh", h.HandleRefreshOne)
}

// ListResponse is the body of GET /stories.
type ListResponse struct {
	Count   int      `json:"count"`
	Stories []*Story `json:"stories"`
}

// StatusResponse is the body of GET /stories/status.
type StatusResponse struct {
	Stories    int64          `json:"stories"`
	Source     string         `json:"source"`
	Mode       reconcile.Mode `json:"mode"`
	LastReport *Report        `json:"last_report"`
}

// RefreshOneResponse is the body of POST /stories/{id}/refresh.
type RefreshOneResponse struct {
	ID      int64                `json:"id"`
	Action  reconcile.ActionType `json:"action"`
	Message string               `json:"message,omitempty"`
}

// HandleList returns mirrored stories, newest first.
// @Summary List Stories
// @Description List mirrored stories ordered by submission time, newest first.
// @Tags stories
// @Produce json
// @Param limit query int false "Maximum number of stories (default 40)"
// @Success 200 {object} ListResponse "Stories"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /stories [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	limit := 40
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxListLimit {
			return badRequest(c, "limit must be an integer between 0 and 500")
		}
		limit = n
	}

	list, err := h.service.List(c.UserContext(), limit)
	if err != nil {
		return h.internalError(c, "Story list failed", err)
	}
	return c.JSON(ListResponse{Count: len(list), Stories: list})
}

// HandleGet returns one mirrored story.
// @Summary Get Story
// @Description Get one mirrored story by its Hacker News id.
// @Tags stories
// @Produce json
// @Param id path int true "Story id"
// @Success 200 {object} Story "Story"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /stories/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	id, err := storyID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	story, err := h.service.Get(c.UserContext(), id)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return h.internalError(c, "Story lookup failed", err)
	}
	return c.JSON(story)
}

// HandleStatus returns the mirror size and the last refresh report.
// @Summary Mirror Status
// @Description Number of mirrored stories and the last successful refresh report.
// @Tags stories
// @Produce json
// @Success 200 {object} StatusResponse "Status"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /stories/status [get]
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	n, err := h.service.Count(c.UserContext())
	if err != nil {
		return h.internalError(c, "Story count failed", err)
	}
	return c.JSON(StatusResponse{
		Stories:    n,
		Source:     h.service.source.Name(),
		Mode:       h.service.Mode(),
		LastReport: h.service.LastReport(),
	})
}

// HandleRefresh reconciles the mirror against the source.
// @Summary Refresh Stories
// @Description Fetch the source and reconcile the mirror. Set dry_run to only compute the changes.
// @Tags stories
// @Produce json
// @Param dry_run query bool false "Compute changes without writing"
// @Param mode query string false "transactional or streaming"
// @Param force query bool false "Ignore the minimum refresh interval"
// @Success 200 {object} Report "Refresh report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 500 {object} Report "Failed refresh report"
// @Router /stories/refresh [post]
func (h *Handler) HandleRefresh(c *fiber.Ctx) error {
	mode := h.service.Mode()
	if raw := c.Query("mode"); raw != "" {
		m, err := reconcile.ParseMode(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		mode = m
	}

	opts := RefreshOptions{
		Options: reconcile.Options{Mode: mode, DryRun: utils.ToBool(c.Query("dry_run"))},
		Force:   utils.ToBool(c.Query("force")),
	}

	report, err := h.service.Refresh(c.UserContext(), opts)
	if err != nil && report != nil {
		logger.WithRayID(h.service.logger, c).Error("Story refresh failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(report)
	}
	if err != nil {
		return h.internalError(c, "Story refresh failed", err)
	}
	return c.JSON(report)
}

// HandleRefreshOne refreshes a single story from the source.
// @Summary Refresh Story
// @Description Fetch one story from the source and insert or update it in the mirror.
// @Tags stories
// @Produce json
// @Param id path int true "Story id"
// @Success 200 {object} RefreshOneResponse "Result"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /stories/{id}/refresh [post]
func (h *Handler) HandleRefreshOne(c *fiber.Ctx) error {
	id, err := storyID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.service.RefreshOne(c.UserContext(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrUnsupported):
		return badRequest(c, err.Error())
	case err != nil:
		return h.internalError(c, "Story refresh failed", err)
	}

	resp := RefreshOneResponse{ID: id}
	if len(res.Outcomes) > 0 {
		out := res.Outcomes[0]
		resp.Action = out.Op
		resp.Message = out.Message()
	}
	return c.JSON(resp)
}

// HandleExportSnapshot writes the mirror to object storage.
// @Summary Export Snapshot
// @Description Write every mirrored story to the snapshot object in storage.
// @Tags stories
// @Produce json
// @Success 200 {object} Snapshot "Snapshot"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /stories/snapshot [post]
func (h *Handler) HandleExportSnapshot(c *fiber.Ctx) error {
	snap, err := h.service.ExportSnapshot(c.UserContext())
	if errors.Is(err, ErrStorageDisabled) {
		return badRequest(c, err.Error())
	}
	if err != nil {
		return h.internalError(c, "Snapshot export failed", err)
	}
	return c.JSON(snap)
}

func storyID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, errors.New("story id must be an integer")
	}
	return id, nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (h *Handler) internalError(c *fiber.Ctx, msg string, err error) error {
	logger.WithRayID(h.service.logger, c).Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
