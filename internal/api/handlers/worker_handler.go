package handlers

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/promoloop/publish-engine/configs"
	"github.com/promoloop/publish-engine/internal/engine"
)

type WorkerHandler struct {
	cfg config.Config
	e   *engine.Engine
}

func NewWorkerHandler(cfg config.Config, e *engine.Engine) *WorkerHandler {
	return &WorkerHandler{cfg: cfg, e: e}
}

type runRequest struct {
	PostID int64 `json:"post_id"`
}

// RunBatch is the external trigger. It authenticates with the process-wide
// worker secret and either runs a full batch tick or, when a post_id is
// supplied, re-invokes a single post.
func (h *WorkerHandler) RunBatch(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req runRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse request body",
			})
		}
	}

	if req.PostID != 0 {
		detail, err := h.e.PublishOne(c.Context(), req.PostID)
		if err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success":           detail.Status != "error",
			"already_published": detail.AlreadyPublished,
			"post_id":           detail.PostID,
			"status":            detail.Status,
			"error":             detail.Error,
			"platform_results":  detail.Results,
		})
	}

	summary, err := h.e.Run(c.Context())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(summary)
}

func (h *WorkerHandler) authorized(c *fiber.Ctx) bool {
	secret := BearerToken(c)
	if secret == "" || h.cfg.WorkerSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.WorkerSecret)) == 1
}
