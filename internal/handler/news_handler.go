package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/middleware"
	"github.com/noah-isme/exam-grader-api/internal/service"
	"github.com/noah-isme/exam-grader-api/internal/utils"
)

// NewsHandler serves EdTech headlines.
type NewsHandler struct {
	service service.NewsService
	logger  zerolog.Logger
}

// NewNewsHandler constructs a news handler.
func NewNewsHandler(service service.NewsService, logger zerolog.Logger) *NewsHandler {
	return &NewsHandler{
		service: service,
		logger:  logger.With().Str("component", "news_handler").Logger(),
	}
}

// Register wires the news route.
func (h *NewsHandler) Register(router fiber.Router) {
	router.Get("/news", middleware.WithAuth(h.latest, middleware.AuthOptions{RequireUser: true}))
}

func (h *NewsHandler) latest(c *fiber.Ctx) error {
	refresh := c.QueryBool("refresh", false)

	news, err := h.service.Latest(requestContext(c), refresh)
	if err != nil {
		if errors.Is(err, service.ErrNewsUnavailable) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "No linked news found. Try again.")
		}
		requestLogger(h.logger, c).Warn().Err(err).Msg("failed to fetch news")
		return utils.SendError(c, fiber.StatusBadGateway, "Unable to fetch news updates.")
	}

	return utils.SendSuccess(c, "news retrieved", news)
}
