package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/service"
	"github.com/noah-isme/exam-grader-api/internal/utils"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// GradingHandler drives grading sessions over HTTP and streams their
// snapshots over a websocket.
type GradingHandler struct {
	service        service.GradingSessionService
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewGradingHandler constructs a grading handler.
func NewGradingHandler(service service.GradingSessionService, maxUploadBytes int64, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register binds session routes under the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id/image", h.selectImage)
	router.Delete("/:id/image", h.clearImage)
	router.Post("/:id/retry", h.retry)
	router.Post("/:id/submit", h.submit)
	router.Delete("/:id", h.close)
	router.Get("/:id/events", h.upgrade, websocket.New(h.stream))
}

func (h *GradingHandler) upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("request_ctx", requestContext(c))
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *GradingHandler) create(c *fiber.Ctx) error {
	var payload dto.GradingSessionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err, nil)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grading session opened", session)
}

func (h *GradingHandler) get(c *fiber.Ctx) error {
	session, err := h.service.Get(requestContext(c), actorFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err, nil)
	}
	return utils.SendSuccess(c, "grading session retrieved", session)
}

func (h *GradingHandler) selectImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image is required")
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "image exceeds the upload limit")
	}

	reader, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, grading.MessageEncoding)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, grading.MessageEncoding)
	}

	session, err := h.service.SelectImage(requestContext(c), actorFromContext(c), c.Params("id"), file.Filename, data)
	if err != nil {
		return h.handleError(c, err, &session)
	}
	return utils.SendSuccess(c, "image selected", session)
}

func (h *GradingHandler) clearImage(c *fiber.Ctx) error {
	session, err := h.service.ClearImage(requestContext(c), actorFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err, &session)
	}
	return utils.SendSuccess(c, "image cleared", session)
}

func (h *GradingHandler) retry(c *fiber.Ctx) error {
	session, err := h.service.Retry(requestContext(c), actorFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err, &session)
	}
	return utils.SendSuccess(c, "ready to grade again", session)
}

func (h *GradingHandler) submit(c *fiber.Ctx) error {
	session, err := h.service.Submit(requestContext(c), actorFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err, &session)
	}
	return utils.SendSuccess(c, "grading complete", session)
}

func (h *GradingHandler) close(c *fiber.Ctx) error {
	if err := h.service.Close(requestContext(c), actorFromContext(c), c.Params("id")); err != nil {
		return h.handleError(c, err, nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GradingHandler) stream(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	userID, _ := conn.Locals("user_id").(uint)
	actor := service.Actor{ID: userID}
	sessionID := conn.Params("id")

	updates, unsubscribe, err := h.service.Subscribe(ctx, actor, sessionID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		_ = conn.Close()
		return
	}
	defer unsubscribe()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug().Str("session_id", sessionID).Uint("user_id", userID).Msg("grading stream connected")
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(dto.NewGradingSessionResponse(sessionID, snapshot)); err != nil {
				h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("grading stream write failed")
				return
			}
		}
	}
}

// handleError maps grading failures onto statuses. The session snapshot, when
// present, is returned as details so clients can render the failed state.
func (h *GradingHandler) handleError(c *fiber.Ctx, err error, session *dto.GradingSessionResponse) error {
	var details interface{}
	if session != nil && session.ID != "" {
		details = session
	}

	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrGradingSessionNotFound),
		errors.Is(err, service.ErrExamNotFound),
		errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	}

	status := gradingStatus(err)
	if status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway {
		requestLogger(h.logger, c).Error().Err(err).Msg("grading request failed")
	}
	return utils.Fail(c, status, grading.UserMessage(err), details)
}

func gradingStatus(err error) int {
	var (
		encoding     *grading.EncodingError
		precondition *grading.PreconditionError
		malformed    *grading.MalformedResultError
		empty        *ai.EmptyResponseError
		transport    *ai.TransportError
	)
	switch {
	case errors.As(err, &encoding):
		return fiber.StatusBadRequest
	case errors.As(err, &precondition), errors.As(err, &malformed):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &empty), errors.As(err, &transport):
		return fiber.StatusBadGateway
	case errors.Is(err, grading.ErrAttemptInFlight),
		errors.Is(err, grading.ErrInvalidTransition),
		errors.Is(err, grading.ErrAttemptDiscarded):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
