package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/service"
	"github.com/noah-isme/exam-grader-api/internal/utils"
)

var errModelAnswerTooLarge = errors.New("model answer exceeds the upload limit")

// ExamHandler serves exams nested under a course.
type ExamHandler struct {
	service        service.ExamService
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewExamHandler constructs an exam handler. maxUploadBytes caps the model
// answer file; zero disables the check.
func NewExamHandler(service service.ExamService, maxUploadBytes int64, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register wires exam routes below /courses.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Get("/:courseId/exams", h.list)
	router.Post("/:courseId/exams", h.create)
	router.Get("/:courseId/exams/:examId", h.get)
	router.Put("/:courseId/exams/:examId/model-answer", h.setModelAnswer)
}

func (h *ExamHandler) list(c *fiber.Ctx) error {
	exams, err := h.service.List(requestContext(c), userIDFromContext(c), c.Params("courseId"))
	if err != nil {
		return h.handleError(c, err, "failed to list exams")
	}
	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	exam, err := h.service.Get(requestContext(c), userIDFromContext(c), c.Params("courseId"), c.Params("examId"))
	if err != nil {
		return h.handleError(c, err, "failed to fetch exam")
	}
	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamHandler) create(c *fiber.Ctx) error {
	var payload dto.ExamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	upload, release, err := h.modelAnswerUpload(c)
	if err != nil {
		return h.handleError(c, err, "failed to read model answer")
	}
	defer release()

	exam, err := h.service.Create(requestContext(c), userIDFromContext(c), c.Params("courseId"), payload, upload)
	if err != nil {
		return h.handleError(c, err, "failed to create exam")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam created", exam)
}

func (h *ExamHandler) setModelAnswer(c *fiber.Ctx) error {
	var payload dto.ExamModelAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	upload, release, err := h.modelAnswerUpload(c)
	if err != nil {
		return h.handleError(c, err, "failed to read model answer")
	}
	defer release()

	exam, err := h.service.SetModelAnswer(requestContext(c), userIDFromContext(c), c.Params("courseId"), c.Params("examId"), payload, upload)
	if err != nil {
		return h.handleError(c, err, "failed to update model answer")
	}
	return utils.SendSuccess(c, "model answer updated", exam)
}

// modelAnswerUpload opens the optional multipart model_answer file. The
// returned release func is always safe to call.
func (h *ExamHandler) modelAnswerUpload(c *fiber.Ctx) (*service.ModelAnswerUpload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, noop, nil
	}
	file, err := c.FormFile("model_answer")
	if err != nil {
		return nil, noop, nil
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		return nil, noop, errModelAnswerTooLarge
	}
	reader, err := file.Open()
	if err != nil {
		return nil, noop, &grading.EncodingError{Name: file.Filename, Err: err}
	}
	return &service.ModelAnswerUpload{Name: file.Filename, Reader: reader}, func() { _ = reader.Close() }, nil
}

func (h *ExamHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	var encodingErr *grading.EncodingError
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, errModelAnswerTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, errModelAnswerTooLarge.Error())
	case errors.Is(err, service.ErrModelAnswerNotPDF):
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrModelAnswerNotPDF.Error())
	case errors.Is(err, service.ErrModelAnswerRequired):
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrModelAnswerRequired.Error())
	case errors.As(err, &encodingErr):
		return utils.SendError(c, fiber.StatusBadRequest, grading.MessageEncoding)
	case errors.Is(err, service.ErrCourseNotFound), errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
