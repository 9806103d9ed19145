package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/exam-grader-api/internal/config"
	"github.com/noah-isme/exam-grader-api/internal/handler"
	"github.com/noah-isme/exam-grader-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	CourseHandler    *handler.CourseHandler
	ExamHandler      *handler.ExamHandler
	StudentHandler   *handler.StudentHandler
	DashboardHandler *handler.DashboardHandler
	GradingHandler   *handler.GradingHandler
	NewsHandler      *handler.NewsHandler
	HealthProbes     []handler.HealthProbe
	JWTMiddleware    fiber.Handler
	AuthLimiter      fiber.Handler
	GradingLimiter   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	jwtMiddleware := orNext(deps.JWTMiddleware)
	authLimiter := orNext(deps.AuthLimiter)
	gradingLimiter := orNext(deps.GradingLimiter)

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth", authLimiter))
	}

	authenticated := api.Group("", jwtMiddleware)
	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterMe(authenticated)
	}
	if deps.NewsHandler != nil {
		deps.NewsHandler.Register(authenticated)
	}

	faculty := authenticated.Group("", middleware.RequireRole(middleware.AuthRoleFaculty))

	if deps.CourseHandler != nil {
		courses := faculty.Group("/courses")
		deps.CourseHandler.Register(courses)
		if deps.ExamHandler != nil {
			deps.ExamHandler.Register(courses)
		}
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(faculty.Group("/students"))
	}

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(faculty)
	}

	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(faculty.Group("/grading/sessions", gradingLimiter))
	}
}

func orNext(handler fiber.Handler) fiber.Handler {
	if handler == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return handler
}
