package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/middleware"
)

func correlationApp(seen *string) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		*seen = middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestCorrelationIDReusesHeader(t *testing.T) {
	var seen string
	app := correlationApp(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderCorrelationID, "grade-run-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	require.Equal(t, "grade-run-42", resp.Header.Get(middleware.HeaderCorrelationID))
	require.Equal(t, "grade-run-42", seen)
}

func TestCorrelationIDFallsBackToRequestID(t *testing.T) {
	var seen string
	app := correlationApp(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-7")
	_, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-7", seen)
}

func TestCorrelationIDReplacesUnusableValues(t *testing.T) {
	var seen string
	app := correlationApp(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderCorrelationID, strings.Repeat("a", 200))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(seen)
	require.NoError(t, parseErr)
	require.Equal(t, seen, resp.Header.Get(middleware.HeaderCorrelationID))
}

func TestContextWithCorrelation(t *testing.T) {
	ctx := middleware.ContextWithCorrelation(context.Background(), " abc ")
	require.Equal(t, "abc", middleware.CorrelationIDFromContext(ctx))

	untouched := middleware.ContextWithCorrelation(ctx, "has space")
	require.Equal(t, "abc", middleware.CorrelationIDFromContext(untouched))
}
