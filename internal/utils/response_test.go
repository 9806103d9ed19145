package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/utils"
)

func TestOKCarriesPaginationMeta(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		students := []map[string]string{{"full_name": "Lin"}}
		meta := map[string]int{"page": 2, "total_pages": 5}
		return utils.OK(c, students, "", meta)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    []map[string]string `json:"data"`
		Meta    map[string]int      `json:"meta"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "Lin", payload.Data[0]["full_name"])
	require.Equal(t, 5, payload.Meta["total_pages"])
}

func TestSendSuccessWithStatusDefaults(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, 0, "", map[string]string{"id": "session-1"})
	})
	app.Put("/", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grading session opened", nil)
	})

	resp := performRequest(t, app, http.MethodPost, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var payload map[string]interface{}
	decode(t, resp, &payload)
	require.Equal(t, "success", payload["message"])

	resp = performRequest(t, app, http.MethodPut, "/")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	payload = nil
	decode(t, resp, &payload)
	require.Equal(t, "grading session opened", payload["message"])
	_, hasData := payload["data"]
	require.False(t, hasData)
}

func TestFailCarriesSessionDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		details := map[string]string{"state": "Failed"}
		return utils.Fail(c, fiber.StatusBadGateway, "We couldn't reach the grading service.", details)
	})
	app.Delete("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "")
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Details map[string]string      `json:"details"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, "Failed", payload.Details["state"])
	require.Nil(t, payload.Data)

	resp = performRequest(t, app, http.MethodDelete, "/")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var bare map[string]interface{}
	decode(t, resp, &bare)
	require.Equal(t, "error", bare["message"])
	_, hasDetails := bare["details"]
	require.False(t, hasDetails)
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
