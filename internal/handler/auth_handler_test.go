package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/handler"
	"github.com/noah-isme/exam-grader-api/internal/service"
)

type stubAuthService struct {
	response dto.AuthResponse
	user     dto.UserResponse
	err      error
	lastID   uint
}

func (s *stubAuthService) Register(context.Context, dto.RegisterRequest) (dto.AuthResponse, error) {
	return s.response, s.err
}

func (s *stubAuthService) Login(context.Context, dto.LoginRequest) (dto.AuthResponse, error) {
	return s.response, s.err
}

func (s *stubAuthService) Me(_ context.Context, userID uint) (dto.UserResponse, error) {
	s.lastID = userID
	return s.user, s.err
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAuthHandlerRegister(t *testing.T) {
	svc := &stubAuthService{response: dto.AuthResponse{
		Token: "signed-token",
		User:  dto.UserResponse{ID: 3, Email: "ada@uni.edu", Role: "faculty"},
	}}
	app := fiber.New()
	handler.NewAuthHandler(svc, zerolog.Nop()).Register(app.Group("/auth"))

	resp := postJSON(t, app, "/auth/register", dto.RegisterRequest{
		Email: "ada@uni.edu", Password: "secret1", FullName: "Ada", Role: "faculty",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	var data dto.AuthResponse
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.Equal(t, "signed-token", data.Token)
	require.Equal(t, uint(3), data.User.ID)
}

func TestAuthHandlerErrorMapping(t *testing.T) {
	validationErr := validator.New().Struct(dto.LoginRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", validationErr, fiber.StatusBadRequest},
		{"email taken", service.ErrEmailTaken, fiber.StatusConflict},
		{"bad credentials", service.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{"wrong portal", service.ErrRoleMismatch, fiber.StatusForbidden},
		{"unexpected", context.Canceled, fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			handler.NewAuthHandler(&stubAuthService{err: tc.err}, zerolog.Nop()).Register(app.Group("/auth"))

			resp := postJSON(t, app, "/auth/login", dto.LoginRequest{Email: "ada@uni.edu", Password: "x", Role: "faculty"})
			require.Equal(t, tc.status, resp.StatusCode)
			payload := decodeEnvelope(t, resp)
			require.False(t, payload.Success)
			if tc.name == "validation" {
				var details map[string]string
				require.NoError(t, json.Unmarshal(payload.Details, &details))
				require.Equal(t, "required", details["Email"])
			}
		})
	}
}

func TestAuthHandlerMe(t *testing.T) {
	svc := &stubAuthService{user: dto.UserResponse{ID: 7, FullName: "Dr. Ada"}}
	app := facultyApp(func(r fiber.Router) {
		handler.NewAuthHandler(svc, zerolog.Nop()).RegisterMe(r)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(7), svc.lastID)

	anonymous := fiber.New()
	handler.NewAuthHandler(svc, zerolog.Nop()).RegisterMe(anonymous)
	resp, err = anonymous.Test(httptest.NewRequest(http.MethodGet, "/me", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
