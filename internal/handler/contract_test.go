package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/handler"
)

func compileContract(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func validateBody(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestGradingSessionContract(t *testing.T) {
	schema := compileContract(t, "grading_session.schema.json")

	snapshot := grading.Snapshot{
		ExamID:        "exam-1",
		CourseID:      "course-1",
		ExamTitle:     "Midterm",
		State:         grading.StateSucceeded,
		Attempt:       2,
		ImageName:     "paper.png",
		ImageMimeType: "image/png",
		ImageSize:     2048,
		Result:        &grading.Result{Score: 7.5, MaxScore: 10, Feedback: "Solid", Mistakes: []string{"Sign error in Q2"}},
		UpdatedAt:     time.Now().UTC(),
	}

	for _, session := range []dto.GradingSessionResponse{
		dto.NewGradingSessionResponse("session-1", snapshot),
		dto.NewGradingSessionResponse("session-2", grading.Snapshot{State: grading.StateIdle, UpdatedAt: time.Now().UTC()}),
	} {
		svc := &stubGradingService{session: session}
		app := facultyApp(func(r fiber.Router) {
			handler.NewGradingHandler(svc, 0, zerolog.Nop()).Register(r.Group("/grading/sessions"))
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/grading/sessions/"+session.ID, nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		validateBody(t, schema, resp)
	}
}

func TestDashboardContract(t *testing.T) {
	schema := compileContract(t, "dashboard.schema.json")

	now := time.Now().UTC()
	svc := &stubDashboardService{response: dto.DashboardResponse{
		Summary: dto.DashboardSummary{Courses: 2, Exams: 3, GradedExams: 1, TotalStudents: 90, GradedRate: 33.3},
		RecentGraded: []dto.GradedExamEntry{
			{ExamID: "exam-1", CourseID: "course-1", CourseCode: "CS201", Title: "Midterm", Score: 8, MaxScore: 10, GradedAt: now},
		},
		GeneratedAt: now,
	}}
	app := facultyApp(func(r fiber.Router) {
		handler.NewDashboardHandler(svc, zerolog.Nop()).Register(r)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}
