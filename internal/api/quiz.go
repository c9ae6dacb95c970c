package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/domain"
)

// RegisterRoutes registers all REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.jwtSecret))

			r.Get("/me", h.Me)
			r.Get("/tests", h.ListTests)
			r.Get("/tests/{id}/questions", h.ListQuestions)
			r.Post("/results", h.SubmitResult)
			r.Get("/my/results", h.MyResults)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Post("/tests", h.CreateTest)
				r.Delete("/tests/{id}", h.DeleteTest)
				r.Post("/tests/{id}/questions", h.CreateQuestion)
				r.Delete("/questions/{id}", h.DeleteQuestion)
				r.Get("/tests/{id}/results", h.ListTestResults)
				r.Get("/users", h.ListUsers)
			})
		})
	})
}

// ListTests returns all tests, newest first.
func (h *Handler) ListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.repo.ListTests(r.Context())
	if err != nil {
		slog.Error("list tests failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load tests")
		return
	}
	if tests == nil {
		tests = []*domain.Test{}
	}
	JSON(w, http.StatusOK, tests)
}

type createTestRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CreateTest adds a new test. Admin only.
func (h *Handler) CreateTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		Error(w, http.StatusBadRequest, "title required")
		return
	}
	if req.DurationMinutes <= 0 {
		Error(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}

	claims := auth.ClaimsFromContext(r.Context())
	test := &domain.Test{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		CreatedBy:       claims.Subject,
		CreatedAt:       time.Now(),
	}
	if err := h.repo.CreateTest(r.Context(), test); err != nil {
		slog.Error("create test failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create test")
		return
	}

	JSON(w, http.StatusCreated, test)
}

// DeleteTest removes a test and its questions. Admin only.
func (h *Handler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.DeleteTest(r.Context(), id); err != nil {
		slog.Error("delete test failed", "test_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete test")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListQuestions returns a test's questions, oldest first.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "id")

	test, err := h.repo.GetTest(r.Context(), testID)
	if err != nil {
		slog.Error("load test failed", "test_id", testID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load test")
		return
	}
	if test == nil {
		Error(w, http.StatusNotFound, "test not found")
		return
	}

	questions, err := h.repo.ListQuestions(r.Context(), testID)
	if err != nil {
		slog.Error("list questions failed", "test_id", testID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load questions")
		return
	}
	if questions == nil {
		questions = []*domain.Question{}
	}
	JSON(w, http.StatusOK, questions)
}

type createQuestionRequest struct {
	QuestionText  string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
}

// CreateQuestion adds a question to a test. Admin only.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "id")

	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.QuestionText) == "" {
		Error(w, http.StatusBadRequest, "question_text required")
		return
	}
	switch req.CorrectAnswer {
	case "a", "b", "c", "d":
	default:
		Error(w, http.StatusBadRequest, "correct_answer must be one of a, b, c, d")
		return
	}

	test, err := h.repo.GetTest(r.Context(), testID)
	if err != nil {
		slog.Error("load test failed", "test_id", testID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load test")
		return
	}
	if test == nil {
		Error(w, http.StatusNotFound, "test not found")
		return
	}

	question := &domain.Question{
		ID:            uuid.NewString(),
		TestID:        testID,
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: req.CorrectAnswer,
		CreatedAt:     time.Now(),
	}
	if err := h.repo.CreateQuestion(r.Context(), question); err != nil {
		slog.Error("create question failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create question")
		return
	}

	JSON(w, http.StatusCreated, question)
}

// DeleteQuestion removes a question. Admin only.
func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.DeleteQuestion(r.Context(), id); err != nil {
		slog.Error("delete question failed", "question_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete question")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type submitResultRequest struct {
	TestID         string    `json:"test_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
}

// SubmitResult records a completed attempt for the authenticated account.
func (h *Handler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	var req submitResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalQuestions <= 0 || req.Score < 0 || req.Score > req.TotalQuestions {
		Error(w, http.StatusBadRequest, "invalid score")
		return
	}

	test, err := h.repo.GetTest(r.Context(), req.TestID)
	if err != nil {
		slog.Error("load test failed", "test_id", req.TestID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load test")
		return
	}
	if test == nil {
		Error(w, http.StatusNotFound, "test not found")
		return
	}

	claims := auth.ClaimsFromContext(r.Context())
	startedAt := req.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result := &domain.TestResult{
		ID:             uuid.NewString(),
		AccountID:      claims.Subject,
		TestID:         req.TestID,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
	}
	if err := h.repo.CreateTestResult(r.Context(), result); err != nil {
		slog.Error("create test result failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save result")
		return
	}

	JSON(w, http.StatusCreated, result)
}

// MyResults returns the authenticated account's results, newest first.
func (h *Handler) MyResults(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	results, err := h.repo.ListResultsByAccount(r.Context(), claims.Subject)
	if err != nil {
		slog.Error("list results failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if results == nil {
		results = []*domain.TestResult{}
	}
	JSON(w, http.StatusOK, results)
}

// ListTestResults returns all results for a test. Admin only.
func (h *Handler) ListTestResults(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "id")
	results, err := h.repo.ListResultsByTest(r.Context(), testID)
	if err != nil {
		slog.Error("list results failed", "test_id", testID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if results == nil {
		results = []*domain.TestResult{}
	}
	JSON(w, http.StatusOK, results)
}

// ListUsers returns an id-to-handle view of all accounts. Admin only; used by
// the results screen to label attempts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.ListAccounts(r.Context())
	if err != nil {
		slog.Error("list accounts failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load users")
		return
	}

	users := make([]map[string]interface{}, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, map[string]interface{}{
			"id":       a.ID,
			"username": a.Handle,
		})
	}
	JSON(w, http.StatusOK, users)
}
