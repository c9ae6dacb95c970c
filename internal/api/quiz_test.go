package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/quizhub/quizhub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTest(t *testing.T, srvURL, token string) *domain.Test {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, srvURL+"/api/tests", token, map[string]interface{}{
		"title":            "Go basics",
		"description":      "Slices and maps",
		"duration_minutes": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var test domain.Test
	require.NoError(t, json.Unmarshal(raw, &test))
	return &test
}

func TestTestCRUDRequiresAdmin(t *testing.T) {
	srv, repo := newTestServer(t)
	userToken := registerAndLogin(t, srv, "bob", "pw")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/tests", userToken, map[string]interface{}{
		"title": "nope", "duration_minutes": 10,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := adminToken(t, repo, "bob")
	test := createTest(t, srv.URL, admin)
	assert.Equal(t, "Go basics", test.Title)

	// Everyone authenticated can list.
	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/tests", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var tests []*domain.Test
	require.NoError(t, json.Unmarshal(raw, &tests))
	assert.Len(t, tests, 1)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/tests/"+test.ID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/tests/"+test.ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuestionLifecycle(t *testing.T) {
	srv, repo := newTestServer(t)
	registerAndLogin(t, srv, "bob", "pw")
	admin := adminToken(t, repo, "bob")
	test := createTest(t, srv.URL, admin)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/tests/"+test.ID+"/questions", admin, map[string]string{
		"question_text":  "What is the zero value of a slice?",
		"option_a":       "nil",
		"option_b":       "empty slice",
		"option_c":       "panic",
		"option_d":       "undefined",
		"correct_answer": "a",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var question domain.Question
	require.NoError(t, json.Unmarshal(raw, &question))

	// Invalid answer key is rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/tests/"+test.ID+"/questions", admin, map[string]string{
		"question_text": "Bad", "correct_answer": "e",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown test 404s.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/tests/ghost/questions", admin, map[string]string{
		"question_text": "Q", "correct_answer": "a",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/tests/"+test.ID+"/questions", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var questions []*domain.Question
	require.NoError(t, json.Unmarshal(raw, &questions))
	assert.Len(t, questions, 1)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/questions/"+question.ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmitAndListResults(t *testing.T) {
	srv, repo := newTestServer(t)
	userToken := registerAndLogin(t, srv, "bob", "pw")
	admin := adminToken(t, repo, "bob")
	test := createTest(t, srv.URL, admin)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/results", userToken, map[string]interface{}{
		"test_id":         test.ID,
		"score":           8,
		"total_questions": 10,
		"started_at":      time.Now().Add(-15 * time.Minute),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result domain.TestResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 8, result.Score)

	// Out-of-range score is rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/results", userToken, map[string]interface{}{
		"test_id": test.ID, "score": 11, "total_questions": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/my/results", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []*domain.TestResult
	require.NoError(t, json.Unmarshal(raw, &mine))
	assert.Len(t, mine, 1)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/tests/"+test.ID+"/results", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var all []*domain.TestResult
	require.NoError(t, json.Unmarshal(raw, &all))
	assert.Len(t, all, 1)
}

func TestListUsersAdminOnly(t *testing.T) {
	srv, repo := newTestServer(t)
	userToken := registerAndLogin(t, srv, "bob", "pw")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := adminToken(t, repo, "bob")
	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/users", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0]["username"])
	_, leaked := users[0]["secret_hash"]
	assert.False(t, leaked)
}
