package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quizhub/quizhub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-signing-secret")

func testAccount(admin bool) *domain.Account {
	return &domain.Account{
		ID:      "acc-1",
		Handle:  "alice",
		IsAdmin: admin,
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, testAccount(true), time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "alice", claims.Handle)
	assert.True(t, claims.Admin)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, testAccount(false), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken([]byte("other-secret"), token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := IssueToken(testSecret, testAccount(false), -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, token)
	assert.Error(t, err)
}

func TestMiddlewareInjectsClaims(t *testing.T) {
	token, err := IssueToken(testSecret, testAccount(false), time.Hour)
	require.NoError(t, err)

	var got *Claims
	handler := Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Handle)
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	handler := Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer not.a.token",
		"scheme":  "Basic abc",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	protected := Middleware(testSecret)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	adminToken, err := IssueToken(testSecret, testAccount(true), time.Hour)
	require.NoError(t, err)
	userToken, err := IssueToken(testSecret, testAccount(false), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
