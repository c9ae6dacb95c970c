package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/domain"
	"github.com/quizhub/quizhub/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account from a handle and password.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "username and password required")
		return
	}

	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		slog.Error("hash secret failed", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	account := &domain.Account{
		ID:         uuid.NewString(),
		Handle:     req.Username,
		SecretHash: hash,
		CreatedAt:  time.Now(),
	}
	if err := h.repo.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, store.ErrDuplicateHandle) {
			Error(w, http.StatusConflict, "user already exists")
			return
		}
		slog.Error("create account failed", "handle", req.Username, "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    account,
	})
}

// Login verifies credentials and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.repo.GetAccountByHandle(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		slog.Error("load account failed", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if account == nil || !auth.CompareSecret(account.SecretHash, req.Password) {
		Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := auth.IssueToken(h.jwtSecret, account, h.tokenTTL)
	if err != nil {
		slog.Error("issue token failed", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  account,
	})
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.repo.GetAccountByID(r.Context(), claims.Subject)
	if err != nil || account == nil {
		Error(w, http.StatusUnauthorized, "account not found")
		return
	}

	JSON(w, http.StatusOK, account)
}
