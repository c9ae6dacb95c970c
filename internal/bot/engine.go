// Package bot implements the conversation engine behind the Telegram webhook.
//
// Every inbound event is handled in isolation: the engine reads the persisted
// chat session, decides a transition, rewrites the whole session row, and
// sends at most one reply. No state is cached between events.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/domain"
	"github.com/quizhub/quizhub/internal/store"
)

// Messenger is the outbound notification channel. Delivery is fire-and-forget:
// the engine logs failures and never retries or rolls back a committed
// transition.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// InboundEvent is one immutable inbound message from the transport.
type InboundEvent struct {
	UpdateID  int64
	ChatID    int64
	SenderID  int64
	FirstName string
	Username  string
	Text      string
}

// Flow errors the engine maps to user-facing replies.
var (
	// ErrInvalidCredentials covers a wrong handle or secret during login
	// and a wrong current secret during password change.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoLinkedAccount is an authenticated-only command issued while unlinked.
	ErrNoLinkedAccount = errors.New("no linked account")
)

// Engine carries a user through multi-step registration, login, and
// password-change flows keyed by chat identity.
type Engine struct {
	repo store.Repository
	gw   Messenger
}

// NewEngine creates a conversation engine over the given stores and gateway.
func NewEngine(repo store.Repository, gw Messenger) *Engine {
	return &Engine{repo: repo, gw: gw}
}

// outcome is one decided transition: the reply to send and the session row to
// persist. A nil session means no row is written (e.g. an authenticated-only
// command from an unseen identity).
type outcome struct {
	reply   string
	session *domain.ChatSession
}

// Handle processes one inbound event. The returned error is reserved for
// infrastructure failures (session unreadable); every conversational error is
// reported to the user in the reply instead.
func (e *Engine) Handle(ctx context.Context, ev InboundEvent) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}

	sess, err := e.repo.GetChatSession(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("load chat session %d: %w", ev.ChatID, err)
	}

	// Drop redelivered or out-of-order updates before any side effect.
	if sess != nil && ev.UpdateID > 0 && ev.UpdateID <= sess.LastUpdateID {
		slog.Debug("ignoring stale update",
			"chat_id", ev.ChatID,
			"update_id", ev.UpdateID,
			"last_update_id", sess.LastUpdateID)
		return nil
	}

	out := e.transition(ctx, sess, ev, text)

	if out.session != nil {
		out.session.ChatID = ev.ChatID
		out.session.LastUpdateID = max(ev.UpdateID, out.session.LastUpdateID)
		out.session.LastActivity = time.Now()

		if err := e.repo.UpsertChatSession(ctx, out.session); err != nil {
			// The decided transition is lost; tell the user to retry
			// rather than confirm a state that was never persisted.
			slog.Error("persist chat session failed", "chat_id", ev.ChatID, "error", err)
			out.reply = replyTryAgain
		}
	}

	e.send(ctx, ev.ChatID, out.reply)
	return nil
}

func (e *Engine) transition(ctx context.Context, sess *domain.ChatSession, ev InboundEvent, text string) outcome {
	switch text {
	case "/start":
		return e.handleStart(ctx, sess, ev)
	case "/login":
		return e.handleLogin(sess)
	case "/password":
		return e.handlePassword(sess)
	case "/profile":
		return e.handleProfile(ctx, sess)
	default:
		return e.handleText(ctx, sess, ev, text)
	}
}

// handleStart shows the account menu for linked sessions and begins
// registration for everyone else.
func (e *Engine) handleStart(ctx context.Context, sess *domain.ChatSession, ev InboundEvent) outcome {
	if sess != nil && sess.Linked() {
		account, err := e.repo.GetAccountByID(ctx, sess.AccountID)
		if err != nil {
			slog.Error("load account failed", "account_id", sess.AccountID, "error", err)
			return outcome{reply: replyTryAgain, session: sess}
		}
		if account != nil {
			return outcome{reply: replyAccountMenu(ev.FirstName, account.Handle), session: sess}
		}
		// Linked account vanished; fall through to re-registration.
	}

	next := freshSession(sess)
	next.State = domain.StateAwaitingRegistration
	next.PendingHandle = ""
	return outcome{reply: replyRegisterPrompt, session: next}
}

// handleLogin starts the login flow from any state.
func (e *Engine) handleLogin(sess *domain.ChatSession) outcome {
	next := freshSession(sess)
	next.State = domain.StateAwaitingLoginHandle
	next.PendingHandle = ""
	return outcome{reply: replyHandlePrompt, session: next}
}

// handlePassword starts the password-change flow for linked sessions only.
func (e *Engine) handlePassword(sess *domain.ChatSession) outcome {
	if sess == nil || !sess.Linked() {
		return outcome{reply: replyFor(ErrNoLinkedAccount), session: sess}
	}

	sess.State = domain.StateAwaitingOldSecret
	sess.PendingHandle = ""
	return outcome{reply: replyOldSecret, session: sess}
}

// handleProfile replies with account details for linked sessions. Unlinked
// sessions never touch the identity store.
func (e *Engine) handleProfile(ctx context.Context, sess *domain.ChatSession) outcome {
	if sess == nil || !sess.Linked() {
		return outcome{reply: replyFor(ErrNoLinkedAccount), session: sess}
	}

	account, err := e.repo.GetAccountByID(ctx, sess.AccountID)
	if err != nil || account == nil {
		slog.Error("load account failed", "account_id", sess.AccountID, "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	return outcome{
		reply:   replyProfile(account.Handle, account.CreatedAt.Format("2006-01-02")),
		session: sess,
	}
}

// handleText interprets free text against the current conversation state.
func (e *Engine) handleText(ctx context.Context, sess *domain.ChatSession, ev InboundEvent, text string) outcome {
	if sess == nil {
		// An unseen identity gets the same treatment as /start.
		next := &domain.ChatSession{State: domain.StateAwaitingRegistration}
		return outcome{reply: replyRegisterPrompt, session: next}
	}

	switch sess.State {
	case domain.StateAwaitingRegistration:
		return e.register(ctx, sess, ev, text)
	case domain.StateAwaitingLoginHandle:
		sess.PendingHandle = text
		sess.State = domain.StateAwaitingLoginSecret
		return outcome{reply: replySecretPrompt, session: sess}
	case domain.StateAwaitingLoginSecret:
		return e.verifyLogin(ctx, sess, text)
	case domain.StateAwaitingOldSecret:
		return e.verifyOldSecret(ctx, sess, text)
	case domain.StateAwaitingNewSecret:
		return e.changeSecret(ctx, sess, text)
	default:
		return outcome{reply: replyHelpMenu, session: sess}
	}
}

// register creates an account for the entered handle with a generated secret.
// On any failure the session stays in the registration state so the user can
// submit another handle.
func (e *Engine) register(ctx context.Context, sess *domain.ChatSession, ev InboundEvent, handle string) outcome {
	secret, err := auth.GenerateSecret()
	if err != nil {
		slog.Error("generate secret failed", "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	hash, err := auth.HashSecret(secret)
	if err != nil {
		slog.Error("hash secret failed", "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	account := &domain.Account{
		ID:         uuid.NewString(),
		Handle:     handle,
		SecretHash: hash,
		CreatedAt:  time.Now(),
	}
	if err := e.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicateHandle) {
			return outcome{reply: replyFor(err), session: sess}
		}
		slog.Error("create account failed", "handle", handle, "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	sess.AccountID = account.ID
	sess.State = domain.StateIdle
	sess.PendingHandle = ""
	return outcome{reply: replyRegistered(ev.FirstName, handle, secret), session: sess}
}

// verifyLogin checks the pending handle and the entered secret. Success links
// the account; failure drops to idle with the previous link untouched.
func (e *Engine) verifyLogin(ctx context.Context, sess *domain.ChatSession, secret string) outcome {
	pending := sess.PendingHandle
	sess.State = domain.StateIdle
	sess.PendingHandle = ""

	account, err := e.repo.GetAccountByHandle(ctx, pending)
	if err != nil {
		// Lookup is idempotent, so re-prompt in place instead of
		// discarding the flow.
		slog.Error("load account failed", "handle", pending, "error", err)
		sess.State = domain.StateAwaitingLoginSecret
		sess.PendingHandle = pending
		return outcome{reply: replyTryAgain, session: sess}
	}

	if account == nil || !auth.CompareSecret(account.SecretHash, secret) {
		return outcome{reply: replyFor(ErrInvalidCredentials), session: sess}
	}

	sess.AccountID = account.ID
	return outcome{reply: replyLoggedIn, session: sess}
}

// verifyOldSecret gates the password change on the current secret.
func (e *Engine) verifyOldSecret(ctx context.Context, sess *domain.ChatSession, secret string) outcome {
	account, err := e.repo.GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		slog.Error("load account failed", "account_id", sess.AccountID, "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	if account == nil || !auth.CompareSecret(account.SecretHash, secret) {
		sess.State = domain.StateIdle
		return outcome{reply: replyBadOldSecret, session: sess}
	}

	sess.State = domain.StateAwaitingNewSecret
	return outcome{reply: replyNewSecret, session: sess}
}

// changeSecret overwrites the account secret with the entered value. The new
// secret is never echoed back.
func (e *Engine) changeSecret(ctx context.Context, sess *domain.ChatSession, secret string) outcome {
	hash, err := auth.HashSecret(secret)
	if err != nil {
		slog.Error("hash secret failed", "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	if err := e.repo.UpdateAccountSecret(ctx, sess.AccountID, hash); err != nil {
		slog.Error("update secret failed", "account_id", sess.AccountID, "error", err)
		return outcome{reply: replyTryAgain, session: sess}
	}

	sess.State = domain.StateIdle
	return outcome{reply: replySecretChanged, session: sess}
}

func (e *Engine) send(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if err := e.gw.SendMessage(ctx, chatID, text); err != nil {
		slog.Warn("send reply failed", "chat_id", chatID, "error", err)
	}
}

func replyFor(err error) string {
	switch {
	case errors.Is(err, store.ErrDuplicateHandle):
		return replyHandleTaken
	case errors.Is(err, ErrInvalidCredentials):
		return replyBadCredentials
	case errors.Is(err, ErrNoLinkedAccount):
		return replyMustLogin
	default:
		return replyTryAgain
	}
}

// freshSession keeps the existing row (link and dedup watermark included) or
// starts a new one for an unseen identity.
func freshSession(sess *domain.ChatSession) *domain.ChatSession {
	if sess != nil {
		return sess
	}
	return &domain.ChatSession{}
}
