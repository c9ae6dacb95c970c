// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/quizhub/quizhub/internal/domain"
)

// ErrDuplicateHandle is returned when an account handle is already taken.
var ErrDuplicateHandle = errors.New("handle already exists")

// Repository defines the interface for persisting accounts, chat sessions,
// and quiz content.
type Repository interface {
	// GetAccountByHandle retrieves an account by its unique handle.
	// Returns (nil, nil) when no such account exists.
	GetAccountByHandle(ctx context.Context, handle string) (*domain.Account, error)

	// GetAccountByID retrieves an account by its ID.
	// Returns (nil, nil) when no such account exists.
	GetAccountByID(ctx context.Context, id string) (*domain.Account, error)

	// CreateAccount inserts a new account. Returns ErrDuplicateHandle when
	// the handle is already taken.
	CreateAccount(ctx context.Context, account *domain.Account) error

	// UpdateAccountSecret overwrites the stored secret hash for an account.
	UpdateAccountSecret(ctx context.Context, accountID, secretHash string) error

	// ListAccounts retrieves all accounts, newest first.
	ListAccounts(ctx context.Context) ([]*domain.Account, error)

	// GetChatSession retrieves the session for a chat identity.
	// Returns (nil, nil) when the identity has never been seen.
	GetChatSession(ctx context.Context, chatID int64) (*domain.ChatSession, error)

	// UpsertChatSession creates or overwrites the session row for a chat
	// identity as a single atomic write (last-writer-wins).
	UpsertChatSession(ctx context.Context, session *domain.ChatSession) error

	// ListTests retrieves all tests, newest first.
	ListTests(ctx context.Context) ([]*domain.Test, error)

	// GetTest retrieves a test by ID. Returns (nil, nil) when absent.
	GetTest(ctx context.Context, id string) (*domain.Test, error)

	// CreateTest inserts a new test.
	CreateTest(ctx context.Context, test *domain.Test) error

	// DeleteTest removes a test and its questions.
	DeleteTest(ctx context.Context, id string) error

	// ListQuestions retrieves a test's questions, oldest first.
	ListQuestions(ctx context.Context, testID string) ([]*domain.Question, error)

	// CreateQuestion inserts a new question.
	CreateQuestion(ctx context.Context, question *domain.Question) error

	// DeleteQuestion removes a question.
	DeleteQuestion(ctx context.Context, id string) error

	// CreateTestResult records a completed attempt.
	CreateTestResult(ctx context.Context, result *domain.TestResult) error

	// ListResultsByTest retrieves all results for a test, newest first.
	ListResultsByTest(ctx context.Context, testID string) ([]*domain.TestResult, error)

	// ListResultsByAccount retrieves one account's results, newest first.
	ListResultsByAccount(ctx context.Context, accountID string) ([]*domain.TestResult, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
