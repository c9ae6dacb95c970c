package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quizhub/quizhub/internal/domain"
	"github.com/quizhub/quizhub/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db            *sql.DB
	chatSessionMu sync.Mutex // Mutex for chat session upserts to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		secret_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		chat_id INTEGER PRIMARY KEY,
		account_id TEXT,
		state TEXT NOT NULL,
		pending_handle TEXT,
		last_update_id INTEGER NOT NULL DEFAULT 0,
		last_activity INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
		question_text TEXT NOT NULL,
		option_a TEXT NOT NULL,
		option_b TEXT NOT NULL,
		option_c TEXT NOT NULL,
		option_d TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_test ON questions(test_id);

	CREATE TABLE IF NOT EXISTS test_results (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		test_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_test ON test_results(test_id);
	CREATE INDEX IF NOT EXISTS idx_results_account ON test_results(account_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var account domain.Account
	var isAdmin int
	var createdAt int64

	err := row.Scan(&account.ID, &account.Handle, &account.SecretHash, &isAdmin, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}

	account.IsAdmin = isAdmin != 0
	account.CreatedAt = time.Unix(createdAt, 0)
	return &account, nil
}

// GetAccountByHandle retrieves an account by its unique handle.
func (s *SQLiteStore) GetAccountByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	query := `SELECT id, handle, secret_hash, is_admin, created_at FROM accounts WHERE handle = ?`
	return scanAccount(s.db.QueryRowContext(ctx, query, handle))
}

// GetAccountByID retrieves an account by its ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT id, handle, secret_hash, is_admin, created_at FROM accounts WHERE id = ?`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// CreateAccount inserts a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `INSERT INTO accounts (id, handle, secret_hash, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.Handle, account.SecretHash,
		boolToInt(account.IsAdmin), account.CreatedAt.Unix(),
	)
	if shared.IsSQLiteUniqueViolation(err) {
		return ErrDuplicateHandle
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateAccountSecret overwrites the stored secret hash for an account.
func (s *SQLiteStore) UpdateAccountSecret(ctx context.Context, accountID, secretHash string) error {
	query := `UPDATE accounts SET secret_hash = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, secretHash, accountID)
	if err != nil {
		return fmt.Errorf("update account secret: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account not found")
	}
	return nil
}

// ListAccounts retrieves all accounts, newest first.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT id, handle, secret_hash, is_admin, created_at FROM accounts ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer closeRows(rows, "accounts")

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		var isAdmin int
		var createdAt int64

		if err := rows.Scan(&account.ID, &account.Handle, &account.SecretHash, &isAdmin, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		account.IsAdmin = isAdmin != 0
		account.CreatedAt = time.Unix(createdAt, 0)
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// GetChatSession retrieves the session for a chat identity.
func (s *SQLiteStore) GetChatSession(ctx context.Context, chatID int64) (*domain.ChatSession, error) {
	query := `
		SELECT chat_id, account_id, state, pending_handle, last_update_id, last_activity
		FROM chat_sessions WHERE chat_id = ?`

	row := s.db.QueryRowContext(ctx, query, chatID)

	var session domain.ChatSession
	var accountID, pendingHandle sql.NullString
	var rawState string
	var lastActivity int64

	err := row.Scan(&session.ChatID, &accountID, &rawState, &pendingHandle, &session.LastUpdateID, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session row: %w", err)
	}

	state, err := domain.ParseSessionState(rawState)
	if err != nil {
		return nil, fmt.Errorf("chat session %d: %w", chatID, err)
	}

	session.AccountID = accountID.String
	session.State = state
	session.PendingHandle = pendingHandle.String
	session.LastActivity = time.Unix(lastActivity, 0)
	return &session, nil
}

// UpsertChatSession creates or overwrites the session row for a chat identity.
// The whole row is written in a single statement; last writer wins.
func (s *SQLiteStore) UpsertChatSession(ctx context.Context, session *domain.ChatSession) error {
	s.chatSessionMu.Lock()
	defer s.chatSessionMu.Unlock()

	if _, err := domain.ParseSessionState(string(session.State)); err != nil {
		return err
	}

	query := `
	INSERT INTO chat_sessions (chat_id, account_id, state, pending_handle, last_update_id, last_activity)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		account_id = excluded.account_id,
		state = excluded.state,
		pending_handle = excluded.pending_handle,
		last_update_id = excluded.last_update_id,
		last_activity = excluded.last_activity`

	// Webhook deliveries can race on the same row; retry briefly on
	// SQLITE_BUSY before giving up.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.db.ExecContext(ctx, query,
			session.ChatID, nullable(session.AccountID), string(session.State),
			nullable(session.PendingHandle), session.LastUpdateID, session.LastActivity.Unix(),
		)
		if !shared.IsSQLiteConflictError(err) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// ListTests retrieves all tests, newest first.
func (s *SQLiteStore) ListTests(ctx context.Context) ([]*domain.Test, error) {
	query := `
		SELECT id, title, description, duration_minutes, created_by, created_at
		FROM tests ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer closeRows(rows, "tests")

	var tests []*domain.Test
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return tests, nil
}

// GetTest retrieves a test by ID.
func (s *SQLiteStore) GetTest(ctx context.Context, id string) (*domain.Test, error) {
	query := `
		SELECT id, title, description, duration_minutes, created_by, created_at
		FROM tests WHERE id = ?`

	var test domain.Test
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&test.ID, &test.Title, &test.Description,
		&test.DurationMinutes, &test.CreatedBy, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan test row: %w", err)
	}

	test.CreatedAt = time.Unix(createdAt, 0)
	return &test, nil
}

// CreateTest inserts a new test.
func (s *SQLiteStore) CreateTest(ctx context.Context, test *domain.Test) error {
	query := `
	INSERT INTO tests (id, title, description, duration_minutes, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		test.ID, test.Title, test.Description,
		test.DurationMinutes, test.CreatedBy, test.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	return nil
}

// DeleteTest removes a test; questions cascade.
func (s *SQLiteStore) DeleteTest(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	return nil
}

// ListQuestions retrieves a test's questions, oldest first.
func (s *SQLiteStore) ListQuestions(ctx context.Context, testID string) ([]*domain.Question, error) {
	query := `
		SELECT id, test_id, question_text, option_a, option_b, option_c, option_d, correct_answer, created_at
		FROM questions WHERE test_id = ? ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer closeRows(rows, "questions")

	var questions []*domain.Question
	for rows.Next() {
		var q domain.Question
		var createdAt int64

		if err := rows.Scan(
			&q.ID, &q.TestID, &q.QuestionText,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		q.CreatedAt = time.Unix(createdAt, 0)
		questions = append(questions, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// CreateQuestion inserts a new question.
func (s *SQLiteStore) CreateQuestion(ctx context.Context, question *domain.Question) error {
	query := `
	INSERT INTO questions (id, test_id, question_text, option_a, option_b, option_c, option_d, correct_answer, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		question.ID, question.TestID, question.QuestionText,
		question.OptionA, question.OptionB, question.OptionC, question.OptionD,
		question.CorrectAnswer, question.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// DeleteQuestion removes a question.
func (s *SQLiteStore) DeleteQuestion(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// CreateTestResult records a completed attempt.
func (s *SQLiteStore) CreateTestResult(ctx context.Context, result *domain.TestResult) error {
	query := `
	INSERT INTO test_results (id, account_id, test_id, score, total_questions, started_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		result.ID, result.AccountID, result.TestID,
		result.Score, result.TotalQuestions,
		result.StartedAt.Unix(), result.CompletedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert test result: %w", err)
	}
	return nil
}

// ListResultsByTest retrieves all results for a test, newest first.
func (s *SQLiteStore) ListResultsByTest(ctx context.Context, testID string) ([]*domain.TestResult, error) {
	query := `
		SELECT id, account_id, test_id, score, total_questions, started_at, completed_at
		FROM test_results WHERE test_id = ? ORDER BY completed_at DESC`
	return s.queryResults(ctx, query, testID)
}

// ListResultsByAccount retrieves one account's results, newest first.
func (s *SQLiteStore) ListResultsByAccount(ctx context.Context, accountID string) ([]*domain.TestResult, error) {
	query := `
		SELECT id, account_id, test_id, score, total_questions, started_at, completed_at
		FROM test_results WHERE account_id = ? ORDER BY completed_at DESC`
	return s.queryResults(ctx, query, accountID)
}

func (s *SQLiteStore) queryResults(ctx context.Context, query string, arg interface{}) ([]*domain.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query test results: %w", err)
	}
	defer closeRows(rows, "test results")

	var results []*domain.TestResult
	for rows.Next() {
		var r domain.TestResult
		var startedAt, completedAt int64

		if err := rows.Scan(
			&r.ID, &r.AccountID, &r.TestID,
			&r.Score, &r.TotalQuestions, &startedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan test result row: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0)
		r.CompletedAt = time.Unix(completedAt, 0)
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test results: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTest(row rowScanner) (*domain.Test, error) {
	var test domain.Test
	var createdAt int64

	if err := row.Scan(
		&test.ID, &test.Title, &test.Description,
		&test.DurationMinutes, &test.CreatedBy, &createdAt,
	); err != nil {
		return nil, fmt.Errorf("scan test row: %w", err)
	}
	test.CreatedAt = time.Unix(createdAt, 0)
	return &test, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
