package domain

import (
	"time"
)

// Test is a multiple-choice test authored by an administrator.
type Test struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// Question is a single four-option question belonging to a test.
type Question struct {
	ID            string    `json:"id"`
	TestID        string    `json:"test_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer"`
	CreatedAt     time.Time `json:"created_at"`
}

// TestResult records one completed attempt at a test.
type TestResult struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"user_id"`
	TestID         string    `json:"test_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}
