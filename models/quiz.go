package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// QuizQuestionCount is the number of questions generated per session
const QuizQuestionCount = 5

// QuizOptionCount is the number of options per question
const QuizOptionCount = 4

// StringList is a string slice stored as a JSONB array
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// QuizSession is one attempt by a user at a generated quiz
type QuizSession struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ManualID       uuid.UUID  `json:"manual_id" db:"manual_id"`
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	Score          int        `json:"score" db:"score"`
	TotalQuestions int        `json:"total_questions" db:"total_questions"`
	Percentage     float64    `json:"percentage" db:"percentage"`
	TargetLanguage *Locale    `json:"target_language,omitempty" db:"target_language"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// TableName returns the table name for the QuizSession model
func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// NewQuizSession creates an unanswered session
func NewQuizSession(manualID, userID uuid.UUID, total int) *QuizSession {
	return &QuizSession{
		ID:             uuid.New(),
		ManualID:       manualID,
		UserID:         userID,
		TotalQuestions: total,
		StartedAt:      time.Now(),
	}
}

// IsCompleted reports whether answers were already submitted
func (s *QuizSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// Complete records the final score
func (s *QuizSession) Complete(score int, at time.Time) {
	s.Score = score
	s.Percentage = Percentage(score, s.TotalQuestions)
	s.CompletedAt = &at
}

// QuizQuestion is a stored multiple choice question
type QuizQuestion struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	SessionID     uuid.UUID  `json:"session_id" db:"session_id"`
	QuestionText  string     `json:"question_text" db:"question_text"`
	Options       StringList `json:"options" db:"options"`
	CorrectAnswer string     `json:"-" db:"correct_answer"`
	Explanation   string     `json:"-" db:"explanation"`
	OrderIndex    int        `json:"order_index" db:"order_index"`
}

// TableName returns the table name for the QuizQuestion model
func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// IsCorrect compares an answer to the stored correct answer by exact string equality
func (q *QuizQuestion) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}

// QuizAnswer is a graded answer to one question
type QuizAnswer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	SessionID  uuid.UUID `json:"session_id" db:"session_id"`
	QuestionID uuid.UUID `json:"question_id" db:"question_id"`
	UserAnswer string    `json:"user_answer" db:"user_answer"`
	IsCorrect  bool      `json:"is_correct" db:"is_correct"`
	AnsweredAt time.Time `json:"answered_at" db:"answered_at"`
}

// TableName returns the table name for the QuizAnswer model
func (QuizAnswer) TableName() string {
	return "quiz_answers"
}

// QuizResult is a completed session joined with its user and manual, for admin reporting
type QuizResult struct {
	SessionID      uuid.UUID  `json:"sessionId"`
	ManualID       uuid.UUID  `json:"manualId"`
	UserID         uuid.UUID  `json:"userId"`
	UserName       string     `json:"userName"`
	UserEmail      *string    `json:"userEmail"`
	ManualTitle    string     `json:"manualTitle"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	Percentage     float64    `json:"percentage"`
	CompletedAt    *time.Time `json:"completedAt"`
}

// QuizResultFilter narrows the admin result listing
type QuizResultFilter struct {
	ManualID *uuid.UUID
	UserID   *uuid.UUID
}

// Percentage returns score/total*100 rounded to two decimals
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*100*100) / 100
}
