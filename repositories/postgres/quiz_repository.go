package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"go.uber.org/zap"
)

// QuizRepository implements the repositories.QuizRepository interface
type QuizRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewQuizRepository creates a new quiz repository
func NewQuizRepository(db *DB, logger *zap.Logger) repositories.QuizRepository {
	return &QuizRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSession creates a new quiz session
func (r *QuizRepository) CreateSession(ctx context.Context, s *models.QuizSession) error {
	query := `
		INSERT INTO quiz_sessions (
			id, manual_id, user_id, score, total_questions, percentage, target_language, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := executorFor(ctx, r.db, r.tx)
	_, err := executor.ExecContext(ctx, query,
		s.ID,
		s.ManualID,
		s.UserID,
		s.Score,
		s.TotalQuestions,
		s.Percentage,
		s.TargetLanguage,
		s.StartedAt,
		s.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create quiz session: %w", err)
	}

	r.logger.Debug("quiz session created", zap.String("id", s.ID.String()), zap.String("manual_id", s.ManualID.String()))
	return nil
}

// CreateQuestions stores the questions of a session
func (r *QuizRepository) CreateQuestions(ctx context.Context, questions []*models.QuizQuestion) error {
	if len(questions) == 0 {
		return nil
	}

	values := make([]string, 0, len(questions))
	args := make([]interface{}, 0, len(questions)*7)
	for i, q := range questions {
		n := i * 7
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7))
		args = append(args, q.ID, q.SessionID, q.QuestionText, q.Options, q.CorrectAnswer, q.Explanation, q.OrderIndex)
	}

	query := `
		INSERT INTO quiz_questions (id, session_id, question_text, options, correct_answer, explanation, order_index)
		VALUES ` + strings.Join(values, ", ")

	executor := executorFor(ctx, r.db, r.tx)
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create quiz questions: %w", err)
	}

	r.logger.Debug("quiz questions created", zap.Int("count", len(questions)))
	return nil
}

// GetSessionForUser retrieves a session owned by the user
func (r *QuizRepository) GetSessionForUser(ctx context.Context, sessionID, userID uuid.UUID) (*models.QuizSession, error) {
	query := `
		SELECT id, manual_id, user_id, score, total_questions, percentage, target_language, started_at, completed_at
		FROM quiz_sessions
		WHERE id = $1 AND user_id = $2
	`

	executor := executorFor(ctx, r.db, r.tx)
	s := &models.QuizSession{}

	err := executor.QueryRowContext(ctx, query, sessionID, userID).Scan(
		&s.ID,
		&s.ManualID,
		&s.UserID,
		&s.Score,
		&s.TotalQuestions,
		&s.Percentage,
		&s.TargetLanguage,
		&s.StartedAt,
		&s.CompletedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: quiz session %s", repositories.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get quiz session: %w", err)
	}

	return s, nil
}

// ListQuestions retrieves the questions of a session in order
func (r *QuizRepository) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*models.QuizQuestion, error) {
	query := `
		SELECT id, session_id, question_text, options, correct_answer, explanation, order_index
		FROM quiz_questions
		WHERE session_id = $1
		ORDER BY order_index ASC
	`

	executor := executorFor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	questions := []*models.QuizQuestion{}
	for rows.Next() {
		q := &models.QuizQuestion{}
		if err := rows.Scan(
			&q.ID,
			&q.SessionID,
			&q.QuestionText,
			&q.Options,
			&q.CorrectAnswer,
			&q.Explanation,
			&q.OrderIndex,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quiz question: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz question rows: %w", err)
	}

	return questions, nil
}

// CreateAnswers stores graded answers
func (r *QuizRepository) CreateAnswers(ctx context.Context, answers []*models.QuizAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	values := make([]string, 0, len(answers))
	args := make([]interface{}, 0, len(answers)*6)
	for i, a := range answers {
		n := i * 6
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, a.ID, a.SessionID, a.QuestionID, a.UserAnswer, a.IsCorrect, a.AnsweredAt)
	}

	query := `
		INSERT INTO quiz_answers (id, session_id, question_id, user_answer, is_correct, answered_at)
		VALUES ` + strings.Join(values, ", ")

	executor := executorFor(ctx, r.db, r.tx)
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create quiz answers: %w", err)
	}

	return nil
}

// CompleteSession writes the final score and completion time
func (r *QuizRepository) CompleteSession(ctx context.Context, s *models.QuizSession) error {
	query := `
		UPDATE quiz_sessions
		SET score = $2,
		    percentage = $3,
		    completed_at = $4
		WHERE id = $1 AND completed_at IS NULL
	`

	executor := executorFor(ctx, r.db, r.tx)
	result, err := executor.ExecContext(ctx, query, s.ID, s.Score, s.Percentage, s.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to complete quiz session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	// a concurrent submit already completed it
	if rowsAffected == 0 {
		return fmt.Errorf("%w: open quiz session %s", repositories.ErrNotFound, s.ID)
	}

	r.logger.Debug("quiz session completed",
		zap.String("id", s.ID.String()),
		zap.Int("score", s.Score),
		zap.Float64("percentage", s.Percentage))
	return nil
}

const resultSelect = `
		SELECT s.id, s.manual_id, s.user_id, u.display_name, u.email, m.title,
		       s.score, s.total_questions, s.percentage, s.completed_at
		FROM quiz_sessions s
		JOIN users u ON u.id = s.user_id
		JOIN manuals m ON m.id = s.manual_id
`

func scanResults(rows *sql.Rows) ([]*models.QuizResult, error) {
	defer rows.Close()

	results := []*models.QuizResult{}
	for rows.Next() {
		res := &models.QuizResult{}
		if err := rows.Scan(
			&res.SessionID,
			&res.ManualID,
			&res.UserID,
			&res.UserName,
			&res.UserEmail,
			&res.ManualTitle,
			&res.Score,
			&res.TotalQuestions,
			&res.Percentage,
			&res.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quiz result: %w", err)
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz result rows: %w", err)
	}

	return results, nil
}

// ListResults retrieves the sessions of an organization joined with user and manual
func (r *QuizRepository) ListResults(ctx context.Context, orgID uuid.UUID, filter models.QuizResultFilter) ([]*models.QuizResult, error) {
	conditions := []string{"m.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.ManualID != nil {
		args = append(args, *filter.ManualID)
		conditions = append(conditions, fmt.Sprintf("s.manual_id = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)))
	}

	query := resultSelect + `
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY s.completed_at DESC NULLS LAST
	`

	executor := executorFor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz results: %w", err)
	}

	return scanResults(rows)
}

// ListCompletedByUser retrieves a user's completed sessions, newest first
func (r *QuizRepository) ListCompletedByUser(ctx context.Context, userID uuid.UUID) ([]*models.QuizResult, error) {
	query := resultSelect + `
		WHERE s.user_id = $1 AND s.completed_at IS NOT NULL
		ORDER BY s.completed_at DESC
	`

	executor := executorFor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz history: %w", err)
	}

	return scanResults(rows)
}

// WithTx returns a new repository instance bound to the transaction
func (r *QuizRepository) WithTx(tx repositories.Transaction) repositories.QuizRepository {
	return &QuizRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}
