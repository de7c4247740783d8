package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/repositories/postgres"
	"go.uber.org/zap"
)

type quizStore struct {
	txMgr   repositories.TransactionManager
	quizzes repositories.QuizRepository
	mock    sqlmock.Sqlmock
}

func newQuizStore(t *testing.T) *quizStore {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zap.NewNop()
	db := postgres.WrapDB(sqlDB, logger)
	return &quizStore{
		txMgr:   postgres.NewTransactionManager(db, logger),
		quizzes: postgres.NewQuizRepository(db, logger),
		mock:    mock,
	}
}

func newGeneratedQuiz() (*models.QuizSession, []*models.QuizQuestion) {
	session := models.NewQuizSession(uuid.New(), uuid.New(), 2)
	questions := []*models.QuizQuestion{
		{ID: uuid.New(), SessionID: session.ID, QuestionText: "Which key opens the back door?", Options: models.StringList{"A", "B", "C", "D"}, CorrectAnswer: "B"},
		{ID: uuid.New(), SessionID: session.ID, QuestionText: "When is the safe counted?", Options: models.StringList{"A", "B", "C", "D"}, CorrectAnswer: "D", OrderIndex: 1},
	}
	return session, questions
}

// persist stores a generated quiz the way the quiz service does
func (s *quizStore) persist(ctx context.Context, session *models.QuizSession, questions []*models.QuizQuestion) error {
	return WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		quizzes := s.quizzes.WithTx(tx)
		if err := quizzes.CreateSession(ctx, session); err != nil {
			return WrapInternal("failed to create quiz session", err)
		}
		if err := quizzes.CreateQuestions(ctx, questions); err != nil {
			return WrapInternal("failed to store quiz questions", err)
		}
		return nil
	})
}

func TestWithTransaction_QuizPersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("session and questions commit together", func(t *testing.T) {
		store := newQuizStore(t)
		session, questions := newGeneratedQuiz()

		store.mock.ExpectBegin()
		store.mock.ExpectExec("INSERT INTO quiz_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
		store.mock.ExpectExec("INSERT INTO quiz_questions").WillReturnResult(sqlmock.NewResult(0, 2))
		store.mock.ExpectCommit()

		require.NoError(t, store.persist(ctx, session, questions))
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})

	t.Run("question failure rolls back the session", func(t *testing.T) {
		store := newQuizStore(t)
		session, questions := newGeneratedQuiz()
		dbErr := errors.New("value too long for type character varying")

		store.mock.ExpectBegin()
		store.mock.ExpectExec("INSERT INTO quiz_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
		store.mock.ExpectExec("INSERT INTO quiz_questions").WillReturnError(dbErr)
		store.mock.ExpectRollback()

		err := store.persist(ctx, session, questions)

		require.Error(t, err)
		assert.True(t, IsInternalError(err))
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})

	t.Run("failed rollback keeps the original error", func(t *testing.T) {
		store := newQuizStore(t)
		session, questions := newGeneratedQuiz()
		dbErr := errors.New("insert failed")

		store.mock.ExpectBegin()
		store.mock.ExpectExec("INSERT INTO quiz_sessions").WillReturnError(dbErr)
		store.mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

		err := store.persist(ctx, session, questions)

		require.Error(t, err)
		assert.True(t, IsInternalError(err))
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "rollback failed")
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})

	t.Run("begin failure skips the writes", func(t *testing.T) {
		store := newQuizStore(t)
		session, questions := newGeneratedQuiz()

		store.mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := store.persist(ctx, session, questions)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})

	t.Run("commit failure is reported", func(t *testing.T) {
		store := newQuizStore(t)
		session, questions := newGeneratedQuiz()

		store.mock.ExpectBegin()
		store.mock.ExpectExec("INSERT INTO quiz_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
		store.mock.ExpectExec("INSERT INTO quiz_questions").WillReturnResult(sqlmock.NewResult(0, 2))
		store.mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := store.persist(ctx, session, questions)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})
}

func TestWithTransactionResult(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored session on commit", func(t *testing.T) {
		store := newQuizStore(t)
		session, _ := newGeneratedQuiz()

		store.mock.ExpectBegin()
		store.mock.ExpectExec("INSERT INTO quiz_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
		store.mock.ExpectCommit()

		got, err := WithTransactionResult(ctx, store.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.QuizSession, error) {
			if err := store.quizzes.WithTx(tx).CreateSession(ctx, session); err != nil {
				return nil, err
			}
			return session, nil
		})

		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})

	t.Run("domain errors keep their type and drop the result", func(t *testing.T) {
		store := newQuizStore(t)
		session, _ := newGeneratedQuiz()

		store.mock.ExpectBegin()
		store.mock.ExpectRollback()

		got, err := WithTransactionResult(ctx, store.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.QuizSession, error) {
			return session, ErrQuizAlreadySubmitted
		})

		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrQuizAlreadySubmitted)
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		store := newQuizStore(t)

		store.mock.ExpectBegin()
		store.mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_, _ = WithTransactionResult(ctx, store.txMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
				panic("boom")
			})
		})
		assert.NoError(t, store.mock.ExpectationsWereMet())
	})
}
