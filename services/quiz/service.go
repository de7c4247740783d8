// Package quiz generates comprehension quizzes from manuals with an LLM and grades answers.
package quiz

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/audit"
	"github.com/upb/manual-share/services/providers"
	"go.uber.org/zap"
)

// Question is a generated question as shown to the quiz taker
type Question struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	OrderIndex   int       `json:"order_index"`
}

// GenerateResult is returned by Generate. Correct answers are never included.
type GenerateResult struct {
	SessionID uuid.UUID  `json:"sessionId"`
	Questions []Question `json:"questions"`
}

// Answer is one submitted answer
type Answer struct {
	QuestionID uuid.UUID `json:"questionId" validate:"required"`
	UserAnswer string    `json:"userAnswer"`
}

// AnswerResult is the graded outcome of one answer
type AnswerResult struct {
	QuestionID    uuid.UUID `json:"questionId"`
	Question      string    `json:"question"`
	UserAnswer    string    `json:"userAnswer"`
	CorrectAnswer string    `json:"correctAnswer"`
	IsCorrect     bool      `json:"isCorrect"`
	Explanation   string    `json:"explanation"`
	Options       []string  `json:"options"`
}

// SubmitResult is returned by Submit
type SubmitResult struct {
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	Percentage     float64        `json:"percentage"`
	Results        []AnswerResult `json:"results"`
}

// Service handles quiz generation and grading
type Service struct {
	txMgr        repositories.TransactionManager
	manuals      repositories.ManualRepository
	translations repositories.TranslationRepository
	quizzes      repositories.QuizRepository
	llm          providers.Provider
	audit        audit.Recorder
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a new quiz service
func NewService(
	txMgr repositories.TransactionManager,
	manuals repositories.ManualRepository,
	translations repositories.TranslationRepository,
	quizzes repositories.QuizRepository,
	llm providers.Provider,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		txMgr:        txMgr,
		manuals:      manuals,
		translations: translations,
		quizzes:      quizzes,
		llm:          llm,
		audit:        recorder,
		logger:       logger,
		now:          time.Now,
	}
}

// Generate asks the LLM for a quiz about a published manual and stores it as a new session.
// targetLanguage is optional; when set the cached translation is quizzed when present and the
// questions are written in that language.
func (s *Service) Generate(ctx context.Context, actor models.Actor, manualID uuid.UUID, targetLanguage string) (*GenerateResult, error) {
	target, err := parseTarget(targetLanguage)
	if err != nil {
		return nil, err
	}

	manual, err := s.manuals.GetByID(ctx, actor.OrgID, manualID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrManualNotFound, nil, "failed to get manual")
	}
	if manual.Status != models.ManualStatusPublished {
		return nil, services.ErrManualNotFound
	}

	title, blocks := manual.Title, manual.Blocks
	if target != "" {
		translation, err := s.translations.Get(ctx, manual.ID, target)
		switch {
		case err == nil:
			title, blocks = translation.TranslatedTitle, translation.TranslatedBlocks
		case errors.Is(err, repositories.ErrNotFound):
			s.logger.Debug("no cached translation, quizzing the original",
				zap.String("manual_id", manual.ID.String()),
				zap.String("language", string(target)))
		default:
			return nil, services.WrapInternal("failed to load translation", err)
		}
	}

	content := ExtractText(blocks)
	if n := utf8.RuneCountInString(content); n < MinContentLength {
		return nil, services.Derive(services.ErrInsufficientContent, nil).
			WithDetail("extracted_length", n).
			WithDetail("minimum_length", MinContentLength)
	}

	resp, err := s.llm.Complete(ctx, providers.UserPrompt(BuildPrompt(title, content, target), GenerateMaxTokens))
	if err != nil {
		s.logger.Error("quiz generation call failed",
			zap.String("manual_id", manual.ID.String()),
			zap.String("provider", s.llm.Name()),
			zap.Error(err))
		return nil, services.FromCompletion(err, providers.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded))
	}

	generated, err := ParseQuiz(resp.Text)
	if err != nil {
		s.logger.Warn("LLM returned a malformed quiz",
			zap.String("manual_id", manual.ID.String()),
			zap.String("model", resp.Model),
			zap.Error(err))
		return nil, services.Derive(services.ErrMalformedQuiz, err)
	}

	session := models.NewQuizSession(manual.ID, actor.UserID, len(generated))
	session.StartedAt = s.now()
	if target != "" {
		session.TargetLanguage = &target
	}

	questions := make([]*models.QuizQuestion, len(generated))
	for i, q := range generated {
		questions[i] = &models.QuizQuestion{
			ID:            uuid.New(),
			SessionID:     session.ID,
			QuestionText:  q.Question,
			Options:       models.StringList(q.Options),
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			OrderIndex:    i,
		}
	}

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		quizzes := s.quizzes.WithTx(tx)
		if err := quizzes.CreateSession(ctx, session); err != nil {
			return services.WrapInternal("failed to create quiz session", err)
		}
		if err := quizzes.CreateQuestions(ctx, questions); err != nil {
			return services.WrapInternal("failed to store quiz questions", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quiz generated",
		zap.String("session_id", session.ID.String()),
		zap.String("manual_id", manual.ID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("latency", resp.Latency))

	result := &GenerateResult{SessionID: session.ID, Questions: make([]Question, len(questions))}
	for i, q := range questions {
		result.Questions[i] = Question{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			OrderIndex:   q.OrderIndex,
		}
	}
	return result, nil
}

// Submit grades answers by exact string equality and completes the session.
// Only the submitted answers are graded; the percentage is over all questions of the session.
func (s *Service) Submit(ctx context.Context, actor models.Actor, sessionID uuid.UUID, answers []Answer) (*SubmitResult, error) {
	if len(answers) == 0 {
		return nil, services.ErrEmptyAnswers
	}

	session, err := s.quizzes.GetSessionForUser(ctx, sessionID, actor.UserID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrSessionNotFound, nil, "failed to get quiz session")
	}
	if session.IsCompleted() {
		return nil, services.ErrQuizAlreadySubmitted
	}

	questions, err := s.quizzes.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, services.WrapInternal("failed to list quiz questions", err)
	}
	byID := make(map[uuid.UUID]*models.QuizQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	now := s.now()
	score := 0
	graded := make([]*models.QuizAnswer, 0, len(answers))
	results := make([]AnswerResult, 0, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		// first answer to a question wins
		delete(byID, a.QuestionID)

		correct := q.IsCorrect(a.UserAnswer)
		if correct {
			score++
		}
		graded = append(graded, &models.QuizAnswer{
			ID:         uuid.New(),
			SessionID:  session.ID,
			QuestionID: q.ID,
			UserAnswer: a.UserAnswer,
			IsCorrect:  correct,
			AnsweredAt: now,
		})
		results = append(results, AnswerResult{
			QuestionID:    q.ID,
			Question:      q.QuestionText,
			UserAnswer:    a.UserAnswer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
			Explanation:   q.Explanation,
			Options:       q.Options,
		})
	}

	if len(questions) > 0 {
		session.TotalQuestions = len(questions)
	}
	session.Complete(score, now)

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		quizzes := s.quizzes.WithTx(tx)
		if err := quizzes.CompleteSession(ctx, session); err != nil {
			return services.FromRepository(err, services.ErrQuizAlreadySubmitted, nil, "failed to complete quiz session")
		}
		if len(graded) == 0 {
			return nil
		}
		if err := quizzes.CreateAnswers(ctx, graded); err != nil {
			return services.WrapInternal("failed to store answers", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionQuizSubmitted, "quiz_session", session.ID, map[string]interface{}{
		"manual_id":  session.ManualID.String(),
		"score":      session.Score,
		"percentage": session.Percentage,
	})

	s.logger.Info("quiz submitted",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.Int("score", session.Score),
		zap.Int("total", session.TotalQuestions))

	return &SubmitResult{
		Score:          session.Score,
		TotalQuestions: session.TotalQuestions,
		Percentage:     session.Percentage,
		Results:        results,
	}, nil
}

// Results lists quiz sessions of the actor's organization for managers
func (s *Service) Results(ctx context.Context, actor models.Actor, filter models.QuizResultFilter) ([]*models.QuizResult, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}
	results, err := s.quizzes.ListResults(ctx, actor.OrgID, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list quiz results", err)
	}
	return results, nil
}

// History lists the actor's own completed sessions
func (s *Service) History(ctx context.Context, actor models.Actor) ([]*models.QuizResult, error) {
	results, err := s.quizzes.ListCompletedByUser(ctx, actor.UserID)
	if err != nil {
		return nil, services.WrapInternal("failed to list quiz history", err)
	}
	return results, nil
}

// parseTarget returns "" for no translation (empty or Japanese)
func parseTarget(raw string) (models.Locale, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || models.Locale(raw) == models.LocaleJapanese {
		return "", nil
	}
	target := models.Locale(raw)
	if !target.IsTranslationTarget() {
		return "", services.Derive(services.ErrUnsupportedLanguage, nil).WithDetail("language", raw)
	}
	return target, nil
}
