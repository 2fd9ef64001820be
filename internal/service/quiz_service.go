package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/progress"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerResult 单题作答结果，最后一题作答后带上成绩和经验
type AnswerResult struct {
	QuestionID    uint              `json:"questionId"`
	Correct       bool              `json:"correct"`
	CorrectAnswer int               `json:"correctAnswerIndex"`
	Explanation   string            `json:"explanation"`
	Completed     bool              `json:"completed"`
	Score         *int              `json:"score,omitempty"`
	Total         int               `json:"total"`
	Outcome       *progress.Outcome `json:"outcome,omitempty"`
}

// CreatedQuiz 新测验及消耗额度后的判定
type CreatedQuiz struct {
	Quiz     *model.Quiz          `json:"quiz"`
	Decision entitlement.Decision `json:"decision"`
}

type QuizService struct {
	DB           *gorm.DB
	QuizRepo     *repository.QuizRepository
	Entitlements *EntitlementService
	Progress     *ProgressService
	AI           *AIService
}

func NewQuizService(db *gorm.DB, quizRepo *repository.QuizRepository, entitlements *EntitlementService, progressService *ProgressService, ai *AIService) *QuizService {
	return &QuizService{
		DB:           db,
		QuizRepo:     quizRepo,
		Entitlements: entitlements,
		Progress:     progressService,
		AI:           ai,
	}
}

func quizTitle(req QuizRequest) (string, model.QuizSource) {
	switch {
	case req.ImageData != "":
		return "Quiz from image", model.QuizFromImage
	case strings.TrimSpace(req.Notes) != "":
		return "Quiz from notes", model.QuizFromNotes
	}
	return strings.TrimSpace(req.Topic), model.QuizFromTopic
}

// Create 先判断额度再调用 AI，生成成功后在同一事务里消耗额度并保存测验。
// 生成失败不消耗额度。
func (s *QuizService) Create(ctx context.Context, userID uint, req QuizRequest) (*CreatedQuiz, error) {
	ctx, span := tracing.Tracer.Start(ctx, "quiz.create")
	defer span.End()

	if req.ImageData == "" && strings.TrimSpace(req.Notes) == "" && strings.TrimSpace(req.Topic) == "" {
		return nil, ErrInvalidQuizRequest
	}
	if _, err := s.Entitlements.Precheck(ctx, userID, entitlement.QuizCreate); err != nil {
		return nil, err
	}

	generated, err := s.AI.GenerateQuiz(ctx, req)
	if err != nil {
		return nil, err
	}

	title, source := quizTitle(req)
	quiz := &model.Quiz{
		UserID: userID,
		Title:  title,
		Topic:  strings.TrimSpace(req.Topic),
		Source: source,
		Status: model.QuizInProgress,
	}
	for i, q := range generated {
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			Position:      i + 1,
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}

	var decision entitlement.Decision
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.Entitlements.WithTx(tx).Consume(ctx, userID, entitlement.QuizCreate)
		if err != nil {
			return err
		}
		decision = d
		return s.QuizRepo.WithTx(tx).Create(ctx, quiz)
	})
	if err != nil {
		return nil, err
	}
	s.Entitlements.ProgressRepo.Invalidate(ctx, userID)

	span.SetAttributes(attribute.String("quiz.id", quiz.ID), attribute.Int("quiz.questions", len(quiz.Questions)))
	logger.Log.Info("quiz created",
		zap.Uint("user_id", userID),
		zap.String("quiz_id", quiz.ID),
		zap.String("source", string(source)),
		zap.Int("questions", len(quiz.Questions)))
	return &CreatedQuiz{Quiz: quiz, Decision: decision}, nil
}

func (s *QuizService) Get(ctx context.Context, userID uint, quizID string) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByIDForUser(ctx, quizID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) List(ctx context.Context, userID uint, page, limit int) ([]model.Quiz, int64, error) {
	return s.QuizRepo.ListByUser(ctx, userID, page, limit)
}

// Answer 记录一题答案。每题只能作答一次；全部作答后结束测验并发放一次经验。
// 事务内先锁定测验行，同一测验的并发作答依次执行。
func (s *QuizService) Answer(ctx context.Context, userID uint, quizID string, questionID uint, answer int) (*AnswerResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "quiz.answer")
	defer span.End()

	quiz, err := s.Get(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizInProgress {
		return nil, util.ErrQuizClosed
	}

	question := quiz.Question(questionID)
	if question == nil {
		return nil, util.ErrQuestionNotFound
	}
	if answer < 0 || answer >= len(question.Options) {
		return nil, util.ErrAnswerOutOfRange
	}

	result := &AnswerResult{
		QuestionID:    questionID,
		CorrectAnswer: question.CorrectAnswer,
		Explanation:   question.Explanation,
		Total:         len(quiz.Questions),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quizzes := s.QuizRepo.WithTx(tx)
		current, err := quizzes.FindForUpdate(ctx, quizID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrQuizNotFound
			}
			return err
		}
		if current.Status != model.QuizInProgress {
			return util.ErrQuizClosed
		}
		locked := current.Question(questionID)
		if locked == nil {
			return util.ErrQuestionNotFound
		}

		switch {
		case locked.UserAnswer == nil:
			ok, err := quizzes.SetAnswer(ctx, questionID, answer)
			if err != nil {
				return err
			}
			if !ok {
				return util.ErrQuestionAlreadyAnswered
			}
			locked.UserAnswer = &answer
		case !current.AllAnswered():
			return util.ErrQuestionAlreadyAnswered
		}
		// 已全部作答但仍在进行中的测验（并发作答遗留）在此补做结算
		result.Correct = *locked.UserAnswer == locked.CorrectAnswer

		if !current.AllAnswered() {
			return nil
		}

		score := current.CorrectCount()
		completed, err := quizzes.Complete(ctx, quizID, score, time.Now())
		if err != nil {
			return err
		}
		if !completed {
			return nil
		}
		current.Status = model.QuizCompleted
		current.Score = &score
		result.Completed = true
		result.Score = &score

		outcome, err := s.Progress.WithTx(tx).AwardQuizXP(ctx, userID, current)
		if err != nil {
			return err
		}
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Completed {
		// 经验只在提交后对外可见
		s.Progress.ReportAward(ctx, userID, result.Outcome)
		logger.Log.Info("quiz completed",
			zap.Uint("user_id", userID),
			zap.String("quiz_id", quizID),
			zap.Int("score", *result.Score),
			zap.Int("total", result.Total))
	}
	return result, nil
}

// Abandon 放弃后不再接受作答，也不发放经验；已消耗的额度不退回
func (s *QuizService) Abandon(ctx context.Context, userID uint, quizID string) error {
	ok, err := s.QuizRepo.Abandon(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.Get(ctx, userID, quizID); err != nil {
		return err
	}
	return util.ErrQuizClosed
}
