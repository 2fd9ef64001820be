package repository

import (
	"context"
	"time"

	"quizzify_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create 同时写入题目
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) FindByIDForUser(ctx context.Context, id string, userID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Where("id = ? AND user_id = ?", id, userID).
		First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// FindForUpdate 锁定测验行，同一测验的作答在事务内串行执行。
// 必须在事务中调用；SQLite 不支持行锁，会忽略该子句。
func (r *QuizRepository) FindForUpdate(ctx context.Context, id string, userID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&quiz).Error
	if err != nil {
		return nil, err
	}

	// 加锁后再读题目，能看到先前持锁事务已提交的答案
	err = r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("quiz_id = ?", quiz.ID).
		Order("position ASC").
		Find(&quiz.Questions).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]model.Quiz, int64, error) {
	var quizzes []model.Quiz
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.Quiz{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Questions", orderedQuestions).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&quizzes).Error
	return quizzes, total, err
}

// SetAnswer 仅当题目尚未作答时写入，返回是否写入成功
func (r *QuizRepository) SetAnswer(ctx context.Context, questionID uint, answer int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.QuizQuestion{}).
		Where("id = ? AND user_answer IS NULL", questionID).
		Update("user_answer", answer)
	return res.RowsAffected == 1, res.Error
}

// Complete 将进行中的测验标记为完成
func (r *QuizRepository) Complete(ctx context.Context, quizID string, score int, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ? AND status = ?", quizID, model.QuizInProgress).
		Updates(map[string]interface{}{
			"status":       model.QuizCompleted,
			"score":        score,
			"completed_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkXPAwarded 每个测验只能成功一次，是经验“至多发放一次”的保证
func (r *QuizRepository) MarkXPAwarded(ctx context.Context, quizID string, xp int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ? AND status = ? AND xp_awarded = ?", quizID, model.QuizCompleted, false).
		Updates(map[string]interface{}{
			"xp_awarded": true,
			"xp_earned":  xp,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *QuizRepository) Abandon(ctx context.Context, quizID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ? AND user_id = ? AND status = ?", quizID, userID, model.QuizInProgress).
		Update("status", model.QuizAbandoned)
	return res.RowsAffected == 1, res.Error
}
