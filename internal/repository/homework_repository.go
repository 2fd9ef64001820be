package repository

import (
	"context"

	"quizzify_backend/internal/model"

	"gorm.io/gorm"
)

type HomeworkRepository struct {
	DB *gorm.DB
}

func NewHomeworkRepository(db *gorm.DB) *HomeworkRepository {
	return &HomeworkRepository{DB: db}
}

func (r *HomeworkRepository) Create(ctx context.Context, answer *model.HomeworkAnswer) error {
	return r.DB.WithContext(ctx).Create(answer).Error
}

func (r *HomeworkRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]model.HomeworkAnswer, int64, error) {
	var answers []model.HomeworkAnswer
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.HomeworkAnswer{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&answers).Error
	return answers, total, err
}
