package repository

import (
	"context"
	"fmt"
	"time"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.Level < 1 {
		user.Level = 1
	}
	if user.Role == "" {
		user.Role = model.Student
	}
	if user.TargetAudience == "" {
		user.TargetAudience = model.AudienceAllGrades
	}
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at).
		Error
}

func (r *UserRepository) SetPremium(ctx context.Context, id uint, premium bool) error {
	res := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("is_premium", premium)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *UserRepository) SetTargetAudience(ctx context.Context, id uint, audience model.TargetAudience) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("target_audience", audience).
		Error
}

func (r *UserRepository) FindTopByXP(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).Order("xp DESC").Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}

func usageColumn(action entitlement.Action) (string, error) {
	switch action {
	case entitlement.ImageUpload:
		return "image_uploads_used", nil
	case entitlement.QuizCreate:
		return "quizzes_created", nil
	case entitlement.FlashcardDeckCreate:
		return "flashcard_decks_created", nil
	}
	return "", fmt.Errorf("%w: %q", entitlement.ErrUnknownAction, action)
}

// ConsumeUsage 以一条条件 UPDATE 完成“检查 + 计数递增”。
// limit 为 entitlement.Unlimited 时要求账户仍是会员；否则要求当前计数 < limit。
// 非会员创建卡组时消耗唯一的免费试用。返回 false 表示额度已被并发请求用完。
func (r *UserRepository) ConsumeUsage(ctx context.Context, userID uint, action entitlement.Action, limit int) (bool, error) {
	column, err := usageColumn(action)
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		column: gorm.Expr(column + " + 1"),
	}
	q := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID)

	switch {
	case limit == entitlement.Unlimited:
		q = q.Where("is_premium = ?", true)
	case action == entitlement.FlashcardDeckCreate:
		q = q.Where("has_used_free_trial = ?", false)
		updates["has_used_free_trial"] = true
	default:
		q = q.Where(column+" < ?", limit)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
