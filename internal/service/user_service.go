package service

import (
	"context"
	"errors"

	"quizzify_backend/internal/model"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidAudience = errors.New("invalid target audience")

// UserService 账户设置与管理员操作
type UserService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
}

func NewUserService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository) *UserService {
	return &UserService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
	}
}

// SetPremium 会员开通由外部支付流程完成，这里只记录结果
func (s *UserService) SetPremium(ctx context.Context, userID uint, premium bool) error {
	if err := s.UserRepo.SetPremium(ctx, userID, premium); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrUserNotFound
		}
		return err
	}
	s.ProgressRepo.Invalidate(ctx, userID)
	logger.Log.Info("premium flag updated", zap.Uint("user_id", userID), zap.Bool("premium", premium))
	return nil
}

func (s *UserService) SetTargetAudience(ctx context.Context, userID uint, audience model.TargetAudience) error {
	if !audience.Valid() {
		return ErrInvalidAudience
	}
	if err := s.UserRepo.SetTargetAudience(ctx, userID, audience); err != nil {
		return err
	}
	s.ProgressRepo.Invalidate(ctx, userID)
	return nil
}
