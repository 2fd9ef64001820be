package service

import (
	"context"
	"errors"
	"fmt"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuotaExceededError 额度用尽，携带判定结果供前端展示升级提示
type QuotaExceededError struct {
	Decision entitlement.Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %s used %d of %d", entitlement.ErrQuotaExceeded, e.Decision.Action, e.Decision.Used, e.Decision.Limit)
}

func (e *QuotaExceededError) Unwrap() error {
	return entitlement.ErrQuotaExceeded
}

// EntitlementService 读取数据库中的计数做准入判断，并以条件更新消耗额度
type EntitlementService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
}

func NewEntitlementService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository) *EntitlementService {
	return &EntitlementService{UserRepo: userRepo, ProgressRepo: progressRepo}
}

// WithTx 事务内使用，缓存失效由调用方在提交后处理
func (s *EntitlementService) WithTx(tx *gorm.DB) *EntitlementService {
	return &EntitlementService{UserRepo: s.UserRepo.WithTx(tx), ProgressRepo: s.ProgressRepo.WithTx(tx)}
}

// Summary 各操作的额度概览，读缓存快照即可
func (s *EntitlementService) Summary(ctx context.Context, userID uint) ([]entitlement.Decision, error) {
	user, err := s.ProgressRepo.FindSnapshot(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return entitlement.Summarize(user.EntitlementState()), nil
}

// Precheck 以数据库为准判断能否执行，不修改计数
func (s *EntitlementService) Precheck(ctx context.Context, userID uint, action entitlement.Action) (entitlement.Decision, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entitlement.Decision{}, util.ErrUserNotFound
		}
		return entitlement.Decision{}, err
	}

	d, err := entitlement.Check(action, user.EntitlementState())
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		monitoring.ObserveDecision(string(action), false)
		return d, &QuotaExceededError{Decision: d}
	}
	return d, nil
}

// Consume 检查并递增计数。并发请求抢到最后一个额度时返回 QuotaExceededError。
func (s *EntitlementService) Consume(ctx context.Context, userID uint, action entitlement.Action) (entitlement.Decision, error) {
	d, err := s.Precheck(ctx, userID, action)
	if err != nil {
		return d, err
	}

	ok, err := s.UserRepo.ConsumeUsage(ctx, userID, action, d.Limit)
	if err != nil {
		return d, err
	}
	if !ok {
		logger.Log.Info("usage consumed by concurrent request",
			zap.Uint("user_id", userID),
			zap.String("action", string(action)))
		monitoring.ObserveDecision(string(action), false)
		d.Allowed = false
		d.Used = d.Limit
		d.Remaining = 0
		return d, &QuotaExceededError{Decision: d}
	}

	monitoring.ObserveDecision(string(action), true)
	d.Used++
	if d.Limit != entitlement.Unlimited {
		d.Remaining = d.Limit - d.Used
	}
	return d, nil
}
