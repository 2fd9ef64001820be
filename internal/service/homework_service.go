package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/tracing"

	"go.uber.org/zap"
)

var ErrInvalidImage = errors.New("unsupported image file")

// UploadedImage 上传结果，URL 可直接用于解题请求
type UploadedImage struct {
	URL      string               `json:"url"`
	Decision entitlement.Decision `json:"decision"`
}

type HomeworkService struct {
	HomeworkRepo *repository.HomeworkRepository
	UserRepo     *repository.UserRepository
	Entitlements *EntitlementService
	Storage      *StorageService
	AI           *AIService
}

func NewHomeworkService(homeworkRepo *repository.HomeworkRepository, userRepo *repository.UserRepository, entitlements *EntitlementService, storage *StorageService, ai *AIService) *HomeworkService {
	return &HomeworkService{
		HomeworkRepo: homeworkRepo,
		UserRepo:     userRepo,
		Entitlements: entitlements,
		Storage:      storage,
		AI:           ai,
	}
}

// UploadImage 上传成功后才消耗额度；并发抢占失败时删除已上传的文件
func (s *HomeworkService) UploadImage(ctx context.Context, userID uint, filename, contentType string, size int64, reader io.Reader) (*UploadedImage, error) {
	ctx, span := tracing.Tracer.Start(ctx, "homework.upload_image")
	defer span.End()

	ext := filepath.Ext(filename)
	if !AllowedImageExt(ext) || size <= 0 || size > util.MaxImageBytes {
		return nil, ErrInvalidImage
	}
	if contentType != "" && !strings.HasPrefix(contentType, util.MimeImage) {
		return nil, ErrInvalidImage
	}

	if _, err := s.Entitlements.Precheck(ctx, userID, entitlement.ImageUpload); err != nil {
		return nil, err
	}

	key := ImageKey(userID, ext, time.Now())
	url, err := s.Storage.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return nil, err
	}

	d, err := s.Entitlements.Consume(ctx, userID, entitlement.ImageUpload)
	if err != nil {
		if delErr := s.Storage.Delete(ctx, key); delErr != nil {
			logger.Log.Warn("failed to remove rejected upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	s.Entitlements.ProgressRepo.Invalidate(ctx, userID)

	logger.Log.Info("homework image uploaded", zap.Uint("user_id", userID), zap.String("key", key))
	return &UploadedImage{URL: url, Decision: d}, nil
}

// Solve 未指定受众时使用账户设置
func (s *HomeworkService) Solve(ctx context.Context, userID uint, req HomeworkRequest) (*model.HomeworkAnswer, error) {
	ctx, span := tracing.Tracer.Start(ctx, "homework.solve")
	defer span.End()

	if strings.TrimSpace(req.Question) == "" && req.ImageURL == "" {
		return nil, ErrInvalidHomeworkRequest
	}
	if !req.TargetAudience.Valid() {
		user, err := s.UserRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		req.TargetAudience = user.TargetAudience
	}

	solution, err := s.AI.SolveHomework(ctx, req)
	if err != nil {
		return nil, err
	}

	answer := &model.HomeworkAnswer{
		UserID:            userID,
		Question:          req.Question,
		QuestionSpecifier: req.QuestionSpecifier,
		ImageURL:          req.ImageURL,
		TargetAudience:    req.TargetAudience,
		Steps:             solution.Steps,
		FinalAnswer:       solution.FinalAnswer,
	}
	if err := s.HomeworkRepo.Create(ctx, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

func (s *HomeworkService) History(ctx context.Context, userID uint, page, limit int) ([]model.HomeworkAnswer, int64, error) {
	return s.HomeworkRepo.ListByUser(ctx, userID, page, limit)
}
