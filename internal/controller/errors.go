package controller

import (
	"errors"
	"net/http"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/progress"
	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError 将服务层错误映射为 HTTP 响应
func respondError(ctx *gin.Context, err error) {
	var quota *service.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		util.UpgradeRequired(ctx, quota.Decision)
	case errors.Is(err, entitlement.ErrQuotaExceeded):
		util.Error(ctx, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrAIUnavailable):
		util.Error(ctx, http.StatusServiceUnavailable, "AI service is temporarily unavailable, please try again in a moment")
	case errors.Is(err, service.ErrGenerationFailed):
		util.Error(ctx, http.StatusBadGateway, "AI generation failed, please try again")

	case errors.Is(err, service.ErrInvalidQuizRequest),
		errors.Is(err, service.ErrInvalidFlashcardRequest),
		errors.Is(err, service.ErrInvalidHomeworkRequest),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrInvalidAudience),
		errors.Is(err, progress.ErrEmptyQuiz),
		errors.Is(err, progress.ErrInvalidScore),
		errors.Is(err, util.ErrAnswerOutOfRange),
		errors.Is(err, util.ErrTooManyCards),
		errors.Is(err, util.ErrDeckHasNoCard):
		util.BadRequest(ctx, err.Error())

	case errors.Is(err, util.ErrQuizClosed),
		errors.Is(err, util.ErrQuestionAlreadyAnswered),
		errors.Is(err, util.ErrDeckEnded),
		errors.Is(err, util.ErrDeckMoved):
		util.Error(ctx, http.StatusConflict, err.Error())

	case errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrDeckNotFound),
		errors.Is(err, util.ErrCardNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())

	default:
		util.LogInternalError(ctx, err)
	}
}

func currentUserID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	return claims.UserID, true
}

// pagination 分页列表响应
type pagination struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
