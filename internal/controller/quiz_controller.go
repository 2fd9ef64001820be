package controller

import (
	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// CreateQuizRequest 三选一：topic / notes / imageData
type CreateQuizRequest struct {
	Topic         string `json:"topic" binding:"max=200"`
	Notes         string `json:"notes"`
	ImageData     string `json:"imageData"`
	QuestionCount int    `json:"questionCount" binding:"omitempty,min=3,max=20"`
}

type AnswerRequest struct {
	QuestionID  uint `json:"questionId" binding:"required"`
	AnswerIndex *int `json:"answerIndex" binding:"required"`
}

// CreateQuiz godoc
// @Summary 生成测验
// @Description 额度用尽时返回 403 和 upgradeRequired；生成失败不消耗额度
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body CreateQuizRequest true "生成参数"
// @Success 201 {object} util.Response{data=service.CreatedQuiz}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response{data=util.UpgradePrompt}
// @Failure 502 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	created, err := c.QuizService.Create(ctx.Request.Context(), userID, service.QuizRequest{
		Topic:         req.Topic,
		Notes:         req.Notes,
		ImageData:     req.ImageData,
		QuestionCount: req.QuestionCount,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, created)
}

// ListQuizzes godoc
// @Summary 测验历史
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response
// @Router /api/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	page, limit := util.ParsePage(ctx.Query("page"), ctx.Query("limit"))
	quizzes, total, err := c.QuizService.List(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, pagination{Items: quizzes, Total: total, Page: page, Limit: limit})
}

// GetQuiz godoc
// @Summary 测验详情
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.Get(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// AnswerQuestion godoc
// @Summary 作答
// @Description 每题只能作答一次，最后一题作答后返回成绩和经验
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param body body AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=service.AnswerResult}
// @Failure 409 {object} util.Response
// @Router /api/quizzes/{id}/answers [post]
func (c *QuizController) AnswerQuestion(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuizService.Answer(ctx.Request.Context(), userID, ctx.Param("id"), req.QuestionID, *req.AnswerIndex)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// AbandonQuiz godoc
// @Summary 放弃测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/quizzes/{id}/abandon [post]
func (c *QuizController) AbandonQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	if err := c.QuizService.Abandon(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": "abandoned"})
}
