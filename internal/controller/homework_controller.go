package controller

import (
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type HomeworkController struct {
	HomeworkService *service.HomeworkService
}

func NewHomeworkController(homeworkService *service.HomeworkService) *HomeworkController {
	return &HomeworkController{HomeworkService: homeworkService}
}

type SolveRequest struct {
	Question          string               `json:"question"`
	ImageURL          string               `json:"imageUrl" binding:"omitempty,url"`
	TargetAudience    model.TargetAudience `json:"targetAudience" binding:"omitempty,oneof=middle-school high-school all-grades"`
	QuestionSpecifier string               `json:"questionSpecifier" binding:"max=500"`
}

// UploadImage godoc
// @Summary 上传作业图片
// @Description 非会员终身 5 张
// @Tags 作业
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "图片"
// @Success 201 {object} util.Response{data=service.UploadedImage}
// @Failure 403 {object} util.Response{data=util.UpgradePrompt}
// @Router /api/homework/images [post]
func (c *HomeworkController) UploadImage(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	uploaded, err := c.HomeworkService.UploadImage(ctx.Request.Context(), userID, file.Filename, file.Header.Get("Content-Type"), file.Size, src)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, uploaded)
}

// Solve godoc
// @Summary 分步解答作业
// @Tags 作业
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body SolveRequest true "题目"
// @Success 200 {object} util.Response{data=model.HomeworkAnswer}
// @Failure 502 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/homework/solve [post]
func (c *HomeworkController) Solve(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req SolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answer, err := c.HomeworkService.Solve(ctx.Request.Context(), userID, service.HomeworkRequest{
		Question:          req.Question,
		ImageURL:          req.ImageURL,
		TargetAudience:    req.TargetAudience,
		QuestionSpecifier: req.QuestionSpecifier,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// History godoc
// @Summary 解答历史
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response
// @Router /api/homework [get]
func (c *HomeworkController) History(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	page, limit := util.ParsePage(ctx.Query("page"), ctx.Query("limit"))
	answers, total, err := c.HomeworkService.History(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, pagination{Items: answers, Total: total, Page: page, Limit: limit})
}
