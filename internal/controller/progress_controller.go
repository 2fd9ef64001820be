package controller

import (
	"strconv"

	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService    *service.ProgressService
	EntitlementService *service.EntitlementService
}

func NewProgressController(progressService *service.ProgressService, entitlementService *service.EntitlementService) *ProgressController {
	return &ProgressController{
		ProgressService:    progressService,
		EntitlementService: entitlementService,
	}
}

// GetProgress godoc
// @Summary 等级与经验
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProgressSummary}
// @Router /api/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	summary, err := c.ProgressService.GetSummary(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// GetMilestones godoc
// @Summary 里程碑列表
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.MilestoneStatus}
// @Router /api/progress/milestones [get]
func (c *ProgressController) GetMilestones(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	milestones, err := c.ProgressService.GetMilestones(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, milestones)
}

// GetLeaderboard godoc
// @Summary 经验排行榜
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "数量，默认 10，最大 50"
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Router /api/progress/leaderboard [get]
func (c *ProgressController) GetLeaderboard(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	board, err := c.ProgressService.Leaderboard(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, board)
}

// GetEntitlements godoc
// @Summary 免费额度使用情况
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]entitlement.Decision}
// @Router /api/entitlements [get]
func (c *ProgressController) GetEntitlements(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	summary, err := c.EntitlementService.Summary(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
