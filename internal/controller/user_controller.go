package controller

import (
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

type AudienceRequest struct {
	TargetAudience model.TargetAudience `json:"targetAudience" binding:"required,oneof=middle-school high-school all-grades"`
}

type PremiumRequest struct {
	IsPremium *bool `json:"isPremium" binding:"required"`
}

// SetAudience godoc
// @Summary 设置作业讲解受众
// @Tags 账户
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body AudienceRequest true "受众"
// @Success 200 {object} util.Response
// @Router /api/account/audience [put]
func (c *UserController) SetAudience(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req AudienceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.UserService.SetTargetAudience(ctx.Request.Context(), userID, req.TargetAudience); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"targetAudience": req.TargetAudience})
}

// SetPremium godoc
// @Summary 管理员设置会员状态
// @Tags 管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param body body PremiumRequest true "会员状态"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/users/{id}/premium [put]
func (c *UserController) SetPremium(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	if id == 0 {
		util.BadRequest(ctx, "invalid user id")
		return
	}
	var req PremiumRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.UserService.SetPremium(ctx.Request.Context(), id, *req.IsPremium); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id, "isPremium": *req.IsPremium})
}
