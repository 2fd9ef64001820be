package controller

import (
	"quizzify_backend/internal/service"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type FlashcardController struct {
	FlashcardService *service.FlashcardService
}

func NewFlashcardController(flashcardService *service.FlashcardService) *FlashcardController {
	return &FlashcardController{FlashcardService: flashcardService}
}

type GenerateFlashcardsRequest struct {
	Notes     string `json:"notes"`
	ImageData string `json:"imageData"`
}

type MasteredRequest struct {
	Mastered *bool `json:"mastered" binding:"required"`
}

// GenerateFlashcards godoc
// @Summary AI 生成卡片预览
// @Description 不消耗额度，保存卡组时才计入
// @Tags 卡片
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body GenerateFlashcardsRequest true "笔记或图片"
// @Success 200 {object} util.Response{data=[]service.GeneratedCard}
// @Router /api/flashcards/generate [post]
func (c *FlashcardController) GenerateFlashcards(ctx *gin.Context) {
	var req GenerateFlashcardsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	cards, err := c.FlashcardService.Generate(ctx.Request.Context(), service.FlashcardRequest{
		Notes:     req.Notes,
		ImageData: req.ImageData,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"flashcards": cards})
}

// CreateDeck godoc
// @Summary 保存卡组
// @Description 非会员仅一次免费试用卡组（最多 10 张），会员不限（最多 20 张）
// @Tags 卡片
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateDeckRequest true "卡组"
// @Success 201 {object} util.Response{data=service.CreatedDeck}
// @Failure 403 {object} util.Response{data=util.UpgradePrompt}
// @Router /api/flashcards/decks [post]
func (c *FlashcardController) CreateDeck(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req service.CreateDeckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	created, err := c.FlashcardService.CreateDeck(ctx.Request.Context(), userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, created)
}

// ListDecks godoc
// @Summary 卡组列表
// @Tags 卡片
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.FlashcardDeck}
// @Router /api/flashcards/decks [get]
func (c *FlashcardController) ListDecks(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	decks, err := c.FlashcardService.ListDecks(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, decks)
}

// GetDeck godoc
// @Summary 卡组详情
// @Tags 卡片
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "卡组ID"
// @Success 200 {object} util.Response{data=model.FlashcardDeck}
// @Router /api/flashcards/decks/{id} [get]
func (c *FlashcardController) GetDeck(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	deck, err := c.FlashcardService.GetDeck(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, deck)
}

// Advance godoc
// @Summary 下一张卡片
// @Tags 卡片
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "卡组ID"
// @Success 200 {object} util.Response{data=service.DeckPosition}
// @Failure 409 {object} util.Response "免费试用已结束"
// @Router /api/flashcards/decks/{id}/advance [post]
func (c *FlashcardController) Advance(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	pos, err := c.FlashcardService.Advance(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, pos)
}

// SetMastered godoc
// @Summary 标记已掌握
// @Tags 卡片
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "卡组ID"
// @Param cardId path int true "卡片ID"
// @Param body body MasteredRequest true "状态"
// @Success 200 {object} util.Response
// @Router /api/flashcards/decks/{id}/cards/{cardId}/mastered [put]
func (c *FlashcardController) SetMastered(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req MasteredRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	cardID := util.MustParseUint(ctx.Param("cardId"))
	if err := c.FlashcardService.SetMastered(ctx.Request.Context(), userID, ctx.Param("id"), cardID, *req.Mastered); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"cardId": cardID, "mastered": *req.Mastered})
}
