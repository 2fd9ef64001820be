package service

import (
	"context"
	"errors"
	"strings"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateDeckRequest struct {
	Title string          `json:"title" binding:"required,max=200"`
	Cards []GeneratedCard `json:"cards" binding:"required,min=1"`
}

type CreatedDeck struct {
	Deck     *model.FlashcardDeck `json:"deck"`
	Decision entitlement.Decision `json:"decision"`
}

// DeckPosition 翻到下一张后的状态
type DeckPosition struct {
	Deck    *model.FlashcardDeck `json:"deck"`
	Card    *model.Flashcard     `json:"card,omitempty"`
	Wrapped bool                 `json:"wrapped"`
}

type FlashcardService struct {
	DB            *gorm.DB
	FlashcardRepo *repository.FlashcardRepository
	UserRepo      *repository.UserRepository
	Entitlements  *EntitlementService
	AI            *AIService
}

func NewFlashcardService(db *gorm.DB, flashcardRepo *repository.FlashcardRepository, userRepo *repository.UserRepository, entitlements *EntitlementService, ai *AIService) *FlashcardService {
	return &FlashcardService{
		DB:            db,
		FlashcardRepo: flashcardRepo,
		UserRepo:      userRepo,
		Entitlements:  entitlements,
		AI:            ai,
	}
}

// Generate 仅生成预览卡片，不消耗额度
func (s *FlashcardService) Generate(ctx context.Context, req FlashcardRequest) ([]GeneratedCard, error) {
	ctx, span := tracing.Tracer.Start(ctx, "flashcard.generate")
	defer span.End()
	return s.AI.GenerateFlashcards(ctx, req)
}

func cleanCards(cards []GeneratedCard) []GeneratedCard {
	out := make([]GeneratedCard, 0, len(cards))
	for _, c := range cards {
		front, back := strings.TrimSpace(c.Front), strings.TrimSpace(c.Back)
		if front != "" && back != "" {
			out = append(out, GeneratedCard{Front: front, Back: back})
		}
	}
	return out
}

func maxCards(d entitlement.Decision) int {
	if d.Limit == entitlement.Unlimited {
		return model.PremiumDeckMaxCards
	}
	return model.FreeDeckMaxCards
}

// CreateDeck 非会员只能创建一次免费试用卡组，最多 10 张；会员不限次数，最多 20 张
func (s *FlashcardService) CreateDeck(ctx context.Context, userID uint, req CreateDeckRequest) (*CreatedDeck, error) {
	ctx, span := tracing.Tracer.Start(ctx, "flashcard.create_deck")
	defer span.End()

	cards := cleanCards(req.Cards)
	if len(cards) == 0 {
		return nil, util.ErrDeckHasNoCard
	}

	precheck, err := s.Entitlements.Precheck(ctx, userID, entitlement.FlashcardDeckCreate)
	if err != nil {
		return nil, err
	}
	if len(cards) > maxCards(precheck) {
		return nil, util.ErrTooManyCards
	}

	deck := &model.FlashcardDeck{
		UserID: userID,
		Title:  strings.TrimSpace(req.Title),
	}
	for i, c := range cards {
		deck.Cards = append(deck.Cards, model.Flashcard{Position: i + 1, Front: c.Front, Back: c.Back})
	}

	var decision entitlement.Decision
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.Entitlements.WithTx(tx).Consume(ctx, userID, entitlement.FlashcardDeckCreate)
		if err != nil {
			return err
		}
		// 会员身份可能在预检后被撤销
		if len(cards) > maxCards(d) {
			return util.ErrTooManyCards
		}
		decision = d
		deck.IsFreeTrial = d.Limit != entitlement.Unlimited
		return s.FlashcardRepo.WithTx(tx).CreateDeck(ctx, deck)
	})
	if err != nil {
		return nil, err
	}
	s.Entitlements.ProgressRepo.Invalidate(ctx, userID)

	logger.Log.Info("flashcard deck created",
		zap.Uint("user_id", userID),
		zap.String("deck_id", deck.ID),
		zap.Bool("free_trial", deck.IsFreeTrial),
		zap.Int("cards", len(deck.Cards)))
	return &CreatedDeck{Deck: deck, Decision: decision}, nil
}

func (s *FlashcardService) GetDeck(ctx context.Context, userID uint, deckID string) (*model.FlashcardDeck, error) {
	deck, err := s.FlashcardRepo.FindDeckForUser(ctx, deckID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrDeckNotFound
		}
		return nil, err
	}
	return deck, nil
}

func (s *FlashcardService) ListDecks(ctx context.Context, userID uint) ([]model.FlashcardDeck, error) {
	return s.FlashcardRepo.ListDecks(ctx, userID)
}

// Advance 翻到下一张，末尾回到第一张并计一轮。并发翻页只有一个成功，其余返回 ErrDeckMoved。
// 免费试用卡组学完一轮即结束，除非账户已升级为会员。
func (s *FlashcardService) Advance(ctx context.Context, userID uint, deckID string) (*DeckPosition, error) {
	deck, err := s.GetDeck(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	if deck.Ended {
		return nil, util.ErrDeckEnded
	}
	if len(deck.Cards) == 0 {
		return nil, util.ErrDeckHasNoCard
	}

	pos := &DeckPosition{Deck: deck}
	fromIndex, fromCycle := deck.CurrentIndex, deck.CycleCount
	deck.CurrentIndex++
	if deck.CurrentIndex >= len(deck.Cards) {
		deck.CurrentIndex = 0
		deck.CycleCount++
		pos.Wrapped = true

		if deck.IsFreeTrial {
			user, err := s.UserRepo.FindByID(ctx, userID)
			if err != nil {
				return nil, err
			}
			deck.Ended = !user.IsPremium
		}
	}

	saved, err := s.FlashcardRepo.SavePosition(ctx, deck, fromIndex, fromCycle)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, util.ErrDeckMoved
	}
	if !deck.Ended {
		pos.Card = &deck.Cards[deck.CurrentIndex]
	}
	return pos, nil
}

func (s *FlashcardService) SetMastered(ctx context.Context, userID uint, deckID string, cardID uint, mastered bool) error {
	if _, err := s.GetDeck(ctx, userID, deckID); err != nil {
		return err
	}
	ok, err := s.FlashcardRepo.SetMastered(ctx, deckID, cardID, mastered)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrCardNotFound
	}
	return nil
}
