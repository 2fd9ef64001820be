package repository

import (
	"context"

	"quizzify_backend/internal/model"

	"gorm.io/gorm"
)

type FlashcardRepository struct {
	DB *gorm.DB
}

func NewFlashcardRepository(db *gorm.DB) *FlashcardRepository {
	return &FlashcardRepository{DB: db}
}

func (r *FlashcardRepository) WithTx(tx *gorm.DB) *FlashcardRepository {
	return &FlashcardRepository{DB: tx}
}

func orderedCards(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *FlashcardRepository) CreateDeck(ctx context.Context, deck *model.FlashcardDeck) error {
	return r.DB.WithContext(ctx).Create(deck).Error
}

func (r *FlashcardRepository) FindDeckForUser(ctx context.Context, id string, userID uint) (*model.FlashcardDeck, error) {
	var deck model.FlashcardDeck
	err := r.DB.WithContext(ctx).
		Preload("Cards", orderedCards).
		Where("id = ? AND user_id = ?", id, userID).
		First(&deck).Error
	if err != nil {
		return nil, err
	}
	return &deck, nil
}

func (r *FlashcardRepository) ListDecks(ctx context.Context, userID uint) ([]model.FlashcardDeck, error) {
	var decks []model.FlashcardDeck
	err := r.DB.WithContext(ctx).
		Preload("Cards", orderedCards).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&decks).Error
	return decks, err
}

// SavePosition 只更新学习进度字段，条件是位置仍为 fromIndex/fromCycle。
// 每次翻页都会改变位置，影响行数为 0 即表示已被其他请求推进。
func (r *FlashcardRepository) SavePosition(ctx context.Context, deck *model.FlashcardDeck, fromIndex, fromCycle int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.FlashcardDeck{}).
		Where("id = ? AND current_index = ? AND cycle_count = ? AND ended = ?", deck.ID, fromIndex, fromCycle, false).
		Updates(map[string]interface{}{
			"current_index": deck.CurrentIndex,
			"cycle_count":   deck.CycleCount,
			"ended":         deck.Ended,
		})
	return res.RowsAffected == 1, res.Error
}

// SetMastered 返回卡片是否存在。MySQL 在值未变化时影响行数为 0，需要再查一次。
func (r *FlashcardRepository) SetMastered(ctx context.Context, deckID string, cardID uint, mastered bool) (bool, error) {
	db := r.DB.WithContext(ctx).Model(&model.Flashcard{}).
		Where("id = ? AND deck_id = ?", cardID, deckID).
		Session(&gorm.Session{})
	res := db.Update("mastered", mastered)
	if res.Error != nil || res.RowsAffected == 1 {
		return res.RowsAffected == 1, res.Error
	}

	var n int64
	err := db.Count(&n).Error
	return n == 1, err
}
