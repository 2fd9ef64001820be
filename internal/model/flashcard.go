package model

const (
	FreeDeckMaxCards    = 10
	PremiumDeckMaxCards = 20
)

type FlashcardDeck struct {
	UUIDBase
	UserID       uint        `gorm:"index;not null" json:"-"`
	Title        string      `gorm:"size:200" json:"title"`
	CurrentIndex int         `gorm:"default:0" json:"currentIndex"`
	CycleCount   int         `gorm:"default:0" json:"cycleCount"`
	IsFreeTrial  bool        `gorm:"default:false" json:"isFreeTrial"`
	Ended        bool        `gorm:"default:false" json:"ended"`
	Cards        []Flashcard `gorm:"foreignKey:DeckID" json:"cards"`
}

func (FlashcardDeck) TableName() string {
	return "flashcard_decks"
}

type Flashcard struct {
	BaseModel
	DeckID   string `gorm:"index;size:36;not null" json:"-"`
	Position int    `gorm:"not null" json:"position"`
	Front    string `gorm:"type:text" json:"front"`
	Back     string `gorm:"type:text" json:"back"`
	Mastered bool   `gorm:"default:false" json:"mastered"`
}

func (Flashcard) TableName() string {
	return "flashcards"
}
