package model

type HomeworkAnswer struct {
	UUIDBase
	UserID            uint           `gorm:"index;not null" json:"-"`
	Question          string         `gorm:"type:text" json:"question"`
	QuestionSpecifier string         `gorm:"size:500" json:"questionSpecifier,omitempty"`
	ImageURL          string         `gorm:"size:500" json:"imageUrl,omitempty"`
	TargetAudience    TargetAudience `gorm:"size:20" json:"targetAudience"`
	Steps             []string       `gorm:"serializer:json;type:text" json:"steps"`
	FinalAnswer       string         `gorm:"type:text" json:"finalAnswer"`
}

func (HomeworkAnswer) TableName() string {
	return "homework_answers"
}
