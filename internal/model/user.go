package model

import (
	"time"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/progress"
)

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

type TargetAudience string

const (
	AudienceMiddleSchool TargetAudience = "middle-school"
	AudienceHighSchool   TargetAudience = "high-school"
	AudienceAllGrades    TargetAudience = "all-grades"
)

func (a TargetAudience) Valid() bool {
	switch a {
	case AudienceMiddleSchool, AudienceHighSchool, AudienceAllGrades:
		return true
	}
	return false
}

// User 账户记录，xp/level/bonus_quizzes 是进度的唯一可信来源
// swagger:model User
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;unique;not null" json:"email"`
	Password string   `gorm:"size:100;not null" json:"-"`
	Role     UserRole `gorm:"size:20;default:'student'" json:"role"`

	IsPremium    bool `gorm:"default:false" json:"isPremium"`
	XP           int  `gorm:"default:0" json:"xp"`
	Level        int  `gorm:"default:1" json:"level"`
	BonusQuizzes int  `gorm:"default:0" json:"bonusQuizzes"`

	// 终身计数，不重置
	ImageUploadsUsed      int  `gorm:"default:0" json:"imageUploadsUsed"`
	QuizzesCreated        int  `gorm:"default:0" json:"quizzesCreated"`
	FlashcardDecksCreated int  `gorm:"default:0" json:"flashcardDecksCreated"`
	HasUsedFreeTrial      bool `gorm:"default:false" json:"hasUsedFreeTrial"`

	TargetAudience TargetAudience `gorm:"size:20;default:'all-grades'" json:"targetAudience"`
	LastLogin      *time.Time     `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) Progress() progress.Progress {
	level := u.Level
	if level < 1 {
		level = 1
	}
	return progress.Progress{XP: u.XP, Level: level, BonusQuizzes: u.BonusQuizzes}
}

func (u *User) EntitlementState() entitlement.State {
	return entitlement.State{
		IsPremium: u.IsPremium,
		Used: entitlement.Usage{
			Images:         u.ImageUploadsUsed,
			Quizzes:        u.QuizzesCreated,
			FlashcardDecks: u.FlashcardDecksCreated,
		},
		BonusQuota:       entitlement.BonusQuota{Quizzes: u.BonusQuizzes},
		HasUsedFreeTrial: u.HasUsedFreeTrial,
	}
}
