package model

import "time"

type QuizStatus string

const (
	QuizInProgress QuizStatus = "in_progress"
	QuizCompleted  QuizStatus = "completed"
	QuizAbandoned  QuizStatus = "abandoned"
)

type QuizSource string

const (
	QuizFromTopic QuizSource = "topic"
	QuizFromNotes QuizSource = "notes"
	QuizFromImage QuizSource = "image"
)

// Quiz 一次测验作答，生成时创建，全部作答后结束并发放一次经验
type Quiz struct {
	UUIDBase
	UserID      uint           `gorm:"index;not null" json:"-"`
	Title       string         `gorm:"size:200" json:"title"`
	Topic       string         `gorm:"size:200" json:"topic"`
	Source      QuizSource     `gorm:"size:20" json:"source"`
	Status      QuizStatus     `gorm:"size:20;index;default:'in_progress'" json:"status"`
	Score       *int           `json:"score,omitempty"`
	XPAwarded   bool           `gorm:"default:false" json:"xpAwarded"`
	XPEarned    int            `gorm:"default:0" json:"xpEarned"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Questions   []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID        string   `gorm:"index;size:36;not null" json:"-"`
	Position      int      `gorm:"not null" json:"position"`
	Question      string   `gorm:"type:text" json:"question"`
	Options       []string `gorm:"serializer:json;type:text" json:"options"`
	CorrectAnswer int      `json:"correctAnswerIndex"`
	Explanation   string   `gorm:"type:text" json:"explanation"`
	UserAnswer    *int     `json:"userAnswerIndex,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// AllAnswered 空测验视为未完成
func (q *Quiz) AllAnswered() bool {
	if len(q.Questions) == 0 {
		return false
	}
	for _, question := range q.Questions {
		if question.UserAnswer == nil {
			return false
		}
	}
	return true
}

func (q *Quiz) CorrectCount() int {
	n := 0
	for _, question := range q.Questions {
		if question.UserAnswer != nil && *question.UserAnswer == question.CorrectAnswer {
			n++
		}
	}
	return n
}

// Question 返回指向 Questions 中元素的指针，不存在时为 nil
func (q *Quiz) Question(id uint) *QuizQuestion {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}
