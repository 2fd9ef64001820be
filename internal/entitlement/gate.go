// Package entitlement 免费额度与高级会员的准入判断。
//
// CanPerform 只读不写；RecordUsage 返回递增后的新状态。持久化层必须把
// 检查和递增作为一次原子的条件更新执行，见 Decision.Limit。
package entitlement

import (
	"errors"
	"fmt"
)

type Action string

const (
	ImageUpload         Action = "image_upload"
	QuizCreate          Action = "quiz_create"
	FlashcardDeckCreate Action = "flashcard_deck_create"
)

const (
	FreeImageLimit = 5
	FreeQuizLimit  = 5
	// 非会员仅有一次免费卡组
	FreeDeckTrials = 1

	Unlimited = -1
)

var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrUnknownAction = errors.New("unknown action")
)

// Usage 终身计数，只增不减
type Usage struct {
	Images         int `json:"images"`
	Quizzes        int `json:"quizzes"`
	FlashcardDecks int `json:"flashcardDecks"`
}

type BonusQuota struct {
	Quizzes int `json:"quizzes"`
}

type State struct {
	IsPremium        bool       `json:"isPremium"`
	Used             Usage      `json:"used"`
	BonusQuota       BonusQuota `json:"bonusQuota"`
	HasUsedFreeTrial bool       `json:"hasUsedFreeTrial"`
}

// Decision Limit 为 Unlimited 时不受计数约束
type Decision struct {
	Action    Action `json:"action"`
	Allowed   bool   `json:"allowed"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

func (a Action) Valid() bool {
	switch a {
	case ImageUpload, QuizCreate, FlashcardDeckCreate:
		return true
	}
	return false
}

// Actions 所有受限操作，顺序固定
func Actions() []Action {
	return []Action{ImageUpload, QuizCreate, FlashcardDeckCreate}
}

// Check 计算某个操作的准入结果，不修改 state
func Check(action Action, state State) (Decision, error) {
	if !action.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	used, limit := usedAndLimit(action, state)
	d := Decision{Action: action, Used: used, Limit: limit}
	if limit == Unlimited {
		d.Allowed = true
		d.Remaining = Unlimited
		return d, nil
	}

	d.Remaining = limit - used
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	d.Allowed = used < limit
	return d, nil
}

func usedAndLimit(action Action, state State) (used, limit int) {
	switch action {
	case ImageUpload:
		used, limit = state.Used.Images, FreeImageLimit
	case QuizCreate:
		used, limit = state.Used.Quizzes, FreeQuizLimit+state.BonusQuota.Quizzes
	case FlashcardDeckCreate:
		if state.HasUsedFreeTrial {
			used = 1
		}
		limit = FreeDeckTrials
	}
	if state.IsPremium {
		limit = Unlimited
	}
	return used, limit
}

// CanPerform 会员或未用完额度时允许；未知操作一律拒绝
func CanPerform(action Action, state State) bool {
	d, err := Check(action, state)
	return err == nil && d.Allowed
}

// RecordUsage 返回计数递增后的状态。必须先通过 CanPerform，否则返回 ErrQuotaExceeded。
func RecordUsage(action Action, state State) (State, error) {
	d, err := Check(action, state)
	if err != nil {
		return state, err
	}
	if !d.Allowed {
		return state, ErrQuotaExceeded
	}

	next := state
	switch action {
	case ImageUpload:
		next.Used.Images++
	case QuizCreate:
		next.Used.Quizzes++
	case FlashcardDeckCreate:
		next.Used.FlashcardDecks++
		if !state.IsPremium {
			next.HasUsedFreeTrial = true
		}
	}
	return next, nil
}

// Summarize 返回全部操作的额度概览
func Summarize(state State) []Decision {
	actions := Actions()
	out := make([]Decision, 0, len(actions))
	for _, a := range actions {
		d, _ := Check(a, state)
		out = append(out, d)
	}
	return out
}
