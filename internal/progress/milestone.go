package progress

import "fmt"

const (
	milestoneStep        = 5
	lastRegularMilestone = 95
	bonusQuizzesPerStep  = 3
	bonusXPPerStep       = 200
	masterBonusQuizzes   = 1000
)

// Milestone 里程碑奖励，BonusQuizzes 与 BonusXPPerQuiz 为该级单独的增量
type Milestone struct {
	Level          int    `json:"level"`
	BonusQuizzes   int    `json:"bonusQuizzes"`
	BonusXPPerQuiz int    `json:"bonusXpPerQuiz"`
	Description    string `json:"description"`
}

var milestones = buildMilestones()

func buildMilestones() []Milestone {
	table := make([]Milestone, 0, lastRegularMilestone/milestoneStep+1)
	for level := milestoneStep; level <= lastRegularMilestone; level += milestoneStep {
		cumulative := level / milestoneStep * bonusXPPerStep
		table = append(table, Milestone{
			Level:          level,
			BonusQuizzes:   bonusQuizzesPerStep,
			BonusXPPerQuiz: bonusXPPerStep,
			Description:    fmt.Sprintf("+%d free quizzes & +%d XP per quiz (total: +%d XP/quiz)", bonusQuizzesPerStep, bonusXPPerStep, cumulative),
		})
	}
	table = append(table, Milestone{
		Level:          MaxLevel,
		BonusQuizzes:   masterBonusQuizzes,
		BonusXPPerQuiz: 0,
		Description:    fmt.Sprintf("+%d free quizzes - Master status!", masterBonusQuizzes),
	})
	return table
}

// Milestones 返回只读里程碑表的副本
func Milestones() []Milestone {
	out := make([]Milestone, len(milestones))
	copy(out, milestones)
	return out
}

func IsMilestoneLevel(level int) bool {
	if level == MaxLevel {
		return true
	}
	return level >= milestoneStep && level <= lastRegularMilestone && level%milestoneStep == 0
}

func reachedSteps(level int) int {
	if level > lastRegularMilestone {
		level = lastRegularMilestone
	}
	if level < milestoneStep {
		return 0
	}
	return level / milestoneStep
}

// MilestoneBonusXP 每次测验额外经验：5~95 级每个里程碑 +200
func MilestoneBonusXP(level int) int {
	return reachedSteps(level) * bonusXPPerStep
}

// BonusQuizQuota 累计奖励的免费测验次数，100 级额外 +1000
func BonusQuizQuota(level int) int {
	quota := reachedSteps(level) * bonusQuizzesPerStep
	if level >= MaxLevel {
		quota += masterBonusQuizzes
	}
	return quota
}

// MilestonesBetween 返回 (from, to] 区间内跨过的里程碑等级
func MilestonesBetween(from, to int) []int {
	var crossed []int
	for _, m := range milestones {
		if m.Level > from && m.Level <= to {
			crossed = append(crossed, m.Level)
		}
	}
	return crossed
}
