// Package progress 经验值与等级计算。
//
// 所有函数均为纯函数：输入总经验或测验成绩，输出等级、进度和奖励，
// 不读写任何存储。持久化由调用方负责。
package progress

import "errors"

const (
	MaxLevel = 100

	baseLevelCost      = 350
	levelCostIncrement = 50
)

var (
	ErrEmptyQuiz       = errors.New("quiz has no questions")
	ErrInvalidScore    = errors.New("correct answers out of range")
	ErrNegativeXPAward = errors.New("xp award must not be negative")
)

// Info 等级详情
type Info struct {
	Level             int     `json:"level"`
	CurrentXP         int     `json:"currentXp"`
	XPForCurrentLevel int     `json:"xpForCurrentLevel"`
	XPForNextLevel    int     `json:"xpForNextLevel"`
	Progress          float64 `json:"progress"`
}

// XPThreshold 返回达到 level 所需的累计经验。
// 从 n 级升到 n+1 级需要 350 + 50*(n-1)。
func XPThreshold(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	// 700 + 50*(n-1) 恒为偶数，整除无误差
	return n * (2*baseLevelCost + (n-1)*levelCostIncrement) / 2
}

// LevelFromXP 根据总经验计算等级，上限 100。
func LevelFromXP(totalXP int) int {
	level := 1
	for level < MaxLevel && XPThreshold(level+1) <= totalXP {
		level++
	}
	return level
}

// LevelInfo 返回等级与当前等级内的进度百分比。
func LevelInfo(totalXP int) Info {
	level := LevelFromXP(totalXP)
	current := XPThreshold(level)
	next := current
	if level < MaxLevel {
		next = XPThreshold(level + 1)
	}

	progress := 100.0
	if level < MaxLevel {
		progress = float64(totalXP-current) / float64(next-current) * 100
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
	}

	return Info{
		Level:             level,
		CurrentXP:         totalXP,
		XPForCurrentLevel: current,
		XPForNextLevel:    next,
		Progress:          progress,
	}
}

// baseAwards 按得分百分比从高到低匹配，命中第一个即返回
var baseAwards = []struct {
	minPercent float64
	xp         int
}{
	{100, 150},
	{60, 100},
	{50, 70},
	{40, 55},
	{30, 40},
	{20, 20},
	{10, 10},
}

// BaseQuizXP 只按正确率计算的基础经验
func BaseQuizXP(correct, total int) (int, error) {
	if total <= 0 {
		return 0, ErrEmptyQuiz
	}
	if correct < 0 || correct > total {
		return 0, ErrInvalidScore
	}

	percentage := float64(correct) / float64(total) * 100
	for _, a := range baseAwards {
		if percentage >= a.minPercent {
			return a.xp, nil
		}
	}
	return 0, nil
}

// QuizXPAward 测验经验 = 基础经验 + 当前等级的里程碑加成。
// 不做去重，同一次测验只能调用一次由调用方保证。
func QuizXPAward(correct, total, currentLevel int) (int, error) {
	base, err := BaseQuizXP(correct, total)
	if err != nil {
		return 0, err
	}
	return base + MilestoneBonusXP(currentLevel), nil
}
