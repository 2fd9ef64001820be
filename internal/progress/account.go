package progress

// Progress 账户进度快照，持久化记录的值对象
type Progress struct {
	XP           int `json:"xp"`
	Level        int `json:"level"`
	BonusQuizzes int `json:"bonusQuizzes"`
}

// Outcome 一次经验发放的结果
type Outcome struct {
	XPEarned          int   `json:"xpEarned"`
	TotalXP           int   `json:"totalXp"`
	PreviousLevel     int   `json:"previousLevel"`
	NewLevel          int   `json:"newLevel"`
	LeveledUp         bool  `json:"leveledUp"`
	MilestonesCrossed []int `json:"milestonesCrossed,omitempty"`
	BonusQuizzes      int   `json:"bonusQuizzes"`
}

// FromXP 由总经验推导完整进度
func FromXP(totalXP int) Progress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelFromXP(totalXP)
	return Progress{
		XP:           totalXP,
		Level:        level,
		BonusQuizzes: BonusQuizQuota(level),
	}
}

// Apply 在 p 的基础上加上 award，等级和奖励次数随之重新计算
func Apply(p Progress, award int) (Progress, Outcome, error) {
	if award < 0 {
		return p, Outcome{}, ErrNegativeXPAward
	}

	prevLevel := p.Level
	if prevLevel < 1 {
		prevLevel = LevelFromXP(p.XP)
	}

	next := FromXP(p.XP + award)
	return next, Outcome{
		XPEarned:          award,
		TotalXP:           next.XP,
		PreviousLevel:     prevLevel,
		NewLevel:          next.Level,
		LeveledUp:         next.Level > prevLevel,
		MilestonesCrossed: MilestonesBetween(prevLevel, next.Level),
		BonusQuizzes:      next.BonusQuizzes,
	}, nil
}
