package service

import (
	"context"
	"errors"

	"quizzify_backend/internal/model"
	"quizzify_backend/internal/progress"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/util"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 50
)

// ProgressSummary 进度页数据
type ProgressSummary struct {
	progress.Info
	TotalXP        int                 `json:"totalXp"`
	BonusQuizzes   int                 `json:"bonusQuizzes"`
	BonusXPPerQuiz int                 `json:"bonusXpPerQuiz"`
	NextMilestone  *progress.Milestone `json:"nextMilestone,omitempty"`
	IsPremium      bool                `json:"isPremium"`
}

type MilestoneStatus struct {
	progress.Milestone
	Reached bool `json:"reached"`
}

type LeaderboardEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	XP    int    `json:"xp"`
	Level int    `json:"level"`
}

type ProgressService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	QuizRepo     *repository.QuizRepository
}

func NewProgressService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository, quizRepo *repository.QuizRepository) *ProgressService {
	return &ProgressService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
		QuizRepo:     quizRepo,
	}
}

func (s *ProgressService) WithTx(tx *gorm.DB) *ProgressService {
	return &ProgressService{
		UserRepo:     s.UserRepo.WithTx(tx),
		ProgressRepo: s.ProgressRepo.WithTx(tx),
		QuizRepo:     s.QuizRepo.WithTx(tx),
	}
}

func (s *ProgressService) snapshot(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.ProgressRepo.FindSnapshot(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func nextMilestone(level int) *progress.Milestone {
	for _, m := range progress.Milestones() {
		if m.Level > level {
			m := m
			return &m
		}
	}
	return nil
}

func (s *ProgressService) GetSummary(ctx context.Context, userID uint) (*ProgressSummary, error) {
	user, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := progress.LevelInfo(user.XP)
	return &ProgressSummary{
		Info:           info,
		TotalXP:        user.XP,
		BonusQuizzes:   progress.BonusQuizQuota(info.Level),
		BonusXPPerQuiz: progress.MilestoneBonusXP(info.Level),
		NextMilestone:  nextMilestone(info.Level),
		IsPremium:      user.IsPremium,
	}, nil
}

func (s *ProgressService) GetMilestones(ctx context.Context, userID uint) ([]MilestoneStatus, error) {
	user, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	level := progress.LevelFromXP(user.XP)
	var out []MilestoneStatus
	for _, m := range progress.Milestones() {
		out = append(out, MilestoneStatus{Milestone: m, Reached: level >= m.Level})
	}
	return out, nil
}

func (s *ProgressService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	users, err := s.UserRepo.FindTopByXP(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:  i + 1,
			Name:  u.Name,
			XP:    u.XP,
			Level: progress.LevelFromXP(u.XP),
		})
	}
	return entries, nil
}

// AwardQuizXP 必须在事务中调用。测验已发放过经验时返回 nil, nil。
// 调用方在提交后负责缓存失效和指标上报。
func (s *ProgressService) AwardQuizXP(ctx context.Context, userID uint, quiz *model.Quiz) (*progress.Outcome, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	before := user.Progress()
	award, err := progress.QuizXPAward(quiz.CorrectCount(), len(quiz.Questions), before.Level)
	if err != nil {
		return nil, err
	}

	marked, err := s.QuizRepo.MarkXPAwarded(ctx, quiz.ID, award)
	if err != nil {
		return nil, err
	}
	if !marked {
		logger.Log.Info("quiz xp already awarded", zap.String("quiz_id", quiz.ID))
		return nil, nil
	}

	_, outcome, err := progress.Apply(before, award)
	if err != nil {
		return nil, err
	}

	stored, err := s.ProgressRepo.AddXP(ctx, userID, award)
	if err != nil {
		return nil, err
	}
	if stored.XP != outcome.TotalXP {
		// 其他事务同时写入了经验，以库中结果为准
		outcome.TotalXP = stored.XP
		outcome.NewLevel = stored.Level
		outcome.LeveledUp = stored.Level > outcome.PreviousLevel
		outcome.MilestonesCrossed = progress.MilestonesBetween(outcome.PreviousLevel, stored.Level)
		outcome.BonusQuizzes = stored.BonusQuizzes
	}
	return &outcome, nil
}

// ReportAward 事务提交后调用
func (s *ProgressService) ReportAward(ctx context.Context, userID uint, outcome *progress.Outcome) {
	s.ProgressRepo.Invalidate(ctx, userID)
	if outcome == nil {
		return
	}
	monitoring.XPAwarded.Add(float64(outcome.XPEarned))
	if outcome.LeveledUp {
		monitoring.LevelUps.Inc()
		logger.Log.Info("level up",
			zap.Uint("user_id", userID),
			zap.Int("from", outcome.PreviousLevel),
			zap.Int("to", outcome.NewLevel),
			zap.Ints("milestones", outcome.MilestonesCrossed))
	}
}
