package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/testkit"
	"quizzify_backend/internal/util"
)

// answerAll 按 pick 作答全部题目，返回最后一次结果
func answerAll(t *testing.T, f *fixture, userID uint, quiz *model.Quiz, pick func(i int) int) *AnswerResult {
	t.Helper()
	var last *AnswerResult
	for i, q := range quiz.Questions {
		res, err := f.quizzes.Answer(context.Background(), userID, quiz.ID, q.ID, pick(i))
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		last = res
	}
	return last
}

func TestQuizPerfectScoreAwardsXPOnce(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(10)))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "perfect@example.com", nil)

	created, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "Photosynthesis", QuestionCount: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Decision.Used != 1 || created.Decision.Remaining != entitlement.FreeQuizLimit-1 {
		t.Fatalf("decision = %+v", created.Decision)
	}

	res := answerAll(t, f, u.ID, created.Quiz, func(int) int { return 0 })
	if !res.Completed || *res.Score != 10 {
		t.Fatalf("result = %+v", res)
	}
	if res.Outcome == nil || res.Outcome.XPEarned != 150 || res.Outcome.NewLevel != 1 || res.Outcome.BonusQuizzes != 0 {
		t.Fatalf("outcome = %+v", res.Outcome)
	}

	got, _ := f.users.FindByID(ctx, u.ID)
	if got.XP != 150 || got.Level != 1 || got.BonusQuizzes != 0 || got.QuizzesCreated != 1 {
		t.Fatalf("user = %+v", got)
	}

	// 重复提交最后一题不会再次发放
	last := created.Quiz.Questions[len(created.Quiz.Questions)-1]
	if _, err := f.quizzes.Answer(ctx, u.ID, created.Quiz.ID, last.ID, 0); !errors.Is(err, util.ErrQuizClosed) {
		t.Fatalf("re-answer err = %v", err)
	}
	got, _ = f.users.FindByID(ctx, u.ID)
	if got.XP != 150 {
		t.Fatalf("xp after re-answer = %d", got.XP)
	}

	quiz, _ := f.quizzes.Get(ctx, u.ID, created.Quiz.ID)
	if quiz.Status != model.QuizCompleted || !quiz.XPAwarded || quiz.XPEarned != 150 {
		t.Fatalf("quiz = %+v", quiz)
	}
}

func TestQuizLevelUpCrossesMilestone(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(5)))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "lvl@example.com", func(u *model.User) {
		u.XP = 1690
		u.Level = 4
	})

	created, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Notes: "cell biology"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Quiz.Source != model.QuizFromNotes {
		t.Fatalf("source = %s", created.Quiz.Source)
	}

	// 3/5 = 60% -> 100 XP
	res := answerAll(t, f, u.ID, created.Quiz, func(i int) int {
		if i < 3 {
			return 0
		}
		return 1
	})
	if res.Outcome.XPEarned != 100 || !res.Outcome.LeveledUp || res.Outcome.NewLevel != 5 {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	if len(res.Outcome.MilestonesCrossed) != 1 || res.Outcome.MilestonesCrossed[0] != 5 {
		t.Fatalf("milestones = %v", res.Outcome.MilestonesCrossed)
	}

	got, _ := f.users.FindByID(ctx, u.ID)
	if got.Level != 5 || got.BonusQuizzes != 3 {
		t.Fatalf("user = %+v", got)
	}

	// 等级 5 起可额外创建 3 个测验
	d, err := f.entitlements.Precheck(ctx, u.ID, entitlement.QuizCreate)
	if err != nil || d.Limit != entitlement.FreeQuizLimit+3 {
		t.Fatalf("decision = %+v err = %v", d, err)
	}
}

func TestQuizQuotaExceededSkipsGateway(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(5)))
	u := testkit.CreateUser(t, f.db, "limit@example.com", func(u *model.User) { u.QuizzesCreated = entitlement.FreeQuizLimit })

	_, err := f.quizzes.Create(context.Background(), u.ID, QuizRequest{Topic: "x"})
	var qe *QuotaExceededError
	if !errors.As(err, &qe) || !errors.Is(err, entitlement.ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}
	if qe.Decision.Remaining != 0 || qe.Decision.Action != entitlement.QuizCreate {
		t.Fatalf("decision = %+v", qe.Decision)
	}
	if n := f.aiCalls.Load(); n != 0 {
		t.Fatalf("gateway called %d times", n)
	}
}

func TestQuizBonusQuotaGrantsExtraQuizzes(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(3)))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "bonus@example.com", func(u *model.User) {
		u.QuizzesCreated = entitlement.FreeQuizLimit
		u.BonusQuizzes = 3
		u.XP = 1700
		u.Level = 5
	})

	for i := 0; i < 3; i++ {
		if _, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "x"}); err != nil {
			t.Fatalf("bonus quiz %d: %v", i, err)
		}
	}
	if _, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "x"}); !errors.Is(err, entitlement.ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestQuizGenerationFailureConsumesNothing(t *testing.T) {
	f := newFixture(t, statusReply(http.StatusTooManyRequests))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "fail@example.com", nil)

	if _, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "x"}); !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("err = %v", err)
	}
	got, _ := f.users.FindByID(ctx, u.ID)
	if got.QuizzesCreated != 0 {
		t.Fatalf("quizzes_created = %d", got.QuizzesCreated)
	}
	if _, total, _ := f.quizzes.List(ctx, u.ID, 1, 10); total != 0 {
		t.Fatalf("quizzes stored = %d", total)
	}
}

func TestQuizAnswerValidation(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(3)))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "val@example.com", nil)
	other := testkit.CreateUser(t, f.db, "other@example.com", nil)

	created, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	quiz := created.Quiz
	q := quiz.Questions[0]

	if _, err := f.quizzes.Answer(ctx, other.ID, quiz.ID, q.ID, 0); !errors.Is(err, util.ErrQuizNotFound) {
		t.Fatalf("other user err = %v", err)
	}
	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, q.ID, 4); !errors.Is(err, util.ErrAnswerOutOfRange) {
		t.Fatalf("range err = %v", err)
	}
	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, 99999, 0); !errors.Is(err, util.ErrQuestionNotFound) {
		t.Fatalf("question err = %v", err)
	}

	res, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, q.ID, 1)
	if err != nil || res.Correct || res.Completed || res.CorrectAnswer != 0 {
		t.Fatalf("res = %+v err = %v", res, err)
	}
	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, q.ID, 0); !errors.Is(err, util.ErrQuestionAlreadyAnswered) {
		t.Fatalf("re-answer err = %v", err)
	}
}

// 并发作答最后两题时，两个事务都可能看不到对方的答案而未结算。
// 这种全部作答但仍在进行中的测验，再次作答任一题都会补做结算。
func TestQuizFullyAnsweredInProgressIsSettled(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(3)))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "race@example.com", nil)

	created, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	quiz := created.Quiz
	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, quiz.Questions[0].ID, 0); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	for _, q := range quiz.Questions[1:] {
		if ok, err := f.quizzes.QuizRepo.SetAnswer(ctx, q.ID, 0); err != nil || !ok {
			t.Fatalf("SetAnswer %d: ok=%v err=%v", q.ID, ok, err)
		}
	}

	stuck, _ := f.quizzes.Get(ctx, u.ID, quiz.ID)
	if !stuck.AllAnswered() || stuck.Status != model.QuizInProgress {
		t.Fatalf("setup quiz = %+v", stuck)
	}

	last := quiz.Questions[2]
	res, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, last.ID, 1)
	if err != nil {
		t.Fatalf("settling answer: %v", err)
	}
	// 报告的是已保存的答案
	if !res.Correct || !res.Completed || res.Score == nil || *res.Score != 3 {
		t.Fatalf("result = %+v", res)
	}
	if res.Outcome == nil || res.Outcome.XPEarned <= 0 {
		t.Fatalf("outcome = %+v", res.Outcome)
	}

	got, _ := f.users.FindByID(ctx, u.ID)
	if got.XP != res.Outcome.XPEarned {
		t.Fatalf("user xp = %d, want %d", got.XP, res.Outcome.XPEarned)
	}
	settled, _ := f.quizzes.Get(ctx, u.ID, quiz.ID)
	if settled.Status != model.QuizCompleted || !settled.XPAwarded {
		t.Fatalf("quiz = %+v", settled)
	}

	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, last.ID, 0); !errors.Is(err, util.ErrQuizClosed) {
		t.Fatalf("answer after settle err = %v", err)
	}
	got, _ = f.users.FindByID(ctx, u.ID)
	if got.XP != res.Outcome.XPEarned {
		t.Fatalf("xp changed after settle: %d", got.XP)
	}
}

func TestQuizAbandonAwardsNothing(t *testing.T) {
	f := newFixture(t, chatReply(quizJSON(3)))
	ctx := context.Background()
	u := testkit.CreateUser(t, f.db, "quit@example.com", nil)

	created, err := f.quizzes.Create(ctx, u.ID, QuizRequest{Topic: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	quiz := created.Quiz
	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, quiz.Questions[0].ID, 0); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if err := f.quizzes.Abandon(ctx, u.ID, quiz.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if err := f.quizzes.Abandon(ctx, u.ID, quiz.ID); !errors.Is(err, util.ErrQuizClosed) {
		t.Fatalf("second abandon err = %v", err)
	}
	if err := f.quizzes.Abandon(ctx, u.ID, "missing"); !errors.Is(err, util.ErrQuizNotFound) {
		t.Fatalf("missing abandon err = %v", err)
	}
	if _, err := f.quizzes.Answer(ctx, u.ID, quiz.ID, quiz.Questions[1].ID, 0); !errors.Is(err, util.ErrQuizClosed) {
		t.Fatalf("answer after abandon err = %v", err)
	}

	got, _ := f.users.FindByID(ctx, u.ID)
	if got.XP != 0 || got.QuizzesCreated != 1 {
		t.Fatalf("user = %+v", got)
	}
}
