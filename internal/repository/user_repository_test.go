package repository

import (
	"context"
	"sync"
	"testing"

	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/testkit"
)

func TestConsumeUsageRespectsLimit(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := testkit.CreateUser(t, db, "free@example.com", nil)

	for i := 0; i < entitlement.FreeQuizLimit; i++ {
		ok, err := repo.ConsumeUsage(ctx, u.ID, entitlement.QuizCreate, entitlement.FreeQuizLimit)
		if err != nil || !ok {
			t.Fatalf("consume %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := repo.ConsumeUsage(ctx, u.ID, entitlement.QuizCreate, entitlement.FreeQuizLimit)
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if ok {
		t.Fatal("consume over limit should be rejected")
	}

	got, _ := repo.FindByID(ctx, u.ID)
	if got.QuizzesCreated != entitlement.FreeQuizLimit {
		t.Fatalf("quizzes_created = %d", got.QuizzesCreated)
	}
}

func TestConsumeUsageConcurrentRequestsDoNotOverGrant(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewUserRepository(db)
	u := testkit.CreateUser(t, db, "tabs@example.com", func(u *model.User) { u.ImageUploadsUsed = 3 })

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeUsage(context.Background(), u.ID, entitlement.ImageUpload, entitlement.FreeImageLimit)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 2 {
		t.Fatalf("granted = %d, want 2", granted)
	}
	got, _ := repo.FindByID(context.Background(), u.ID)
	if got.ImageUploadsUsed != entitlement.FreeImageLimit {
		t.Fatalf("image_uploads_used = %d", got.ImageUploadsUsed)
	}
}

func TestConsumeUsageFreeTrialOnce(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := testkit.CreateUser(t, db, "deck@example.com", nil)

	ok, err := repo.ConsumeUsage(ctx, u.ID, entitlement.FlashcardDeckCreate, entitlement.FreeDeckTrials)
	if err != nil || !ok {
		t.Fatalf("first trial: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ConsumeUsage(ctx, u.ID, entitlement.FlashcardDeckCreate, entitlement.FreeDeckTrials)
	if err != nil || ok {
		t.Fatalf("second trial: ok=%v err=%v", ok, err)
	}

	got, _ := repo.FindByID(ctx, u.ID)
	if !got.HasUsedFreeTrial || got.FlashcardDecksCreated != 1 {
		t.Fatalf("user = %+v", got)
	}
}

func TestConsumeUsageUnlimitedRequiresPremium(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := testkit.CreateUser(t, db, "p@example.com", func(u *model.User) { u.IsPremium = true; u.QuizzesCreated = 50 })

	ok, err := repo.ConsumeUsage(ctx, u.ID, entitlement.QuizCreate, entitlement.Unlimited)
	if err != nil || !ok {
		t.Fatalf("premium consume: ok=%v err=%v", ok, err)
	}

	if err := repo.SetPremium(ctx, u.ID, false); err != nil {
		t.Fatalf("SetPremium: %v", err)
	}
	ok, err = repo.ConsumeUsage(ctx, u.ID, entitlement.QuizCreate, entitlement.Unlimited)
	if err != nil || ok {
		t.Fatalf("revoked premium consume: ok=%v err=%v", ok, err)
	}

	got, _ := repo.FindByID(ctx, u.ID)
	if got.QuizzesCreated != 51 {
		t.Fatalf("quizzes_created = %d, want 51", got.QuizzesCreated)
	}
}

func TestConsumeUsageUnknownAction(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewUserRepository(db)
	if _, err := repo.ConsumeUsage(context.Background(), 1, entitlement.Action("x"), 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindTopByXP(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewUserRepository(db)
	testkit.CreateUser(t, db, "a@example.com", func(u *model.User) { u.XP = 10 })
	testkit.CreateUser(t, db, "b@example.com", func(u *model.User) { u.XP = 900 })
	testkit.CreateUser(t, db, "c@example.com", func(u *model.User) { u.XP = 400 })

	users, err := repo.FindTopByXP(context.Background(), 2)
	if err != nil {
		t.Fatalf("FindTopByXP: %v", err)
	}
	if len(users) != 2 || users[0].Email != "b@example.com" || users[1].Email != "c@example.com" {
		t.Fatalf("unexpected order: %+v", users)
	}
}
