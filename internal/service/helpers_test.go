package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"quizzify_backend/internal/config"
	"quizzify_backend/internal/repository"
	"quizzify_backend/internal/testkit"

	"gorm.io/gorm"
)

type fixture struct {
	db           *gorm.DB
	users        *repository.UserRepository
	progressRepo *repository.ProgressRepository
	entitlements *EntitlementService
	progress     *ProgressService
	quizzes      *QuizService
	flashcards   *FlashcardService
	homework     *HomeworkService
	storageDir   string
	aiCalls      *atomic.Int32
}

// newFixture 用内存库和假的 AI 网关组装全部服务
func newFixture(t *testing.T, gateway http.HandlerFunc) *fixture {
	t.Helper()

	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gateway(w, r)
	}))
	t.Cleanup(srv.Close)

	db := testkit.NewDB(t)
	rdb, _ := testkit.NewRedis(t)
	dir := t.TempDir()

	users := repository.NewUserRepository(db)
	progressRepo := repository.NewProgressRepository(db, rdb)
	quizRepo := repository.NewQuizRepository(db)

	ai := NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model", TimeoutSeconds: 5})
	storage := &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: dir, PublicURL: "http://localhost"}}}
	entitlements := NewEntitlementService(users, progressRepo)
	progressService := NewProgressService(users, progressRepo, quizRepo)

	return &fixture{
		db:           db,
		users:        users,
		progressRepo: progressRepo,
		entitlements: entitlements,
		progress:     progressService,
		quizzes:      NewQuizService(db, quizRepo, entitlements, progressService, ai),
		flashcards:   NewFlashcardService(db, repository.NewFlashcardRepository(db), users, entitlements, ai),
		homework:     NewHomeworkService(repository.NewHomeworkRepository(db), users, entitlements, storage, ai),
		storageDir:   dir,
		aiCalls:      calls,
	}
}

// chatReply 返回 OpenAI 兼容的响应体
func chatReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func statusReply(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, code)
	}
}

// quizJSON n 道题，正确答案都是 0
func quizJSON(n int) string {
	items := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]interface{}{
			"question":      fmt.Sprintf("Question %d?", i+1),
			"options":       []string{"right", "wrong", "also wrong", "nope"},
			"correctAnswer": 0,
			"explanation":   "Because.",
		})
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func cardsJSON(n int) string {
	items := make([]GeneratedCard, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, GeneratedCard{Front: fmt.Sprintf("front %d", i), Back: fmt.Sprintf("back %d", i)})
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func makeCards(n int) []GeneratedCard {
	var cards []GeneratedCard
	json.Unmarshal([]byte(cardsJSON(n)), &cards)
	return cards
}
