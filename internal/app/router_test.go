package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"quizzify_backend/internal/config"
	"quizzify_backend/internal/entitlement"
	"quizzify_backend/internal/model"
	"quizzify_backend/internal/testkit"
	"quizzify_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t   *testing.T
	app *App
	db  *gorm.DB
}

// 三道题，正确答案都是 0
const threeQuestions = `[
 {"question":"Q1?","options":["a","b","c","d"],"correctAnswer":0,"explanation":"e"},
 {"question":"Q2?","options":["a","b","c","d"],"correctAnswer":0,"explanation":"e"},
 {"question":"Q3?","options":["a","b","c","d"],"correctAnswer":0,"explanation":"e"}
]`

func newHarness(t *testing.T) *harness {
	t.Helper()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": threeQuestions}},
			},
		})
	}))
	t.Cleanup(gateway.Close)

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.RateLimit.MaxRequests = 1000
	cfg.RateLimit.WindowMinutes = 1
	cfg.Storage.Type = util.StorageLocal
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Storage.PublicURL = "http://localhost"
	cfg.AI = config.AIConfig{BaseURL: gateway.URL, APIKey: "k", Model: "m", TimeoutSeconds: 5}

	db := testkit.NewDB(t)
	rdb, _ := testkit.NewRedis(t)
	return &harness{t: t, app: New(cfg, db, rdb), db: db}
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()

	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			h.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

// login 返回令牌和用户 ID
func (h *harness) login(email string) (string, uint) {
	h.t.Helper()

	code, env := h.do(http.MethodPost, "/api/login", "", gin.H{"email": email, "password": "password123"})
	if code != http.StatusOK {
		h.t.Fatalf("login %s: status %d %s", email, code, env.Message)
	}
	var data struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decode(h.t, env, &data)
	if data.Token == "" {
		h.t.Fatal("login returned empty token")
	}
	return data.Token, data.User.ID
}

func (h *harness) signUp(email string) (string, uint) {
	h.t.Helper()

	code, env := h.do(http.MethodPost, "/api/register", "", gin.H{"name": "Tester", "email": email, "password": "password123"})
	if code != http.StatusCreated {
		h.t.Fatalf("register %s: status %d %s", email, code, env.Message)
	}
	return h.login(email)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	if code, env := h.do(http.MethodGet, "/api/health", "", nil); code != http.StatusOK {
		t.Fatalf("health: status %d %s", code, env.Message)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/profile", "/api/progress", "/api/quizzes", "/api/entitlements"} {
		if code, _ := h.do(http.MethodGet, path, "", nil); code != http.StatusUnauthorized {
			t.Errorf("%s without token: status %d", path, code)
		}
		if code, _ := h.do(http.MethodGet, path, "not-a-token", nil); code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: status %d", path, code)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.signUp("dup@example.com")

	code, _ := h.do(http.MethodPost, "/api/register", "", gin.H{"name": "Again", "email": "DUP@example.com", "password": "password123"})
	if code != http.StatusConflict {
		t.Errorf("duplicate register: status %d, want 409", code)
	}

	code, _ = h.do(http.MethodPost, "/api/login", "", gin.H{"email": "dup@example.com", "password": "wrong-password"})
	if code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", code)
	}
}

func TestQuizFlowAwardsXP(t *testing.T) {
	h := newHarness(t)
	token, _ := h.signUp("flow@example.com")

	code, env := h.do(http.MethodPost, "/api/quizzes", token, gin.H{"topic": "Photosynthesis", "questionCount": 3})
	if code != http.StatusCreated {
		t.Fatalf("create quiz: status %d %s", code, env.Message)
	}
	var created struct {
		Quiz     model.Quiz           `json:"quiz"`
		Decision entitlement.Decision `json:"decision"`
	}
	decode(t, env, &created)
	if len(created.Quiz.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(created.Quiz.Questions))
	}
	if created.Decision.Used != 1 {
		t.Errorf("decision used = %d, want 1", created.Decision.Used)
	}

	path := fmt.Sprintf("/api/quizzes/%s/answers", created.Quiz.ID)
	for _, q := range created.Quiz.Questions {
		code, env = h.do(http.MethodPost, path, token, gin.H{"questionId": q.ID, "answerIndex": 0})
		if code != http.StatusOK {
			t.Fatalf("answer %d: status %d %s", q.ID, code, env.Message)
		}
	}

	var result struct {
		Completed bool `json:"completed"`
		Score     *int `json:"score"`
		Outcome   *struct {
			XPEarned int `json:"xpEarned"`
		} `json:"outcome"`
	}
	decode(t, env, &result)
	if !result.Completed || result.Score == nil || *result.Score != 3 {
		t.Fatalf("unexpected final answer result: %s", env.Data)
	}
	if result.Outcome == nil || result.Outcome.XPEarned <= 0 {
		t.Fatalf("expected xp outcome, got %s", env.Data)
	}

	// 已结束的测验不能再作答
	code, _ = h.do(http.MethodPost, path, token, gin.H{"questionId": created.Quiz.Questions[0].ID, "answerIndex": 1})
	if code != http.StatusConflict {
		t.Errorf("answer after completion: status %d, want 409", code)
	}

	code, env = h.do(http.MethodGet, "/api/progress", token, nil)
	if code != http.StatusOK {
		t.Fatalf("progress: status %d", code)
	}
	var summary struct {
		TotalXP int `json:"totalXp"`
	}
	decode(t, env, &summary)
	if summary.TotalXP != result.Outcome.XPEarned {
		t.Errorf("total xp = %d, want %d", summary.TotalXP, result.Outcome.XPEarned)
	}
}

func TestQuizQuotaReturnsUpgradePrompt(t *testing.T) {
	h := newHarness(t)
	token, userID := h.signUp("quota@example.com")

	err := h.db.Model(&model.User{}).Where("id = ?", userID).Update("quizzes_created", entitlement.FreeQuizLimit).Error
	if err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	code, env := h.do(http.MethodPost, "/api/quizzes", token, gin.H{"topic": "Fractions"})
	if code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", code)
	}
	var prompt util.UpgradePrompt
	decode(t, env, &prompt)
	if !prompt.UpgradeRequired {
		t.Error("expected upgradeRequired")
	}
	if prompt.Decision.Action != entitlement.QuizCreate || prompt.Decision.Used != entitlement.FreeQuizLimit {
		t.Errorf("unexpected decision %+v", prompt.Decision)
	}
}

func TestAdminCanGrantPremium(t *testing.T) {
	h := newHarness(t)
	studentToken, studentID := h.signUp("student@example.com")
	_, adminID := h.signUp("admin@example.com")

	path := fmt.Sprintf("/api/admin/users/%d/premium", studentID)
	if code, _ := h.do(http.MethodPut, path, studentToken, gin.H{"isPremium": true}); code != http.StatusForbidden {
		t.Fatalf("student granting premium: status %d, want 403", code)
	}

	if err := h.db.Model(&model.User{}).Where("id = ?", adminID).Update("role", model.Admin).Error; err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	// 角色写在令牌里，需要重新登录
	adminToken, _ := h.login("admin@example.com")

	if code, env := h.do(http.MethodPut, path, adminToken, gin.H{"isPremium": true}); code != http.StatusOK {
		t.Fatalf("admin granting premium: status %d %s", code, env.Message)
	}

	code, env := h.do(http.MethodGet, "/api/entitlements", studentToken, nil)
	if code != http.StatusOK {
		t.Fatalf("entitlements: status %d", code)
	}
	var decisions []entitlement.Decision
	decode(t, env, &decisions)
	if len(decisions) == 0 {
		t.Fatal("no decisions returned")
	}
	for _, d := range decisions {
		if d.Limit != entitlement.Unlimited || !d.Allowed {
			t.Errorf("premium decision %+v", d)
		}
	}
}

func TestReloadConfigRunsCallbacks(t *testing.T) {
	h := newHarness(t)

	var got *config.Config
	h.app.RegisterConfigCallback(func(c *config.Config) { got = c })

	next := *h.app.Config
	next.RateLimit.MaxRequests = 5
	h.app.ReloadConfig(&next)

	if got == nil || got.RateLimit.MaxRequests != 5 {
		t.Fatalf("callback not invoked with new config: %+v", got)
	}
}
