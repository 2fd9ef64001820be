package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"quizzify_backend/internal/config"
	"quizzify_backend/internal/model"
	"quizzify_backend/pkg/logger"
	"quizzify_backend/pkg/monitoring"
	"quizzify_backend/pkg/tracing"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrAIUnavailable 网关限流(429)或额度耗尽(402)，用户可稍后重试
	ErrAIUnavailable = errors.New("AI service temporarily unavailable")
	// ErrGenerationFailed 网关错误、空响应或内容无法解析
	ErrGenerationFailed = errors.New("AI generation failed")

	ErrInvalidQuizRequest      = errors.New("either notes, imageData or topic is required")
	ErrInvalidFlashcardRequest = errors.New("either notes or imageData is required")
	ErrInvalidHomeworkRequest  = errors.New("question or imageUrl is required")
)

const (
	DefaultQuestionCount = 5
	MinQuestionCount     = 3
	MaxQuestionCount     = 20

	MaxGeneratedFlashcards = 20

	// 网关响应体上限
	maxResponseBytes = 4 << 20

	defaultExplanation   = "No explanation provided."
	homeworkFallbackStep = "The AI provided a solution:"
	homeworkNoAnswer     = "See steps above"
)

const (
	fnGenerateQuiz       = "generate-quiz"
	fnGenerateFlashcards = "generate-flashcards"
	fnSolveHomework      = "solve-homework"
)

// AIChatMessage Content 为字符串或多模态分片数组
type AIChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type QuizRequest struct {
	Topic         string `json:"topic"`
	Notes         string `json:"notes"`
	ImageData     string `json:"imageData"`
	QuestionCount int    `json:"questionCount"`
}

type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswerIndex"`
	Explanation   string   `json:"explanation"`
}

type FlashcardRequest struct {
	Notes     string `json:"notes"`
	ImageData string `json:"imageData"`
}

type GeneratedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type HomeworkRequest struct {
	Question          string               `json:"question"`
	ImageURL          string               `json:"imageUrl"`
	TargetAudience    model.TargetAudience `json:"targetAudience"`
	QuestionSpecifier string               `json:"questionSpecifier"`
}

type HomeworkSolution struct {
	Steps       []string `json:"steps"`
	FinalAnswer string   `json:"finalAnswer"`
}

// AIService OpenAI 兼容网关客户端，配置可热更新
type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{Timeout: aiTimeout(cfg)},
	}
}

func aiTimeout(cfg config.AIConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// UpdateConfig 配置热加载时调用
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.client = &http.Client{Timeout: aiTimeout(cfg)}
}

func (s *AIService) snapshot() (config.AIConfig, *http.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.client
}

// imageDataURL 裸 base64 按 jpeg 处理
func imageDataURL(data string) string {
	if strings.HasPrefix(data, "data:") {
		return data
	}
	return "data:image/jpeg;base64," + data
}

func withImage(text, url string) AIChatMessage {
	return AIChatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &imageRef{URL: url}},
		},
	}
}

// complete 调用一次网关并返回第一条回复内容，不做重试
func (s *AIService) complete(ctx context.Context, function string, messages []AIChatMessage) (content string, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ai."+function)
	defer span.End()

	cfg, client := s.snapshot()
	span.SetAttributes(attribute.String("ai.model", cfg.Model))

	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrAIUnavailable):
			outcome = "unavailable"
		case err != nil:
			outcome = "failed"
			span.RecordError(err)
		}
		monitoring.AIRequests.WithLabelValues(function, outcome).Inc()
		monitoring.AIRequestDuration.WithLabelValues(function).Observe(time.Since(start).Seconds())
	}()

	jsonData, err := json.Marshal(ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		logger.Log.Warn("AI gateway request failed", zap.String("function", function), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired:
		logger.Log.Warn("AI gateway unavailable", zap.String("function", function), zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w (status %d)", ErrAIUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		logger.Log.Error("AI gateway error",
			zap.String("function", function),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 500)))
		return "", fmt.Errorf("%w: gateway status %d", ErrGenerationFailed, resp.StatusCode)
	case readErr != nil:
		logger.Log.Warn("AI gateway response read failed", zap.String("function", function), zap.Error(readErr))
		return "", fmt.Errorf("%w: read response: %v", ErrGenerationFailed, readErr)
	case len(body) > maxResponseBytes:
		logger.Log.Warn("AI gateway response too large", zap.String("function", function))
		return "", fmt.Errorf("%w: response exceeds %d bytes", ErrGenerationFailed, maxResponseBytes)
	}

	content = gjson.GetBytes(body, "choices.0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: no content in AI response", ErrGenerationFailed)
	}
	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var fencePattern = regexp.MustCompile("```(?:json)?\\n?")

func stripFences(content string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(content, ""))
}

// extractArray 取内容中第一个 '[' 到最后一个 ']' 之间的 JSON 数组
func extractArray(content string) (gjson.Result, bool) {
	clean := stripFences(content)
	if start, end := strings.Index(clean, "["), strings.LastIndex(clean, "]"); start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	if !gjson.Valid(clean) {
		return gjson.Result{}, false
	}
	arr := gjson.Parse(clean)
	return arr, arr.IsArray()
}

func normalizeQuestionCount(n int) int {
	switch {
	case n <= 0:
		return DefaultQuestionCount
	case n < MinQuestionCount:
		return MinQuestionCount
	case n > MaxQuestionCount:
		return MaxQuestionCount
	}
	return n
}

const quizSystemPrompt = `You are an expert quiz generator. Create multiple choice quiz questions based on the provided content.

Your response must be a valid JSON array with this exact structure:
[
  {
    "question": "The question text?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correctAnswer": 0,
    "explanation": "Brief explanation of why this is correct"
  }
]

Guidelines:
- Generate exactly %d questions
- Each question must have 2-4 options (prefer 4 options for variety)
- correctAnswer is the index (0-based) of the correct option
- Make questions clear and educational
- Include a mix of difficulty levels
- Explanations should be concise but helpful
- Focus ONLY on the content provided - do not make up facts

IMPORTANT: Return ONLY the JSON array, no markdown code blocks or other formatting.`

// GenerateQuiz 生成测验题目。优先级：图片 > 笔记 > 主题
func (s *AIService) GenerateQuiz(ctx context.Context, req QuizRequest) ([]GeneratedQuestion, error) {
	count := normalizeQuestionCount(req.QuestionCount)

	messages := []AIChatMessage{
		{Role: "system", Content: fmt.Sprintf(quizSystemPrompt, count)},
	}
	switch {
	case req.ImageData != "":
		messages = append(messages, withImage(
			fmt.Sprintf("Create %d quiz questions based on the content in this image. Focus on key concepts, facts, and important details visible in the image.", count),
			imageDataURL(req.ImageData)))
	case strings.TrimSpace(req.Notes) != "":
		messages = append(messages, AIChatMessage{Role: "user", Content: fmt.Sprintf("Create %d quiz questions based on these notes:\n\n%s", count, req.Notes)})
	case strings.TrimSpace(req.Topic) != "":
		messages = append(messages, AIChatMessage{Role: "user", Content: fmt.Sprintf("Create %d quiz questions about: %s", count, req.Topic)})
	default:
		return nil, ErrInvalidQuizRequest
	}

	content, err := s.complete(ctx, fnGenerateQuiz, messages)
	if err != nil {
		return nil, err
	}

	questions := ParseQuizQuestions(content, count)
	if len(questions) == 0 {
		logger.Log.Warn("AI quiz response had no valid questions", zap.String("content", truncate(content, 500)))
		return nil, fmt.Errorf("%w: no valid questions", ErrGenerationFailed)
	}
	logger.Log.Info("quiz generated", zap.Int("questions", len(questions)))
	return questions, nil
}

// ParseQuizQuestions 过滤无效题目：缺题干、选项不在 2~4 个、答案下标非数字或越界
func ParseQuizQuestions(content string, limit int) []GeneratedQuestion {
	arr, ok := extractArray(content)
	if !ok {
		return nil
	}

	var out []GeneratedQuestion
	arr.ForEach(func(_, item gjson.Result) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}

		question := strings.TrimSpace(item.Get("question").String())
		opts := item.Get("options")
		answer := item.Get("correctAnswer")
		if !answer.Exists() {
			answer = item.Get("correctAnswerIndex")
		}
		if question == "" || !opts.IsArray() || answer.Type != gjson.Number {
			return true
		}

		options := make([]string, 0, 4)
		for _, o := range opts.Array() {
			options = append(options, strings.TrimSpace(o.String()))
		}
		idx := int(answer.Int())
		if len(options) < 2 || len(options) > 4 || float64(idx) != answer.Num || idx < 0 || idx >= len(options) {
			return true
		}

		explanation := strings.TrimSpace(item.Get("explanation").String())
		if explanation == "" {
			explanation = defaultExplanation
		}
		out = append(out, GeneratedQuestion{
			Question:      question,
			Options:       options,
			CorrectAnswer: idx,
			Explanation:   explanation,
		})
		return true
	})
	return out
}

const flashcardFormat = `Return ONLY a valid JSON array with no additional text, in this exact format:
[
  {"front": "Question 1?", "back": "Answer 1"},
  {"front": "Question 2?", "back": "Answer 2"}
]`

// GenerateFlashcards 生成 5~20 张卡片
func (s *AIService) GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]GeneratedCard, error) {
	var messages []AIChatMessage
	switch {
	case req.ImageData != "":
		messages = append(messages, withImage(
			"Analyze this image of notes/text and create flashcards from it. Generate between 5 and 20 flashcards based on the content. Each flashcard should have a clear question on the front and a concise answer on the back.\n\n"+
				flashcardFormat+
				"\n\nFocus on key concepts, definitions, formulas, and important facts from the image.",
			imageDataURL(req.ImageData)))
	case strings.TrimSpace(req.Notes) != "":
		messages = append(messages,
			AIChatMessage{Role: "system", Content: "You are a helpful study assistant that creates effective flashcards from notes. Always respond with valid JSON only."},
			AIChatMessage{Role: "user", Content: "Create flashcards from these notes. Generate between 5 and 20 flashcards based on the content complexity. Each flashcard should have a clear question on the front and a concise answer on the back.\n\nNotes:\n" +
				req.Notes + "\n\n" + flashcardFormat +
				"\n\nFocus on key concepts, definitions, formulas, and important facts."},
		)
	default:
		return nil, ErrInvalidFlashcardRequest
	}

	content, err := s.complete(ctx, fnGenerateFlashcards, messages)
	if err != nil {
		return nil, err
	}

	cards := ParseFlashcards(content)
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no valid flashcards", ErrGenerationFailed)
	}
	return cards, nil
}

// ParseFlashcards 丢弃缺正反面的卡片，最多 20 张
func ParseFlashcards(content string) []GeneratedCard {
	arr, ok := extractArray(content)
	if !ok {
		return nil
	}

	var out []GeneratedCard
	arr.ForEach(func(_, item gjson.Result) bool {
		if len(out) >= MaxGeneratedFlashcards {
			return false
		}
		front := strings.TrimSpace(item.Get("front").String())
		back := strings.TrimSpace(item.Get("back").String())
		if front != "" && back != "" {
			out = append(out, GeneratedCard{Front: front, Back: back})
		}
		return true
	})
	return out
}

func audienceContext(a model.TargetAudience) string {
	if a == model.AudienceMiddleSchool {
		return "Explain concepts simply, as if teaching a middle school student. Use basic vocabulary and relatable examples."
	}
	return "Provide detailed explanations suitable for high school or college level. Use proper mathematical notation and terminology."
}

const homeworkSystemPrompt = `You are an expert tutor helping students solve homework problems. %s

Your response must be a valid JSON object with this exact structure:
{
  "steps": ["Step 1: ...", "Step 2: ...", ...],
  "finalAnswer": "The final answer here"
}

Guidelines:
- Break down the solution into clear, numbered steps
- Each step should explain what you're doing and why
- The finalAnswer should be concise and directly answer the question
- For math problems, show your work in each step
- %s
- NEVER use LaTeX notation or dollar signs ($) for math. Write variables and equations in plain text (e.g., write "x = 2k" not "$x = 2k$")
- Focus ONLY on solving the specific problem shown. Do not give study tips or memorization advice.

IMPORTANT: Return ONLY the JSON object, no markdown code blocks or other formatting.`

// SolveHomework 分步解答
func (s *AIService) SolveHomework(ctx context.Context, req HomeworkRequest) (*HomeworkSolution, error) {
	if strings.TrimSpace(req.Question) == "" && req.ImageURL == "" {
		return nil, ErrInvalidHomeworkRequest
	}

	questionContext := "Solve all problems shown."
	if req.QuestionSpecifier != "" {
		questionContext = "The user specifically wants help with: " + req.QuestionSpecifier
	}

	messages := []AIChatMessage{
		{Role: "system", Content: fmt.Sprintf(homeworkSystemPrompt, audienceContext(req.TargetAudience), questionContext)},
	}
	if req.ImageURL != "" {
		text := req.Question
		if text == "" {
			text = "Please solve this problem from the image."
		}
		messages = append(messages, withImage(text, req.ImageURL))
	} else {
		messages = append(messages, AIChatMessage{Role: "user", Content: req.Question})
	}

	content, err := s.complete(ctx, fnSolveHomework, messages)
	if err != nil {
		return nil, err
	}
	return ParseHomeworkSolution(content), nil
}

// ParseHomeworkSolution 无法解析时整段内容作为答案
func ParseHomeworkSolution(content string) *HomeworkSolution {
	clean := stripFences(content)
	if !gjson.Valid(clean) || !gjson.Parse(clean).IsObject() {
		return &HomeworkSolution{
			Steps:       []string{homeworkFallbackStep},
			FinalAnswer: content,
		}
	}

	parsed := gjson.Parse(clean)
	solution := &HomeworkSolution{Steps: []string{}}
	for _, step := range parsed.Get("steps").Array() {
		solution.Steps = append(solution.Steps, step.String())
	}
	solution.FinalAnswer = parsed.Get("finalAnswer").String()
	if solution.FinalAnswer == "" {
		solution.FinalAnswer = homeworkNoAnswer
	}
	return solution
}
