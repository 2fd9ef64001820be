package app

import (
	"quizzify_backend/docs"
	"quizzify_backend/internal/config"
	"quizzify_backend/internal/middleware"
	"quizzify_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)
		authGroup.PUT("/account/audience", c.user.SetAudience)
		authGroup.GET("/entitlements", c.progress.GetEntitlements)

		progress := authGroup.Group("/progress")
		{
			progress.GET("", c.progress.GetProgress)
			progress.GET("/milestones", c.progress.GetMilestones)
			progress.GET("/leaderboard", c.progress.GetLeaderboard)
		}

		quizzes := authGroup.Group("/quizzes")
		{
			quizzes.POST("", c.quiz.CreateQuiz)
			quizzes.GET("", c.quiz.ListQuizzes)
			quizzes.GET("/:id", c.quiz.GetQuiz)
			quizzes.POST("/:id/answers", c.quiz.AnswerQuestion)
			quizzes.POST("/:id/abandon", c.quiz.AbandonQuiz)
		}

		flashcards := authGroup.Group("/flashcards")
		{
			flashcards.POST("/generate", c.flashcard.GenerateFlashcards)
			flashcards.POST("/decks", c.flashcard.CreateDeck)
			flashcards.GET("/decks", c.flashcard.ListDecks)
			flashcards.GET("/decks/:id", c.flashcard.GetDeck)
			flashcards.POST("/decks/:id/advance", c.flashcard.Advance)
			flashcards.PUT("/decks/:id/cards/:cardId/mastered", c.flashcard.SetMastered)
		}

		homework := authGroup.Group("/homework")
		{
			homework.GET("", c.homework.History)
			homework.POST("/images", c.homework.UploadImage)
			homework.POST("/solve", c.homework.Solve)
		}
	}

	// 3. 管理员接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware())
	{
		admin.PUT("/users/:id/premium", c.user.SetPremium)
	}
}
