package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker-api/internal/cache"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/handlers"
	"github.com/yukikurage/task-tracker-api/internal/middleware"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/services"
)

// setup wires repositories, services and handlers, then registers all routes.
func (a *App) setup(r *gin.Engine) error {
	userRepo := repository.NewUserRepository(a.db)
	taskRepo := repository.NewTaskRepository(a.db)
	notificationRepo := repository.NewNotificationRepository(a.db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(a.db)

	tokenService, err := services.NewTokenService(a.cfg, a.log)
	if err != nil {
		return err
	}

	authService := services.NewAuthService(userRepo, refreshTokenRepo, tokenService, services.AuthConfig{
		BcryptCost:      a.cfg.BcryptCost,
		InvitationCode:  a.cfg.InvitationCode,
		AdminUserID:     a.cfg.AdminUserID,
		RefreshTokenTTL: a.cfg.RefreshTokenTTL(),
	}, a.log)

	notificationService := services.NewNotificationService(notificationRepo, a.hub, a.log)

	var aiService *services.AIService
	if a.cfg.OpenAIAPIKey != "" {
		aiService = services.NewAIService(a.cfg.OpenAIAPIKey, a.cfg.OpenAIModel, a.log)
	}

	taskService := services.NewTaskService(taskRepo, userRepo, notificationService, aiService, a.log)
	userService := services.NewUserService(userRepo, authService, a.log)
	if a.redis != nil {
		taskCache := cache.NewTaskCache(a.redis, a.cfg.TaskCacheTTL)
		taskService.WithCache(taskCache)
		userService.WithCache(taskCache)
	}

	authHandler := handlers.NewAuthHandler(authService)
	taskHandler := handlers.NewTaskHandler(taskService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	userHandler := handlers.NewUserHandler(userService)
	hubHandler := handlers.NewHubHandler(a.hub, tokenService, a.log)

	requireAuth := middleware.RequireAuth(tokenService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task Tracker API is running",
		})
	})

	r.GET(constants.NotificationHubPath, hubHandler.Connect)

	api := r.Group("/api")
	{
		// Auth routes (public except /me)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", requireAuth, authHandler.GetCurrentUser)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/suggest", taskHandler.SuggestTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}

		// Notification routes (protected)
		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
		}

		// User routes (protected)
		users := api.Group("/users")
		users.Use(requireAuth)
		{
			users.GET("", userHandler.ListUsers)
			users.DELETE("/:id", middleware.RequireAdmin(authService), userHandler.DeleteUser)
		}
	}

	return nil
}
