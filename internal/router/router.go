package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
)

type Options struct {
	CORSOrigins   []string
	SessionCookie string
}

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	opts Options,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(opts.CORSOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := middleware.Auth(authService, opts.SessionCookie)

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/user", requireAuth, authHandler.User)

	pomodoro := api.Group("/pomodoro")
	pomodoro.Use(requireAuth)
	pomodoro.GET("/state", timerHandler.GetState)
	pomodoro.POST("/start", timerHandler.Start)
	pomodoro.POST("/pause", timerHandler.Pause)
	pomodoro.POST("/reset", timerHandler.Reset)
	pomodoro.POST("/skip", timerHandler.Skip)
	pomodoro.GET("/sessions", timerHandler.ListSessions)
	pomodoro.POST("/sessions", timerHandler.ImportSession)
	pomodoro.GET("/summary", timerHandler.Summary)
	pomodoro.GET("/ws", timerHandler.WebSocket)

	return engine
}
