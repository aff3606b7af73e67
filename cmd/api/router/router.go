package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"toolhub/cmd/api/auth"
	"toolhub/cmd/api/handlers"
	"toolhub/cmd/api/middleware"
	"toolhub/cmd/api/services"
	"toolhub/internal/trace"
)

type Options struct {
	Chat *services.ChatService
	// JWT 가 nil 이면 익명 방문자만 허용한다.
	JWT *auth.JWTManager
	// Ping 은 /health 에서 저장소 상태를 확인한다. nil 이면 항상 ok.
	Ping func(ctx context.Context) error
}

func New(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestTrace())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if opts.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := opts.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongo": "down", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// v1 routes
	api := r.Group("/api/v1", auth.OptionalVisitor(opts.JWT))
	{
		api.POST("/tools/:tool_id/chat/sessions", handlers.CreateSessionHandler(opts.Chat))

		sessions := api.Group("/chat/sessions/:sid")
		sessions.GET("", handlers.GetSessionHandler(opts.Chat))
		sessions.DELETE("", handlers.CloseSessionHandler(opts.Chat))
		sessions.GET("/events", handlers.SessionEventsHandler(opts.Chat))
		sessions.POST("/messages", handlers.SubmitMessageHandler(opts.Chat))
		sessions.POST("/stop", handlers.StopTypingHandler(opts.Chat))
		sessions.POST("/reset", handlers.ResetSessionHandler(opts.Chat))
		sessions.POST("/sponsors/:mid/click", handlers.SponsorClickHandler(opts.Chat))
	}

	return r
}

// WithCORS 는 브라우저 클라이언트를 위해 CORS 처리를 감싼다.
// 빈 origins 는 모든 origin 을 허용한다.
func WithCORS(h http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, trace.HeaderSpanID},
		AllowCredentials: true,
	}).Handler(h)
}
