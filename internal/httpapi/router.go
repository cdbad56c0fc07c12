package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/consult-desk/internal/common"
	"github.com/suPer8Hu/consult-desk/internal/config"
	"github.com/suPer8Hu/consult-desk/internal/httpapi/handlers"
	"github.com/suPer8Hu/consult-desk/internal/httpapi/middleware"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(h.Log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	r.GET("/ping", h.Ping)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	// real-time consultation events
	authGroup.GET("/ws", h.ConsultWS)

	// summaries (JWT required, parties of the session only)
	sum := authGroup.Group("/summary/consults/:session_id")
	sum.GET("/user", h.GetSummary(transcript.AudienceUser))
	sum.POST("/user", h.GenerateSummary(transcript.AudienceUser))
	sum.GET("/consultant", h.GetSummary(transcript.AudienceConsultant))
	sum.POST("/consultant", h.GenerateSummary(transcript.AudienceConsultant))
	return r
}

func corsConfig(origin string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if origin == "*" {
		// credentials cannot be combined with a wildcard origin
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = []string{origin}
	}
	return cc
}
