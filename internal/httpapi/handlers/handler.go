package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/consult-desk/internal/common"
	"github.com/suPer8Hu/consult-desk/internal/gateway"
	"github.com/suPer8Hu/consult-desk/internal/httpapi/middleware"
	"github.com/suPer8Hu/consult-desk/internal/summary"
)

type Handler struct {
	Summaries *summary.Service
	Gateway   *gateway.Gateway
	Log       *log.Logger
}

func NewHandler(summaries *summary.Service, gw *gateway.Gateway, logger *log.Logger) *Handler {
	return &Handler{Summaries: summaries, Gateway: gw, Log: logger}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func identity(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func unauthorized(c *gin.Context) {
	common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
}
