package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/consult-desk/internal/httpapi/middleware"
)

// ConsultWS upgrades to the consultation event stream. It returns when the
// connection closes.
func (h *Handler) ConsultWS(c *gin.Context) {
	id, ok := middleware.IdentityFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	h.Gateway.ServeWS(c.Writer, c.Request, id)
}
