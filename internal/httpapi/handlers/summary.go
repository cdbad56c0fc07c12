package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/consult-desk/internal/common"
	"github.com/suPer8Hu/consult-desk/internal/httpapi/middleware"
	"github.com/suPer8Hu/consult-desk/internal/summary"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

type summaryResp struct {
	SessionID string              `json:"session_id"`
	Audience  transcript.Audience `json:"audience"`
	Version   int                 `json:"version"`
	PromptKey string              `json:"prompt_key"`
	TicketID  string              `json:"ticket_id"`
	Category  string              `json:"category"`
	Summary   string              `json:"summary"`
	Payload   json.RawMessage     `json:"payload"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func toSummaryResp(s *transcript.Summary) summaryResp {
	return summaryResp{
		SessionID: s.SessionID,
		Audience:  s.Audience,
		Version:   s.Version,
		PromptKey: s.PromptKey,
		TicketID:  s.TicketID,
		Category:  s.Category,
		Summary:   s.Summary,
		Payload:   json.RawMessage(s.Payload),
		UpdatedAt: s.UpdatedAt,
	}
}

type generateSummaryReq struct {
	Limit int `json:"limit"`
}

// GetSummary returns the stored summary for the audience. It never generates.
func (h *Handler) GetSummary(aud transcript.Audience) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := identity(c)
		if !ok {
			unauthorized(c)
			return
		}
		row, err := h.Summaries.Get(c.Request.Context(), c.Param("session_id"), aud, uid)
		if err != nil {
			h.summaryError(c, err)
			return
		}
		common.OK(c, toSummaryResp(row))
	}
}

// GenerateSummary (re)builds and stores the summary for the audience.
func (h *Handler) GenerateSummary(aud transcript.Audience) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := identity(c)
		if !ok {
			unauthorized(c)
			return
		}

		var req generateSummaryReq
		if c.Request.ContentLength != 0 {
			// an empty body means "use the default limit"
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				common.Fail(c, http.StatusBadRequest, 40001, "invalid json")
				return
			}
		}
		if req.Limit < 0 {
			common.Fail(c, http.StatusBadRequest, 40001, "limit must not be negative")
			return
		}

		// a client that hangs up must not discard a summary already paid for
		ctx := context.WithoutCancel(c.Request.Context())
		row, err := h.Summaries.Generate(ctx, c.Param("session_id"), aud, uid, req.Limit)
		if err != nil {
			h.summaryError(c, err)
			return
		}
		common.OK(c, toSummaryResp(row))
	}
}

func (h *Handler) summaryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, summary.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "session not found")
	case errors.Is(err, summary.ErrSummaryNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "summary not found")
	case errors.Is(err, summary.ErrForbidden):
		common.Fail(c, http.StatusForbidden, 40301, "forbidden")
	case errors.Is(err, summary.ErrInvalidOutput):
		common.Fail(c, http.StatusBadGateway, 50201, "invalid json from llm")
	default:
		h.Log.Error("summary request failed",
			"path", c.FullPath(),
			"session_id", c.Param("session_id"),
			"request_id", c.GetString(middleware.RequestIDKey),
			"err", err,
		)
		common.Fail(c, http.StatusInternalServerError, 50001, "summary request failed")
	}
}
