package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/safetrip-backend/internal/dto"
	"github.com/ignatzorin/safetrip-backend/internal/http/handlers/common"
	"github.com/ignatzorin/safetrip-backend/internal/service"
)

// AuthHandler выдаёт короткоживущие токены для потоков событий.
// Секрет властей передаётся только в этот обмен, а не в URL websocket.
type AuthHandler struct {
	tokens *service.TokenManager
}

func NewAuthHandler(tokens *service.TokenManager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// IssueStreamToken обрабатывает POST /api/auth/token.
func (h *AuthHandler) IssueStreamToken(c *gin.Context) {
	var req dto.StreamTokenRequest
	if c.Request.ContentLength > 0 {
		if err := common.BindJSON(c, &req); err != nil {
			common.RespondAppError(c, err)
			return
		}
	}
	if req.Subject == "" {
		req.Subject = "authority-" + uuid.NewString()[:8]
	}

	token, err := h.tokens.Issue(req.Subject)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}
