package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxKioskIDLen = 64

type registerRequest struct {
	Key     string `json:"key"`
	KioskID string `json:"kiosk_id"`
}

// RegisterKiosk opens a session for a kiosk device holding the shared kiosk key.
func (s *Server) RegisterKiosk(c *gin.Context) {
	if strings.TrimSpace(s.Cfg.KioskAPIKey) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kiosk registration not configured"})
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	key := strings.TrimSpace(c.GetHeader(headerKiosk))
	if key == "" {
		key = strings.TrimSpace(req.Key)
	}
	if key == "" || key != s.Cfg.KioskAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
		return
	}
	kioskID := strings.TrimSpace(req.KioskID)
	if kioskID == "" || len(kioskID) > maxKioskIDLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kiosk_id is required (max 64 chars)"})
		return
	}
	token, sess, err := s.SignKioskToken(c.Request.Context(), kioskID)
	if err != nil {
		s.log.Error().Err(err).Str("kiosk", kioskID).Msg("kiosk registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	s.bump(eventRegister)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": sess.ID,
		"kiosk_id":   kioskID,
		"session":    sess.View(),
	})
}
