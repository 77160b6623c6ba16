package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spinwin/internal/apperr"
	"spinwin/internal/kiosk"
	"spinwin/internal/models"
	"spinwin/internal/result"
	"spinwin/internal/sms"
)

type smsRequest struct {
	Phone string `json:"phone"`
}

// SendResultSMS texts the prize code of the current play to the visitor. Each
// play sends at most one message.
func (s *Server) SendResultSMS(c *gin.Context) {
	if !s.SMS.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sms not configured"})
		return
	}
	var req smsRequest
	if err := c.ShouldBindJSON(&req); err != nil || !kiosk.ValidPhone(req.Phone) {
		respondError(c, apperr.New(apperr.CodeInvalidRequest, "please enter a valid phone number"), nil)
		return
	}
	sess := sessionFrom(c)
	view := sess.View()
	if view.Step != models.StepResult || view.Result == nil || view.Result.Branch != result.BranchWinner {
		respondError(c, apperr.New(apperr.CodeNotFound, "no prize to send"), nil)
		return
	}
	if !s.claimSMS(sess.ID, view.Epoch) {
		c.JSON(http.StatusConflict, gin.H{"error": "prize code already sent"})
		return
	}
	code := view.Result.Code
	if code == "" {
		code = view.Result.PrizeCode
	}
	_, err := s.SMS.SendPrize(c.Request.Context(), strings.TrimSpace(req.Phone), sms.Prize{
		RewardName: view.Result.RewardName,
		Code:       code,
		ValidUntil: view.Result.ValidUntil,
	})
	if err != nil {
		s.releaseSMS(sess.ID, view.Epoch)
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("prize sms failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send sms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) claimSMS(sessionID string, epoch uint64) bool {
	s.smsMu.Lock()
	defer s.smsMu.Unlock()
	if sent, ok := s.smsSent[sessionID]; ok && sent == epoch {
		return false
	}
	s.smsSent[sessionID] = epoch
	return true
}

func (s *Server) releaseSMS(sessionID string, epoch uint64) {
	s.smsMu.Lock()
	defer s.smsMu.Unlock()
	if sent, ok := s.smsSent[sessionID]; ok && sent == epoch {
		delete(s.smsSent, sessionID)
	}
}
