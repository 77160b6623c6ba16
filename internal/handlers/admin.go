package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"spinwin/internal/store"
)

const defaultStatsWindow = 24 * time.Hour

func (s *Server) ListPlays(c *gin.Context) {
	plays, err := s.Plays.List(c.Request.Context(), c.Query("kiosk_id"), queryInt(c, "limit", 0))
	if err != nil {
		s.playLogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": plays})
}

func (s *Server) PlayStats(c *gin.Context) {
	window := defaultStatsWindow
	if hours := queryInt(c, "hours", 0); hours > 0 {
		window = time.Duration(hours) * time.Hour
	}
	since := time.Now().Add(-window)
	stats, err := s.Plays.Stats(c.Request.Context(), since)
	if err != nil {
		s.playLogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "stats": stats})
}

func (s *Server) ExportPlays(c *gin.Context) {
	plays, err := s.Plays.List(c.Request.Context(), c.Query("kiosk_id"), queryInt(c, "limit", store.MaxListLimit))
	if err != nil {
		s.playLogError(c, err)
		return
	}
	filename := fmt.Sprintf("plays_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	_, _ = c.Writer.WriteString("id,created_at,kiosk_id,session_id,reward_id,reward_name,winner,redemption_code,unique_code,segment,matched\n")
	for _, p := range plays {
		line := fmt.Sprintf("%d,%s,%s,%s,%s,%s,%t,%s,%s,%d,%t\n",
			p.ID, p.CreatedAt.UTC().Format(time.RFC3339), csvField(p.KioskID), csvField(p.SessionID),
			csvField(p.RewardID), csvField(p.RewardName), p.IsWinner, csvField(p.RedemptionCode),
			csvField(p.UniqueCode), p.SegmentIndex, p.Matched)
		_, _ = c.Writer.WriteString(line)
	}
}

func (s *Server) playLogError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "play log disabled"})
		return
	}
	s.log.Error().Err(err).Msg("play log query failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
}

func (s *Server) GetCatalog(c *gin.Context) {
	rewards, err := s.Catalog.Fetch(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rewards, "offline": s.Cfg.Offline()})
}

// RefreshCatalog drops every cached copy of the catalog and fetches it again.
func (s *Server) RefreshCatalog(c *gin.Context) {
	ctx := c.Request.Context()
	s.Catalog.Invalidate(ctx)
	rewards, err := s.Catalog.Fetch(ctx)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	s.log.Info().Int("rewards", len(rewards)).Msg("catalog refreshed")
	s.Hub.Broadcast(s.wsPayload(WSMessage{Type: "catalog", Data: gin.H{"count": len(rewards)}}))
	c.JSON(http.StatusOK, gin.H{"items": rewards, "count": len(rewards)})
}

func (s *Server) ListSessions(c *gin.Context) {
	items := s.Sessions.List()
	online := make(map[string]bool)
	for _, id := range s.Hub.SessionIDs() {
		online[id] = true
	}
	resp := make([]gin.H, 0, len(items))
	for _, it := range items {
		resp = append(resp, gin.H{
			"session_id": it.SessionID,
			"kiosk_id":   it.KioskID,
			"step":       it.Step,
			"epoch":      it.Epoch,
			"created_at": it.CreatedAt,
			"last_seen":  it.LastSeen,
			"connected":  online[it.SessionID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

// ResetSession sends a kiosk back to the slideshow, abandoning any play.
func (s *Server) ResetSession(c *gin.Context) {
	sess, ok := s.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	view, err := sess.Reset()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteSession ends a session and revokes its token.
func (s *Server) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	removed := s.Sessions.Remove(id)
	s.revokeSession(c.Request.Context(), id)
	s.Hub.SendToSession(id, s.wsPayload(WSMessage{Type: "revoked", Data: gin.H{"session_id": id}}))
	s.Hub.CloseSession(id)
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func csvField(v string) string {
	return strconv.Quote(v)
}
