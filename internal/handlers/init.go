package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var runtimeKeyPatterns = []string{"kiosk:session:*", "metrics:*", "catalog:*"}

// InitReset wipes runtime state: live sessions, kiosk tokens, cached catalog
// and counters. With purge_plays=1 the play log is emptied too.
func (s *Server) InitReset(c *gin.Context) {
	if s.Cfg.InitSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init secret not configured"})
		return
	}
	if initSecretFrom(c) != s.Cfg.InitSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init secret"})
		return
	}
	ctx := c.Request.Context()

	s.Hub.CloseAll()
	s.Sessions.Close()
	s.Catalog.Invalidate(ctx)
	s.smsMu.Lock()
	s.smsSent = make(map[string]uint64)
	s.smsMu.Unlock()

	deleted, err := s.purgeKeys(ctx, runtimeKeyPatterns...)
	if err != nil {
		s.log.Error().Err(err).Msg("reset: redis purge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redis scan error"})
		return
	}

	var purged int64
	if c.Query("purge_plays") == "1" && s.Plays.Enabled() {
		purged, err = s.Plays.Purge(ctx, time.Now().Add(time.Minute))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error: purge plays"})
			return
		}
	}
	s.log.Warn().Int("keys_deleted", deleted).Int64("plays_purged", purged).Msg("runtime state reset")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "keys_deleted": deleted, "plays_purged": purged})
}

func initSecretFrom(c *gin.Context) string {
	for _, v := range []string{c.GetHeader(headerSecret), c.Query("secret"), c.PostForm("secret")} {
		if v != "" {
			return v
		}
	}
	return ""
}

// purgeKeys deletes every key matching the patterns and reports how many went.
func (s *Server) purgeKeys(ctx context.Context, patterns ...string) (int, error) {
	if s.Redis == nil {
		return 0, nil
	}
	deleted := 0
	for _, pattern := range patterns {
		iter := s.Redis.Scan(ctx, 0, pattern, 500).Iterator()
		for iter.Next(ctx) {
			if err := s.Redis.Del(ctx, iter.Val()).Err(); err != nil {
				return deleted, err
			}
			deleted++
		}
		if err := iter.Err(); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}
