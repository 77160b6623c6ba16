package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spinwin/internal/auth"
	"spinwin/internal/kiosk"
)

const (
	ctxSession   = "session"
	ctxKioskID   = "kiosk_id"
	headerReqID  = "X-Request-ID"
	headerAdmin  = "X-Admin-Token"
	headerKiosk  = "X-Kiosk-Key"
	headerSecret = "X-Init-Secret"
)

func (s *Server) KioskRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := getBearerToken(c.Request)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseToken(s.JWTSecret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if err := s.validateSession(c.Request.Context(), claims); err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, errInvalidSession) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "session invalid"})
			return
		}
		c.Set(ctxSession, s.session(claims))
		c.Set(ctxKioskID, claims.KioskID)
		c.Next()
	}
}

func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(headerAdmin)
		if token == "" || s.Cfg.AdminToken == "" || token != s.Cfg.AdminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin required"})
			return
		}
		c.Next()
	}
}

// RequestLogger tags every request with an id and logs it once it completes.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(headerReqID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerReqID, reqID)
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		ev.Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func sessionFrom(c *gin.Context) *kiosk.Session {
	v, _ := c.Get(ctxSession)
	sess, _ := v.(*kiosk.Session)
	return sess
}
