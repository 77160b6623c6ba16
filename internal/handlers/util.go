package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"spinwin/internal/apperr"
)

// getBearerToken accepts "Bearer <token>" with any casing of the scheme.
func getBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionKey(sessionID string) string {
	return "kiosk:session:" + sessionID
}

func metricsTotalKey() string {
	return "metrics:events"
}

func metricsHourKey(hour string) string {
	return "metrics:events:" + hour
}

var errInvalidSession = errors.New("invalid session")

// respondError writes err as {"error", "code"} plus any extra fields.
func respondError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{
		"error": apperr.MessageOf(err),
		"code":  apperr.CodeOf(err),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

func queryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
