package handlers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	eventRegister  = "register"
	eventTap       = "tap"
	eventSkip      = "skip"
	eventStart     = "start"
	eventHome      = "home"
	eventReview    = "review"
	eventSpin      = "spin"
	eventWSConnect = "ws_connect"

	metricsFlushInterval = time.Second
	metricsHourTTL       = 48 * time.Hour
)

// bump counts one kiosk event. Counts are kept in memory and pushed to Redis
// by the flusher.
func (s *Server) bump(event string) {
	if s == nil {
		return
	}
	counter(&s.pending, event).Add(1)
	counter(&s.totals, event).Add(1)
}

func (s *Server) runMetricsFlusher(ctx context.Context) {
	ticker := time.NewTicker(metricsFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flushMetrics(context.Background())
			return
		case <-ticker.C:
			s.flushMetrics(ctx)
		}
	}
}

func (s *Server) flushMetrics(ctx context.Context) {
	if s == nil || s.Redis == nil {
		return
	}
	hourKey := metricsHourKey(time.Now().UTC().Format("2006010215"))
	pipe := s.Redis.Pipeline()
	has := false
	s.pending.Range(func(key, value any) bool {
		event, ok := key.(string)
		if !ok {
			return true
		}
		c, ok := value.(*atomic.Int64)
		if !ok {
			return true
		}
		n := c.Swap(0)
		if n <= 0 {
			return true
		}
		has = true
		pipe.HIncrBy(ctx, metricsTotalKey(), event, n)
		pipe.HIncrBy(ctx, hourKey, event, n)
		return true
	})
	if !has {
		return
	}
	pipe.Expire(ctx, hourKey, metricsHourTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("metrics flush failed")
	}
}

// eventTotals prefers the Redis totals, shared by every server instance, and
// falls back to this process's counters.
func (s *Server) eventTotals(ctx context.Context) map[string]int64 {
	out := make(map[string]int64)
	if s.Redis != nil {
		vals, err := s.Redis.HGetAll(ctx, metricsTotalKey()).Result()
		if err == nil {
			for k, v := range vals {
				n, _ := strconv.ParseInt(v, 10, 64)
				out[k] = n
			}
			return out
		}
		s.log.Warn().Err(err).Msg("metrics read failed")
	}
	s.totals.Range(func(key, value any) bool {
		event, _ := key.(string)
		if c, ok := value.(*atomic.Int64); ok && event != "" {
			out[event] = c.Load()
		}
		return true
	})
	return out
}

func (s *Server) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"events":      s.eventTotals(c.Request.Context()),
		"sessions":    s.Sessions.Len(),
		"ws_sessions": s.Hub.OnlineCount(),
		"server_time": time.Now().UnixMilli(),
	})
}

func counter(m *sync.Map, event string) *atomic.Int64 {
	val, _ := m.LoadOrStore(event, &atomic.Int64{})
	return val.(*atomic.Int64)
}
