package handlers

import "github.com/gin-gonic/gin"

// GetKioskConfig returns the timings and switches the kiosk page needs.
func (s *Server) GetKioskConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"offline":           s.Cfg.Offline(),
		"review_required":   s.Cfg.ReviewRequired,
		"site_url":          s.Cfg.SiteURL,
		"skip_reveal_ms":    s.Cfg.SkipReveal.Milliseconds(),
		"slide_interval_ms": s.Cfg.SlideInterval.Milliseconds(),
		"slide_count":       s.Cfg.SlideCount,
		"spin_animation_ms": s.Cfg.SpinAnimation.Milliseconds(),
		"spin_settle_ms":    s.Cfg.SpinSettle.Milliseconds(),
		"auto_return_ms":    s.Cfg.AutoReturn.Milliseconds(),
	})
}
