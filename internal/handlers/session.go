package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spinwin/internal/apperr"
	"spinwin/internal/kiosk"
	"spinwin/internal/models"
	"spinwin/internal/render"
)

func (s *Server) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionFrom(c).View())
}

func (s *Server) Tap(c *gin.Context) {
	s.sessionAction(c, eventTap, (*kiosk.Session).Tap)
}

func (s *Server) Skip(c *gin.Context) {
	s.sessionAction(c, eventSkip, (*kiosk.Session).Skip)
}

func (s *Server) StartPlay(c *gin.Context) {
	s.sessionAction(c, eventStart, (*kiosk.Session).Start)
}

func (s *Server) Home(c *gin.Context) {
	s.sessionAction(c, eventHome, (*kiosk.Session).BackHome)
}

func (s *Server) sessionAction(c *gin.Context, event string, fn func(*kiosk.Session) (kiosk.View, error)) {
	view, err := fn(sessionFrom(c))
	if err != nil {
		respondError(c, err, gin.H{"session": view})
		return
	}
	s.bump(event)
	c.JSON(http.StatusOK, view)
}

func (s *Server) SubmitReview(c *gin.Context) {
	sess := sessionFrom(c)
	var req models.Review
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidRequest, "invalid request"), gin.H{"session": sess.View()})
		return
	}
	view, err := sess.SubmitReview(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, gin.H{"session": view})
		return
	}
	s.bump(eventReview)
	c.JSON(http.StatusOK, view)
}

func (s *Server) GetWheel(c *gin.Context) {
	wv, err := sessionFrom(c).Wheel(c.Request.Context())
	if err != nil {
		respondError(c, err, gin.H{"wheel": wv})
		return
	}
	c.JSON(http.StatusOK, wv)
}

func (s *Server) Spin(c *gin.Context) {
	view, err := sessionFrom(c).Spin(c.Request.Context())
	if err != nil {
		respondError(c, err, gin.H{"session": view})
		return
	}
	s.bump(eventSpin)
	c.JSON(http.StatusOK, view)
}

func (s *Server) GetResult(c *gin.Context) {
	c.JSON(http.StatusOK, sessionFrom(c).Result())
}

func (s *Server) ResultQR(c *gin.Context) {
	res := sessionFrom(c).Result()
	if res.QRPayload == "" {
		respondError(c, apperr.New(apperr.CodeNotFound, "no prize to redeem"), nil)
		return
	}
	png, err := render.QRPNG(res.QRPayload, queryInt(c, "size", 0))
	if err != nil {
		s.log.Error().Err(err).Msg("qr render failed")
		respondError(c, err, nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) WheelImage(c *gin.Context) {
	wv, err := sessionFrom(c).Wheel(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	png, err := render.WheelPNG(wv.Segments, wv.Rotation, queryInt(c, "size", 0))
	if err != nil {
		s.log.Error().Err(err).Msg("wheel render failed")
		respondError(c, err, nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
