package handlers

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

func serveEmbedded(pages fs.FS, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pages == nil {
			c.Status(http.StatusNotFound)
			return
		}
		data, err := fs.ReadFile(pages, path)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	}
}

// NewRouter wires every route of the kiosk server. pages holds the embedded
// kiosk page under web/.
func NewRouter(srv *Server, pages fs.FS) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(srv.log))

	r.GET("/", serveEmbedded(pages, "web/index.html"))
	r.GET("/ws", func(c *gin.Context) {
		srv.HandleWS(c.Writer, c.Request)
	})
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	{
		api.GET("/config", srv.GetKioskConfig)
		api.POST("/kiosk/register", srv.RegisterKiosk)

		session := api.Group("/session", srv.KioskRequired())
		session.GET("", srv.GetSession)
		session.POST("/tap", srv.Tap)
		session.POST("/skip", srv.Skip)
		session.POST("/start", srv.StartPlay)
		session.POST("/home", srv.Home)
		session.POST("/review", srv.SubmitReview)
		session.GET("/wheel", srv.GetWheel)
		session.POST("/spin", srv.Spin)
		session.GET("/result", srv.GetResult)
		session.POST("/result/sms", srv.SendResultSMS)
		session.GET("/qr.png", srv.ResultQR)
		session.GET("/wheel.png", srv.WheelImage)

		api.POST("/admin/init/reset", srv.InitReset)

		admin := api.Group("/admin", srv.AdminRequired())
		admin.GET("/plays", srv.ListPlays)
		admin.GET("/plays/stats", srv.PlayStats)
		admin.GET("/plays/export", srv.ExportPlays)
		admin.GET("/catalog", srv.GetCatalog)
		admin.POST("/catalog/refresh", srv.RefreshCatalog)
		admin.GET("/sessions", srv.ListSessions)
		admin.POST("/sessions/:id/reset", srv.ResetSession)
		admin.DELETE("/sessions/:id", srv.DeleteSession)
		admin.GET("/metrics", srv.GetMetrics)
	}
	return r
}
