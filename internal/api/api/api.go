package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"sessionhub/cmd/middleware"
	"sessionhub/internal/service"
)

type Routers struct {
	Service   service.Service
	JWTSecret string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	apiGroup := app.Group("/v1")
	apiGroup.Use(middleware.AuthMiddleware(r.JWTSecret))

	apiGroup.POST("/sessions", r.Service.CreateSession)
	apiGroup.GET("/sessions", r.Service.ListSessions)
	apiGroup.GET("/sessions/:id", r.Service.GetSession)
	apiGroup.PATCH("/sessions/:id", r.Service.UpdateSession)
	apiGroup.POST("/sessions/:id/status", r.Service.UpdateSessionStatus)
	apiGroup.POST("/sessions/:id/join", r.Service.Join)
	apiGroup.GET("/sessions/:id/roster", r.Service.Roster)
	apiGroup.POST("/sessions/:id/attendance", r.Service.BulkUpdateAttendance)

	apiGroup.POST("/participations/:id/cancel", r.Service.Cancel)
	apiGroup.PATCH("/participations/:id", r.Service.UpdateParticipation)
	apiGroup.POST("/participations/:id/move", r.Service.MoveParticipant)

	return app
}
