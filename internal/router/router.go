package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridflow/internal/handler/ping"
	"gridflow/internal/handler/status"
)

type ApiRouter struct {
	statusHandler *status.Handler
}

func NewApiRouter(sh *status.Handler) *ApiRouter {
	return &ApiRouter{statusHandler: sh}
}

func (api *ApiRouter) Load(g *gin.Engine) {
	g.GET("/ping", ping.Ping())
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	base := g.Group("/api/v1")

	gr := base.Group("/grid")
	{
		// 网格快照
		gr.GET("/status", api.statusHandler.Status())
	}
}
