package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gridflow/internal/grid"
)

// 网格运行状态查询接口
type Handler struct {
	engine *grid.Engine
}

func NewHandler(engine *grid.Engine) *Handler {
	return &Handler{engine: engine}
}

// Status 返回整机快照：窗口位置、账本、全部节点状态
func (h *Handler) Status() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, h.engine.Snapshot())
	}
}
