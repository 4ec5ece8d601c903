package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voicechain/internal/api/handlers"
)

type Deps struct {
	Stream  *handlers.StreamHandler
	Awake   *handlers.AwakeHandler
	System  *handlers.SystemHandler
	Metrics http.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", d.System.Ping)
	r.GET("/startup", d.System.Startup)
	r.GET("/heartbeat", d.System.Heartbeat)
	r.GET("/schema", d.System.Schema)
	r.GET("/pipeline", d.System.Pipeline)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	r.POST("/input", d.Stream.Input)
	if d.Awake != nil {
		r.POST("/awake", d.Awake.Awake)
	}

	// WebSocket
	r.GET("/ws/input", d.Stream.InputWS)
}
