package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/voicechain/internal/services"
	"github.com/yoockh/voicechain/internal/utils"
)

type AwakeHandler struct {
	awake services.AwakeService
}

func NewAwakeHandler(awake services.AwakeService) *AwakeHandler {
	return &AwakeHandler{awake: awake}
}

type awakeReq struct {
	User  string `json:"user"`
	Voice string `json:"voice"`
}

// Awake streams the greeting as newline-delimited JSON frames.
func (h *AwakeHandler) Awake(c *gin.Context) {
	var req awakeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AwakeHandler.Awake", "invalid json body", err))
		return
	}

	started := false
	err := h.awake.Greet(c.Request.Context(), req.User, req.Voice, func(f services.Frame) error {
		b, err := f.Marshal()
		if err != nil {
			return err
		}
		if !started {
			c.Header("Content-Type", "application/x-ndjson")
			c.Header("Cache-Control", "no-cache")
			c.Status(http.StatusOK)
			started = true
		}
		if _, err := c.Writer.Write(append(b, '\n')); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil && !started {
		writeError(c, err)
	}
}
