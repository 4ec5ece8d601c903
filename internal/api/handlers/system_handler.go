package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/services"
)

// PipelineInfo is the read-only view of the running chain.
type PipelineInfo interface {
	Describe() []pipeline.StageInfo
	Heartbeat(ctx context.Context) []pipeline.StageHealth
}

type SystemHandler struct {
	pipeline PipelineInfo
	schema   *jsonschema.Schema
}

func NewSystemHandler(p PipelineInfo) (*SystemHandler, error) {
	schema, err := jsonschema.For[services.InputRequest](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	return &SystemHandler{pipeline: p, schema: schema}, nil
}

func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Heartbeat probes every stage that supports it. Any failing stage turns the
// response into 503.
func (h *SystemHandler) Heartbeat(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	stages := h.pipeline.Heartbeat(ctx)
	status := http.StatusOK
	for _, s := range stages {
		if !s.OK {
			status = http.StatusServiceUnavailable
		}
	}
	msg := "Success"
	if status != http.StatusOK {
		msg = "Degraded"
	}
	c.JSON(status, gin.H{"message": msg, "stages": stages})
}

// Startup is the warm-up hit after boot. It probes every stage once and
// reports the stages that are still cold.
func (h *SystemHandler) Startup(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	var cold []string
	for _, s := range h.pipeline.Heartbeat(ctx) {
		if !s.OK {
			cold = append(cold, s.Module)
		}
	}
	if len(cold) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "warming", "cold": cold})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ready"})
}

func (h *SystemHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.schema)
}

func (h *SystemHandler) Pipeline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": h.pipeline.Describe()})
}
