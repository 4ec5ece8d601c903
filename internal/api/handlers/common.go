package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voicechain/internal/queue"
	"github.com/yoockh/voicechain/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

// bindWithPayload decodes the JSON body into dst and also returns it as a
// generic payload so stage sections beyond dst's fields survive.
func bindWithPayload(r io.Reader, dst any) (queue.Params, error) {
	const op = "handlers.bindWithPayload"
	raw, err := io.ReadAll(io.LimitReader(r, 16<<20))
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unreadable body", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid json body", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid json body", err)
	}
	return queue.Params(payload), nil
}
