package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, "Op: msg: boom", E(CodeInternal, "Op", "msg", base).Error())
	assert.Equal(t, "Op: msg", E(CodeInternal, "Op", "msg", nil).Error())
	assert.Equal(t, "Op: boom", E(CodeInternal, "Op", "", base).Error())
	assert.Equal(t, "msg", E(CodeInternal, "", "msg", nil).Error())
	assert.Equal(t, "error", E(CodeInternal, "", "", nil).Error())
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", E(CodeNotFound, "Manager.Context", "request not registered", nil))

	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeInvalidState))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument: http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeInvalidState:    http.StatusConflict,
		CodeUpstream:        http.StatusBadGateway,
		CodeUnavailable:     http.StatusServiceUnavailable,
		CodeTimeout:         http.StatusGatewayTimeout,
		CodeConfiguration:   http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(E(code, "op", "m", nil)), code)
	}
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("x: %w", ErrNotFound)))
}

func TestSafeMessage(t *testing.T) {
	assert.Equal(t, "upstream failed", SafeMessage(E(CodeUpstream, "op", "upstream failed", errors.New("dial tcp"))))
	assert.Equal(t, "plain", SafeMessage(errors.New("plain")))
	assert.Equal(t, "", SafeMessage(nil))
}
