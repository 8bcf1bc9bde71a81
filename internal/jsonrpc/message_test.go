package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	msg, err := NewRequest(int64(1), "tools/list", map[string]string{"cursor": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "2.0", msg.JSONRPC)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "tools/list", msg.Method)
	assert.JSONEq(t, `{"cursor":"abc"}`, string(msg.Params))
	assert.True(t, msg.IsRequest())
	assert.False(t, msg.IsNotification())
}

func TestNewNotification(t *testing.T) {
	msg, err := NewNotification("notifications/initialized", nil)
	require.NoError(t, err)
	assert.Nil(t, msg.ID)
	assert.True(t, msg.IsNotification())
}

func TestNewResultAndError(t *testing.T) {
	result, err := NewResult(int64(2), map[string]int{"count": 3})
	require.NoError(t, err)
	assert.True(t, result.IsResponse())
	assert.Nil(t, result.Error)

	errResp := NewError(int64(2), CodeMethodNotFound, "unknown method")
	assert.True(t, errResp.IsResponse())
	require.NotNil(t, errResp.Error)
	assert.Equal(t, CodeMethodNotFound, errResp.Error.Code)
	assert.Equal(t, "unknown method", errResp.Error.Error())
}
