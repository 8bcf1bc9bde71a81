package jsonrpc

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SendWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, strings.NewReader(""), "test")

	msg, err := NewRequest(int64(1), "initialize", nil)
	require.NoError(t, err)
	require.NoError(t, codec.Send(msg))

	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
	assert.Contains(t, buf.String(), `"method":"initialize"`)
}

func TestCodec_RecvLoopDeliversMessagesAndSkipsMalformed(t *testing.T) {
	pr, pw := io.Pipe()
	codec := NewCodec(io.Discard, pr, "test")

	var received []*Message
	done := make(chan error, 1)

	go codec.RecvLoop(func(m *Message) {
		received = append(received, m)
	}, func(err error) {
		done <- err
	})

	go func() {
		_, _ = pw.Write([]byte("not json\n"))
		_, _ = pw.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"))
		pw.Close()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("recv loop did not close in time")
	}

	require.Len(t, received, 1)
	assert.True(t, received[0].IsResponse())
}
