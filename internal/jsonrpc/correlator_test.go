package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelator_CallResolvesOnMatchingResponse(t *testing.T) {
	var sent *Message
	codec := &loopbackSendCodec{
		onSend: func(m *Message) { sent = m },
	}
	corr := NewCorrelator(codec.AsCodec())

	go func() {
		for sent == nil {
			time.Sleep(time.Millisecond)
		}
		resp, err := NewResult(sent.ID, map[string]string{"ok": "yes"})
		require.NoError(t, err)
		corr.Resolve(resp)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := corr.Call(ctx, "tools/list", nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Error)

	var out map[string]string
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, "yes", out["ok"])
}

func TestCorrelator_CallTimesOutWhenNoResponse(t *testing.T) {
	codec := &loopbackSendCodec{onSend: func(*Message) {}}
	corr := NewCorrelator(codec.AsCodec())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := corr.Call(ctx, "tools/call", nil)
	require.Error(t, err)
	assert.Equal(t, 0, corr.Pending())
}

func TestCorrelator_CloseAllUnblocksPendingCalls(t *testing.T) {
	codec := &loopbackSendCodec{onSend: func(*Message) {}}
	corr := NewCorrelator(codec.AsCodec())

	errCh := make(chan error, 1)
	go func() {
		_, err := corr.Call(context.Background(), "tools/call", nil)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	corr.CloseAll(assertErr{"child process exited"})

	select {
	case err := <-errCh:
		assert.NoError(t, err) // CloseAll delivers a synthetic error *response*, not a Go error
	case <-time.After(2 * time.Second):
		t.Fatal("Call did not unblock after CloseAll")
	}
}

// loopbackSendCodec stands in for a real Codec in tests that only need to
// observe Send calls; it never produces RecvLoop callbacks itself.
type loopbackSendCodec struct {
	onSend func(*Message)
}

func (l *loopbackSendCodec) AsCodec() *Codec {
	pr, pw := io.Pipe()
	c := NewCodec(pw, pr, "test")
	go func() {
		// Drain writes so Send never blocks; hand each line to onSend.
		dec := json.NewDecoder(pr)
		for {
			var m Message
			if err := dec.Decode(&m); err != nil {
				return
			}
			l.onSend(&m)
		}
	}()
	return c
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
