package websocket

import (
	"context"
	"testing"
	"time"

	"cargo-market/internal/general/logger"
)

func TestPingLoopExitsOnConnectionTeardown(t *testing.T) {
	ws := &WebSocket{logger: logger.New("ws-test")}

	// the hub closes Done() when the connection is disconnected
	done := make(chan struct{})
	close(done)

	returned := make(chan struct{})
	go func() {
		ws.pingLoop(context.Background(), nil, done)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("ping loop still running after connection teardown")
	}
}
