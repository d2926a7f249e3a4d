package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to known origins once the frontend domain is fixed
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "distribution", "ping", "error"
	Payload interface{} `json:"payload"` // Event-specific data
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// HandleWebSocket upgrades the connection and streams every committed
// distribution run to the client as it lands on the Redis stream.
//
// Server sends:
//   - {"type": "distribution", "payload": {"height": ..., "distributed": ..., "left_over": ...}}
//   - {"type": "ping", "payload": {"timestamp": 1234567890}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan ServerMessage, 256)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r.RemoteAddr, "stream reader")
		c.streamDistributions(ctx, send)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r.RemoteAddr, "ping ticker")
		c.sendPings(ctx, send)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r.RemoteAddr, "writer")
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
		}
	}()

	// Block reading until the client goes away; clients send nothing we act on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverWS(cancel context.CancelFunc, remoteAddr, role string) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket goroutine",
			zap.String("role", role),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", remoteAddr))
		cancel()
	}
}

// streamDistributions tails the Redis stream and forwards new events.
func (c *Controller) streamDistributions(ctx context.Context, send chan<- ServerMessage) {
	err := c.App.RedisClient.ConsumeDistributions(ctx, "$", func(ctx context.Context, id string, ev redis.DistributionEvent) error {
		select {
		case send <- ServerMessage{Type: "distribution", Payload: ev}:
		case <-ctx.Done():
		default:
			// client is too slow; drop rather than block the stream
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		c.App.Logger.Warn("Distribution stream ended", zap.Error(err))
	}
}

func (c *Controller) sendPings(ctx context.Context, send chan<- ServerMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case send <- ServerMessage{Type: "ping", Payload: map[string]int64{"timestamp": time.Now().Unix()}}:
			case <-ctx.Done():
				return
			}
		}
	}
}
