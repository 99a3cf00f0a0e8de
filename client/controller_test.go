package client

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestController_Backoff_Grows_And_Caps(t *testing.T) {
	req := require.New(t)
	controller := NewController(slog.Default(), Config{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  time.Second,
	}, Handlers{})

	req.Equal(100*time.Millisecond, controller.backoff(1))
	req.Equal(200*time.Millisecond, controller.backoff(2))
	req.Equal(400*time.Millisecond, controller.backoff(3))
	req.Equal(800*time.Millisecond, controller.backoff(4))

	// Then the cap holds however many attempts pile up
	req.Equal(time.Second, controller.backoff(5))
	req.Equal(time.Second, controller.backoff(20))
	// Shift overflow territory still yields the cap
	req.Equal(time.Second, controller.backoff(70))
}

func TestController_Config_Defaults(t *testing.T) {
	req := require.New(t)
	cfg := Config{URL: "ws://localhost:8080/ws", UserID: "alice"}
	cfg.withDefaults()

	req.Positive(cfg.BaseDelay)
	req.Positive(cfg.MaxDelay)
	req.Positive(cfg.MaxAttempts)
	req.Positive(cfg.HeartbeatInterval)
	req.Positive(cfg.MaxMissedHeartbeats)
	req.Positive(cfg.DedupWindow)
	req.GreaterOrEqual(cfg.MaxDelay, cfg.BaseDelay)
}

func TestController_Send_Fails_While_Disconnected(t *testing.T) {
	req := require.New(t)
	controller := NewController(slog.Default(), Config{
		URL:    "ws://localhost:8080/ws",
		UserID: "alice",
	}, Handlers{})

	// No connection was ever established
	_, err := controller.Send("bob", "hello")
	req.Error(err)
	req.Error(controller.MarkRead("bob"))
	req.Equal(StatusDisconnected, controller.Status())
}
