package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fitcore/aigateway/internal/gateway"
	"github.com/fitcore/aigateway/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamingHandler demonstrates the gateway's streaming non-goal: each
// frame the client sends is written back unchanged, with no re-ordering or
// buffering, standing in for an LLM completion stream. The gateway core
// itself never touches the stream; admission control is applied by the
// middleware that wraps this route in registerRoutes.
func streamingHandler(gw *gateway.Gateway, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Pass-through: whatever bytes arrive are relayed unchanged,
			// standing in for a real LLM completion stream.
			if err := conn.WriteMessage(msgType, msg); err != nil {
				return
			}
		}
	}
}
