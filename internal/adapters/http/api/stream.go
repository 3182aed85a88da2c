package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/gazetrack/internal/domain/types"
	"github.com/okian/gazetrack/pkg/metrics"
)

const (
	// writeWait is how long a single frame write may take.
	writeWait = 5 * time.Second

	// pongWait is how long to wait for a pong before dropping the client.
	pongWait = 30 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024
)

// StreamHandler pushes every published sample to websocket clients.
type StreamHandler struct {
	source   SampleSource
	upgrader websocket.Upgrader
	clients  atomic.Int64
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(source SampleSource) *StreamHandler {
	return &StreamHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected stream clients.
func (h *StreamHandler) Clients() int64 { return h.clients.Load() }

// HandleStream handles GET /stream websocket upgrades. Each published sample
// is sent as one JSON text frame; slow clients skip samples rather than
// queue them.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		return
	}
	defer conn.Close()

	metrics.UpdateStreamClients(int(h.clients.Add(1)))
	defer func() { metrics.UpdateStreamClients(int(h.clients.Add(-1))) }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)

	seq := h.source.Seq()
	for {
		wait, stop := context.WithTimeout(ctx, pingPeriod)
		s, next, err := h.source.NextSample(wait, seq)
		stop()

		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, context.DeadlineExceeded):
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case err != nil:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
				time.Now().Add(writeWait))
			return
		}

		seq = next
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(types.FromSample(next, s)); err != nil {
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are handled. It
// cancels the stream when the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
