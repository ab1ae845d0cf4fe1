package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/scanwarp/internal/job"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnWriter is the write side of a websocket connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsWriter serialises writes from concurrently finishing jobs.
type wsWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (w *wsWriter) send(r job.Result) {
	data, err := job.EncodeResult(r)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "job_id", r.JobID().String(), "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "job_id", r.JobID().String(), "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// jobWebSocketHandler accepts one JSON job per text message and replies
// with one JSON response per job in completion order.
func (s *Server) jobWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	out := &wsWriter{conn: conn}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			out.send(s.handleWebSocketMessage(ctx, data))
		}()
	}
}

// handleWebSocketMessage turns one message into exactly one Result.
func (s *Server) handleWebSocketMessage(ctx context.Context, data []byte) job.Result {
	j, err := job.DecodeRequest(data)
	if err != nil {
		return job.Failure{Reason: err.Error()}
	}
	if s.runner == nil {
		return job.Failure{ID: j.ID, Reason: "no workers available"}
	}
	res, err := s.runner.Do(ctx, j)
	if err != nil {
		return job.Failure{ID: j.ID, Reason: err.Error()}
	}
	return res
}
