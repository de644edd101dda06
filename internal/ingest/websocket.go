package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cogsense/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StartWebSocket serves a sample stream endpoint. Each connected
// producer sends one JSON sample per text message.
func StartWebSocket(ctx context.Context, cfg *config.Manager, out chan<- Envelope, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.WebSocket
	if !current.Enabled {
		if logger != nil {
			logger.Info("websocket ingest disabled")
		}
		return nil
	}
	path := current.Path
	if path == "" {
		path = "/stream"
	}
	if logger != nil {
		logger.Info("websocket ingest enabled", "addr", current.Addr, "path", path)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if logger != nil {
				logger.Warn("websocket upgrade error", "err", err)
			}
			return
		}
		go handleWebSocketConn(ctx, conn, out, logger)
	})
	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("websocket ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func handleWebSocketConn(ctx context.Context, conn *websocket.Conn, out chan<- Envelope, logger *slog.Logger) {
	defer conn.Close()
	conn.SetReadLimit(1 << 20)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && logger != nil {
				logger.Warn("websocket read error", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		env, err := DecodeSample(data)
		if err != nil {
			if logger != nil {
				logger.Warn("websocket decode error", "err", err)
			}
			continue
		}
		SendNonBlocking(ctx, out, env, logger)
	}
}
