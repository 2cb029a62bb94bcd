package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketPath is where the WebSocket endpoint is served
const WebSocketPath = "/ws"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Terminal clients send no Origin header worth checking
		return true
	},
}

func (s *Server) startWebSocketServer() error {
	listener, err := net.Listen("tcp", s.config.WebSocketAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.WebSocketAddr, err)
	}
	s.wsListener = listener

	s.httpServer = &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server failed", zap.Error(err))
		}
	}()

	s.logger.Info("WebSocket server listening", zap.String("addr", listener.Addr().String()), zap.String("path", WebSocketPath))
	return nil
}

// HandleWebSocket upgrades an HTTP request and serves it as a chat session.
// Each text message carries one line of the protocol.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(protocol.MaxLineSize + 1)

	conn := client.NewWebSocketConn(ws)
	if !s.track() {
		conn.Close()
		return
	}
	defer s.wg.Done()

	s.serveConn(conn, "websocket")
}
