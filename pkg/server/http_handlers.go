package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ChannelInfo describes one channel in the HTTP channel listing
type ChannelInfo struct {
	Name  string `json:"name"`
	Topic string `json:"topic"`
	Users int    `json:"users"`
}

// ChannelsJSONHandler serves the channel list as JSON
func (s *Server) ChannelsJSONHandler(w http.ResponseWriter, r *http.Request) {
	names := s.channels.Names()
	infos := make([]ChannelInfo, 0, len(names))
	for _, name := range names {
		topic, _ := s.channels.Topic(name)
		infos = append(infos, ChannelInfo{
			Name:  name,
			Topic: topic,
			Users: s.sessions.CountInChannel(name),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"channels": infos,
		"count":    len(infos),
	}); err != nil {
		s.logger.Debug("failed to encode channels JSON", zap.Error(err))
	}
}

// HealthHandler serves health check status
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "healthy",
		"uptime_seconds":  int64(time.Since(s.startTime).Seconds()),
		"active_sessions": s.sessions.Count(),
		"channels":        len(s.channels.Names()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Debug("failed to encode health JSON", zap.Error(err))
	}
}

// HTTPHandler returns the mux served on the WebSocket address
func (s *Server) HTTPHandler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.HandleWebSocket)
	mux.HandleFunc("/channels.json", s.ChannelsJSONHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	return mux
}
