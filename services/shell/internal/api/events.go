package api

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	helpers "structview/agent-shell/pkg/shared"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: loopbackOrigin,
}

// loopbackOrigin accepts clients without an Origin header (native UIs) and
// pages served from the local machine.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// handleEvents streams backend status: once on connect and once more when
// readiness is decided. Text "PING" messages are answered with "PONG".
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer helpers.CloseOrLog(c)
	s.logger.Info("Events client connected", "remote", r.RemoteAddr)

	pongs := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.TextMessage && string(message) == "PING" {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	}()

	send := func(v any) bool {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(v); err != nil {
			s.logger.Debug("Error writing event", "error", err)
			return false
		}
		return true
	}

	settled := s.status.Settled()
	select {
	case <-settled:
		// Already decided; the first message is final.
		settled = nil
	default:
	}
	if !send(s.status.Status()) {
		return
	}

	for {
		select {
		case <-settled:
			settled = nil
			if !send(s.status.Status()) {
				return
			}
		case <-pongs:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, []byte("PONG")); err != nil {
				return
			}
		case <-closed:
			s.logger.Info("Events client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}
