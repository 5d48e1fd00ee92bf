package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/metrics"
	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 90 * time.Second
	feedPingPeriod = 60 * time.Second
)

// newFeedUpgrader accepts browser upgrades only from the configured portal
// origins or the API's own host. Clients that send no Origin are not
// browsers and still need a valid session.
func newFeedUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if allowed[strings.ToLower(origin)] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// ComplaintFeed streams complaint events over a WebSocket. Citizens see
// their own complaints; admins see all of them.
func (h *Handler) ComplaintFeed(w http.ResponseWriter, r *http.Request) {
	if h.Feed == nil {
		writeError(w, http.StatusServiceUnavailable, "Status feed is not available")
		return
	}
	userID := middleware.UserID(r.Context())
	isAdmin := h.isAdmin(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return
	}
	defer conn.Close()

	sub, unsubscribe := h.Feed.Subscribe(userID, isAdmin)
	defer unsubscribe()

	metrics.WebsocketClients.Inc()
	defer metrics.WebsocketClients.Dec()

	// Reader: the client sends nothing useful, but reading is what notices
	// a closed connection and processes pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
