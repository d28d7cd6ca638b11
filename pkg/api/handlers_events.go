package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/monitor"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	maxClientMessage = 512
)

// eventFilter is the set of event types a stream forwards. Empty forwards
// everything.
type eventFilter map[monitor.EventType]bool

// parseEventFilter reads repeated or comma separated ?type= values.
func parseEventFilter(values []string) (eventFilter, error) {
	known := monitor.EventTypes()
	filter := make(eventFilter)
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			typ := monitor.EventType(name)
			if !slices.Contains(known, typ) {
				return nil, fmt.Errorf("unknown event type %q", name)
			}
			filter[typ] = true
		}
	}
	return filter, nil
}

func (f eventFilter) allows(typ monitor.EventType) bool {
	return len(f) == 0 || f[typ]
}

// handleEvents streams monitor events to a websocket client as JSON text
// frames. The broker subscription is taken before the upgrade so that no
// event published after the handshake is missed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.respondError(w, r, http.StatusNotFound, "Monitor not configured")
		return
	}
	filter, err := parseEventFilter(r.URL.Query()["type"])
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.broker.Subscribe(ctx, TopicEvents)
	if err != nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "Event stream closed")
		return
	}
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WebsocketClients.Inc()
		defer s.metrics.WebsocketClients.Dec()
	}
	s.logger.Debug("event stream opened", logging.String("remote", r.RemoteAddr))

	go readUntilClosed(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.Channel():
			if !ok {
				if ctx.Err() == nil {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(writeWait))
				}
				return
			}
			if !filter.allows(e.Type) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("event stream write failed", logging.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readUntilClosed discards client frames, keeps the read deadline fresh on
// pongs and cancels the stream when the connection ends.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxClientMessage)
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
