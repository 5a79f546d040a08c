package rpc

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// StreamMessage is one frame of the event stream.
type StreamMessage struct {
	Type  string       `json:"type"`
	Event ledger.Event `json:"event"`
}

// streamFilter narrows a stream by event kind and account. Empty fields
// match everything.
type streamFilter struct {
	kinds   map[ledger.EventKind]bool
	account *ledger.AccountID
}

func parseFilter(q url.Values) (streamFilter, error) {
	var f streamFilter
	if raw := q.Get("kinds"); raw != "" {
		f.kinds = make(map[ledger.EventKind]bool)
		for _, k := range strings.Split(raw, ",") {
			kind := ledger.EventKind(strings.TrimSpace(k))
			switch kind {
			case ledger.EventDeposit, ledger.EventSwap, ledger.EventLiquidityAdded, ledger.EventLiquidityRemoved:
				f.kinds[kind] = true
			default:
				return f, fmt.Errorf("unknown event kind %q", kind)
			}
		}
	}
	if raw := q.Get("account"); raw != "" {
		account, err := ledger.ParseAccountID(raw)
		if err != nil {
			return f, err
		}
		f.account = &account
	}
	return f, nil
}

func (f streamFilter) match(ev ledger.Event) bool {
	if f.kinds != nil && !f.kinds[ev.Kind] {
		return false
	}
	if f.account != nil && *f.account != ev.Account {
		return false
	}
	return true
}

// handleStream upgrades to WebSocket and forwards committed events until the
// client goes away. Clients that fall behind the bus lose events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event stream is not enabled", http.StatusNotFound)
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	events, cancel := s.events.Subscribe()
	metrics.WSConnections.Inc()
	client := clientIP(r)
	s.logger.Debug().Str("client", client).Msg("event stream opened")
	defer func() {
		cancel()
		metrics.WSConnections.Dec()
		conn.Close()
		s.logger.Debug().Str("client", client).Msg("event stream closed")
	}()

	// The read side only services control frames and notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug().Err(err).Msg("websocket read failed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !filter.match(ev) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(StreamMessage{Type: "ledger_event", Event: ev}); err != nil {
				s.logger.Debug().Err(err).Msg("websocket send failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
