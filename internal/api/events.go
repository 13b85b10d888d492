package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/session"
)

// Event types pushed on /api/v1/events.
const (
	EventBalance = "balance"
	EventNotify  = "notify"
	EventPhase   = "phase"
	EventFrame   = "frame"
)

// Event is one message on the events stream.
type Event struct {
	Type     string            `json:"type"`
	Game     games.Kind        `json:"game,omitempty"`
	Balance  *decimal.Decimal  `json:"balance,omitempty"`
	Message  string            `json:"message,omitempty"`
	Severity session.Severity  `json:"severity,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Frame    *games.Frame      `json:"frame,omitempty"`
	At       time.Time         `json:"at"`
}

const (
	defaultClientBuffer = 64
	writeTimeout        = 3 * time.Second
)

// Hub is a session sink that fans events out to websocket clients. Sends
// never block: sessions call it under their lock, so a slow client loses
// events instead of stalling a round.
type Hub struct {
	logger *zap.Logger
	buffer int
	now    func() time.Time

	mu      sync.Mutex
	clients map[uuid.UUID]chan Event
}

// NewHub creates a hub with no clients.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.Named("events"),
		buffer:  defaultClientBuffer,
		now:     time.Now,
		clients: make(map[uuid.UUID]chan Event),
	}
}

func (h *Hub) UpdateBalance(b decimal.Decimal) {
	h.broadcast(Event{Type: EventBalance, Balance: &b})
}

func (h *Hub) Notify(msg string, sev session.Severity) {
	h.broadcast(Event{Type: EventNotify, Message: msg, Severity: sev})
}

func (h *Hub) OnPhase(snap session.Snapshot) {
	h.broadcast(Event{Type: EventPhase, Game: snap.Kind, Snapshot: &snap})
}

func (h *Hub) OnFrame(snap session.Snapshot, f games.Frame) {
	h.broadcast(Event{Type: EventFrame, Game: snap.Kind, Frame: &f})
}

// Clients counts connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() (uuid.UUID, <-chan Event) {
	id := uuid.New()
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	h.logger.Debug("client subscribed", zap.Stringer("client", id))
	return id, ch
}

func (h *Hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	ch, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		close(ch)
		h.logger.Debug("client left", zap.Stringer("client", id))
	}
}

func (h *Hub) broadcast(ev Event) {
	ev.At = h.now().UTC()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("event dropped", zap.Stringer("client", id), zap.String("type", ev.Type))
		}
	}
}

// ServeWS upgrades the request and streams events until the client leaves.
// Inbound messages are ignored.
func (h *Hub) ServeWS(origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: origins,
		})
		if err != nil {
			h.logger.Info("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id, events := h.subscribe()
		defer h.unsubscribe(id)

		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := h.write(ctx, conn, ev); err != nil {
					switch websocket.CloseStatus(err) {
					case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					default:
						h.logger.Debug("websocket write failed", zap.Stringer("client", id), zap.Error(err))
					}
					return
				}
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
