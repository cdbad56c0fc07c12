package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/suPer8Hu/consult-desk/internal/auth"
	"github.com/suPer8Hu/consult-desk/internal/consult"
)

// Gateway upgrades authenticated requests to WebSocket connections and feeds
// their events to the orchestrator.
type Gateway struct {
	orch     *consult.Orchestrator
	upgrader websocket.Upgrader
	log      *log.Logger
}

// New builds a gateway. allowedOrigin "*" accepts any origin; requests
// without an Origin header are always accepted.
func New(orch *consult.Orchestrator, logger *log.Logger, allowedOrigin string) *Gateway {
	return &Gateway{
		orch: orch,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// ServeWS blocks until the connection closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	cl := newClient(uuid.NewString(), conn)
	cc := consult.Client{Conn: cl, UserID: id.UserID, Role: id.Role}

	g.orch.Connect(cc)
	g.log.Debug("websocket connected", "conn_id", cl.id, "user_id", id.UserID)

	go cl.writePump()
	g.readPump(cl, cc)
}

func (g *Gateway) readPump(cl *client, cc consult.Client) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		g.orch.Disconnect(cc)
		cl.close()
		g.log.Debug("websocket disconnected", "conn_id", cl.id, "user_id", cc.UserID)
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log.Warn("websocket read error", "conn_id", cl.id, "err", err)
			}
			return
		}

		var ev consult.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			cl.Send(errorEvent("invalid event envelope"))
			continue
		}
		g.dispatch(ctx, cc, ev)
	}
}
