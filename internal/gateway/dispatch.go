package gateway

import (
	"context"
	"encoding/json"

	"github.com/suPer8Hu/consult-desk/internal/consult"
)

func errorEvent(msg string) consult.Event {
	return consult.NewEvent(consult.EventSessionError, consult.ErrorNotice{Message: msg})
}

// dispatch routes one inbound event. Orchestrator calls report their own
// failures to the caller, so results are ignored here.
func (g *Gateway) dispatch(ctx context.Context, cc consult.Client, ev consult.Event) {
	switch ev.Name {
	case consult.EventStartConsult:
		var req consult.StartRequest
		if !g.decode(cc, ev, &req) {
			return
		}
		_, _ = g.orch.Start(ctx, cc, req)

	case consult.EventConsultantJoin:
		id, err := consult.DecodeSessionID(ev.Data)
		if err != nil {
			cc.Conn.Send(errorEvent(consult.ErrMissingSessionID.Error()))
			return
		}
		g.orch.Join(ctx, cc, id)

	case consult.EventSendMessage:
		var req consult.MessageRequest
		if !g.decode(cc, ev, &req) {
			return
		}
		_, _ = g.orch.SendMessage(ctx, cc, req)

	case consult.EventTyping:
		var req consult.TypingRequest
		if !g.decode(cc, ev, &req) {
			return
		}
		g.orch.Typing(cc, req)

	case consult.EventEndConsult:
		id, err := consult.DecodeSessionID(ev.Data)
		if err != nil {
			cc.Conn.Send(errorEvent(consult.ErrMissingSessionID.Error()))
			return
		}
		g.orch.End(ctx, cc, id)

	case consult.EventGetWaitingSessions:
		g.orch.WaitingSessions(cc)

	case consult.EventGetCompletedSessions:
		g.orch.CompletedSessions(cc)

	default:
		g.log.Debug("unknown event", "event", ev.Name, "conn_id", cc.Conn.ID())
		cc.Conn.Send(errorEvent("unknown event: " + ev.Name))
	}
}

func (g *Gateway) decode(cc consult.Client, ev consult.Event, v any) bool {
	if len(ev.Data) == 0 {
		cc.Conn.Send(errorEvent("missing payload for " + ev.Name))
		return false
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		cc.Conn.Send(errorEvent("invalid payload for " + ev.Name))
		return false
	}
	return true
}
