package consult

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

var ErrSessionNotActive = errors.New("session is not active")

// SummaryQueue hands ended sessions to the summary worker.
type SummaryQueue interface {
	PublishSummaryJob(ctx context.Context, sessionID string, audience transcript.Audience) error
}

type Options struct {
	PurgeDelay         time.Duration
	MirrorTimeout      time.Duration
	WaitingExcludeRole string

	// Queue, when set, receives one job per audience in SummaryAudiences
	// after a session ends.
	Queue            SummaryQueue
	SummaryAudiences []transcript.Audience
}

func (o *Options) withDefaults() {
	if o.PurgeDelay <= 0 {
		o.PurgeDelay = 30 * time.Minute
	}
	if o.MirrorTimeout <= 0 {
		o.MirrorTimeout = 5 * time.Second
	}
}

// Client is an authenticated connection as seen by the orchestrator.
type Client struct {
	Conn   Conn
	UserID uint64
	Role   string
}

// Orchestrator drives the session state machine on behalf of connection
// events and owns the registry, hub, sequencer and purge scheduler.
type Orchestrator struct {
	registry *Registry
	hub      *Hub
	seq      *Sequencer
	sched    *Scheduler
	mirror   *mirror
	log      *log.Logger
	opts     Options
}

func NewOrchestrator(store Store, logger *log.Logger, opts Options) *Orchestrator {
	opts.withDefaults()
	hub := NewHub()
	m := &mirror{store: store, timeout: opts.MirrorTimeout, log: logger}
	return &Orchestrator{
		registry: NewRegistry(),
		hub:      hub,
		seq:      NewSequencer(hub, m),
		sched:    NewScheduler(),
		mirror:   m,
		log:      logger,
		opts:     opts,
	}
}

func (o *Orchestrator) Registry() *Registry   { return o.registry }
func (o *Orchestrator) Hub() *Hub             { return o.hub }
func (o *Orchestrator) Sequencer() *Sequencer { return o.seq }
func (o *Orchestrator) Scheduler() *Scheduler { return o.sched }

func (o *Orchestrator) Connect(c Client) {
	o.hub.Register(c.Conn)
}

// Disconnect detaches the connection. Its sessions stay as they are.
func (o *Orchestrator) Disconnect(c Client) {
	o.hub.Remove(c.Conn)
}

// Shutdown cancels pending purges.
func (o *Orchestrator) Shutdown() {
	o.sched.Stop()
}

func (o *Orchestrator) sendError(c Client, msg string) {
	c.Conn.Send(NewEvent(EventSessionError, ErrorNotice{Message: msg}))
}

func (o *Orchestrator) publishWaiting() {
	o.hub.BroadcastAll(NewEvent(EventSessionsUpdated, o.registry.ListWaiting(o.opts.WaitingExcludeRole)))
}

// Start queues a consultation for c. A request repeated while the same
// display name and role is still waiting rejoins that session.
func (o *Orchestrator) Start(ctx context.Context, c Client, req StartRequest) (string, error) {
	name := strings.TrimSpace(req.UserName)
	if name == "" {
		o.sendError(c, ErrDisplayNameRequired.Error())
		return "", ErrDisplayNameRequired
	}
	role := req.UserRole
	if role == "" {
		role = c.Role
	}

	sess, created, err := o.registry.CreateOrRejoin(c.UserID, name, role)
	if err != nil {
		o.log.Error("create session failed", "user_id", c.UserID, "err", err)
		o.sendError(c, "failed to create session")
		return "", err
	}

	if !created {
		o.hub.Subscribe(sess.ID, c.Conn)
		c.Conn.Send(NewEvent(EventSessionCreated, sess.ID))
		o.log.Debug("rejoined waiting session", "session_id", sess.ID, "conn_id", c.Conn.ID())
		return sess.ID, nil
	}

	o.mirror.write(ctx, "create_session", []any{"session_id", sess.ID},
		func(ctx context.Context, st Store) error {
			return st.CreateSession(ctx, sess.ID, c.UserID)
		})

	o.hub.Subscribe(sess.ID, c.Conn)
	c.Conn.Send(NewEvent(EventSessionCreated, sess.ID))
	o.publishWaiting()
	o.log.Info("consult session created", "session_id", sess.ID, "user_id", c.UserID)
	return sess.ID, nil
}

// Join attaches c as the consultant of sessionID. Joins that lose the race,
// or target an unknown session, are dropped silently.
func (o *Orchestrator) Join(ctx context.Context, c Client, sessionID string) JoinResult {
	sess, res := o.registry.Join(sessionID, c.UserID)
	switch res {
	case JoinConnected:
		consultantID := c.UserID
		o.mirror.write(ctx, "connect_session", []any{"session_id", sessionID},
			func(ctx context.Context, st Store) error {
				return st.UpdateSessionStatus(ctx, sessionID, transcript.StatusConnected, &consultantID)
			})
		o.hub.Subscribe(sessionID, c.Conn)
		o.hub.Broadcast(sessionID, NewEvent(EventConsultantConnected, nil))
		o.publishWaiting()
		o.log.Info("consultant connected", "session_id", sessionID, "user_id", c.UserID)
	case JoinAlready:
		o.hub.Subscribe(sessionID, c.Conn)
		c.Conn.Send(NewEvent(EventConsultantConnected, nil))
	default:
		o.log.Debug("consultant join dropped", "session_id", sessionID, "user_id", c.UserID,
			"result", res, "status", sess.Status)
	}
	return res
}

// SendMessage appends to the session transcript; the sequencer broadcasts.
func (o *Orchestrator) SendMessage(ctx context.Context, c Client, req MessageRequest) (Message, error) {
	if req.SessionID == "" {
		o.sendError(c, ErrMissingSessionID.Error())
		return Message{}, ErrMissingSessionID
	}
	if _, ok := o.registry.Get(req.SessionID); !ok {
		o.sendError(c, ErrSessionNotActive.Error())
		return Message{}, ErrSessionNotActive
	}
	msg := o.seq.Append(ctx, req.SessionID, req.Sender, req.Message)
	o.log.Debug("message sent", "session_id", req.SessionID, "seq", msg.Seq, "sender_role", msg.SenderRole)
	return msg, nil
}

// Typing relays the indicator to everyone else on the channel.
func (o *Orchestrator) Typing(c Client, req TypingRequest) {
	if req.SessionID == "" {
		return
	}
	o.hub.BroadcastExcept(req.SessionID, c.Conn.ID(),
		NewEvent(EventTyping, TypingNotice{Sender: req.Sender, IsTyping: req.IsTyping}))
}

// End finishes sessionID. Unknown sessions are ignored and false is returned.
func (o *Orchestrator) End(ctx context.Context, c Client, sessionID string) bool {
	sess, ok := o.registry.End(sessionID)
	if !ok {
		return false
	}

	o.hub.Broadcast(sessionID, NewEvent(EventConsultEnded, nil))

	o.mirror.write(ctx, "end_session", []any{"session_id", sessionID},
		func(ctx context.Context, st Store) error {
			return st.UpdateSessionStatus(ctx, sessionID, transcript.StatusEnded, nil)
		})

	o.publishWaiting()
	o.hub.BroadcastAll(NewEvent(EventCompletedSessionsUpdated, o.registry.ListCompleted()))

	o.sched.Schedule(sessionID, o.opts.PurgeDelay, func() {
		o.seq.Purge(sessionID)
		o.hub.Close(sessionID)
		o.registry.Forget(sessionID)
		o.hub.BroadcastAll(NewEvent(EventCompletedSessionsUpdated, o.registry.ListCompleted()))
		o.log.Info("session transcript purged", "session_id", sessionID)
	})

	o.enqueueSummaries(ctx, sessionID)

	o.log.Info("consult ended", "session_id", sessionID, "user_id", c.UserID,
		"messages", o.seq.LastSeq(sessionID), "lasted", time.Since(sess.CreatedAt).Round(time.Second))
	return true
}

func (o *Orchestrator) enqueueSummaries(ctx context.Context, sessionID string) {
	if o.opts.Queue == nil {
		return
	}
	for _, aud := range o.opts.SummaryAudiences {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.MirrorTimeout)
		err := o.opts.Queue.PublishSummaryJob(cctx, sessionID, aud)
		cancel()
		if err != nil {
			o.log.Error("enqueue summary job failed", "session_id", sessionID, "audience", aud, "err", err)
		}
	}
}

func (o *Orchestrator) WaitingSessions(c Client) {
	c.Conn.Send(NewEvent(EventWaitingSessions, o.registry.ListWaiting(o.opts.WaitingExcludeRole)))
}

func (o *Orchestrator) CompletedSessions(c Client) {
	c.Conn.Send(NewEvent(EventCompletedSessions, o.registry.ListCompleted()))
}
