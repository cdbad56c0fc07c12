package consult

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

type party struct {
	conn   *fakeConn
	client Client
}

func connect(o *Orchestrator, id string, userID uint64) party {
	c := newFakeConn(id)
	cl := Client{Conn: c, UserID: userID}
	o.Connect(cl)
	return party{conn: c, client: cl}
}

func TestStart_RejectsEmptyName(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	observer := connect(o, "obs", 2)

	for _, name := range []string{"", "   "} {
		id, err := o.Start(context.Background(), user.client, StartRequest{UserName: name})
		assert.ErrorIs(t, err, ErrDisplayNameRequired)
		assert.Empty(t, id)
	}

	var notice ErrorNotice
	user.conn.last(t, EventSessionError, &notice)
	assert.Equal(t, "userName is required", notice.Message)
	assert.Equal(t, 0, user.conn.count(EventSessionCreated))
	assert.Empty(t, observer.conn.all(), "waiting list not republished")
	assert.Empty(t, o.Registry().ListWaiting(""))
	assert.Empty(t, store.ops())
}

func TestStart_CreatesAndPublishes(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{WaitingExcludeRole: "ADMIN"})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	observer := connect(o, "obs", 2)

	id, err := o.Start(context.Background(), user.client, StartRequest{UserName: " kim "})
	require.NoError(t, err)

	var created string
	user.conn.last(t, EventSessionCreated, &created)
	assert.Equal(t, id, created)

	var waiting []WaitingSession
	observer.conn.last(t, EventSessionsUpdated, &waiting)
	require.Len(t, waiting, 1)
	assert.Equal(t, id, waiting[0].SessionID)
	assert.Equal(t, "kim", waiting[0].DisplayName)

	ops := store.ops()
	require.Len(t, ops, 1)
	assert.Equal(t, "create", ops[0].Op)
	assert.Equal(t, 1, o.Hub().Members(id))
}

func TestStart_DeduplicatesWaitingSession(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	first := connect(o, "u1", 1)
	second := connect(o, "u2", 1)

	id1, err := o.Start(context.Background(), first.client, StartRequest{UserName: "kim", UserRole: "USER"})
	require.NoError(t, err)
	id2, err := o.Start(context.Background(), second.client, StartRequest{UserName: "kim", UserRole: "USER"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, o.Registry().ListWaiting(""), 1)
	assert.Len(t, store.ops(), 1, "no second session record")
	assert.Equal(t, 2, o.Hub().Members(id1))
}

func TestStart_RoleFallsBackToToken(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, Options{WaitingExcludeRole: "ADMIN"})
	defer o.Shutdown()
	c := newFakeConn("admin")
	admin := Client{Conn: c, UserID: 0, Role: "ADMIN"}
	o.Connect(admin)

	id, err := o.Start(context.Background(), admin, StartRequest{UserName: "tester"})
	require.NoError(t, err)

	s, ok := o.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, "ADMIN", s.Role)
	assert.Empty(t, o.Registry().ListWaiting("ADMIN"))
}

func TestJoin_NotifiesChannelAndMirrors(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	consultant := connect(o, "c", 50)
	other := connect(o, "c2", 51)

	id, err := o.Start(context.Background(), user.client, StartRequest{UserName: "kim"})
	require.NoError(t, err)
	user.conn.reset()
	other.conn.reset()

	assert.Equal(t, JoinConnected, o.Join(context.Background(), consultant.client, id))
	assert.Equal(t, 1, user.conn.count(EventConsultantConnected))
	assert.Equal(t, 1, consultant.conn.count(EventConsultantConnected))
	assert.Equal(t, 0, other.conn.count(EventConsultantConnected))

	var waiting []WaitingSession
	other.conn.last(t, EventSessionsUpdated, &waiting)
	assert.Empty(t, waiting)

	ops := store.ops()
	last := ops[len(ops)-1]
	assert.Equal(t, transcript.StatusConnected, last.Status)
	require.NotNil(t, last.ConsultantID)
	assert.Equal(t, uint64(50), *last.ConsultantID)

	// a second consultant loses and is not subscribed
	other.conn.reset()
	assert.Equal(t, JoinRejected, o.Join(context.Background(), other.client, id))
	assert.Empty(t, other.conn.all())
	assert.Equal(t, 2, o.Hub().Members(id))

	s, _ := o.Registry().Get(id)
	assert.Equal(t, uint64(50), *s.ConsultantID)
}

func TestJoin_UnknownSessionIsDropped(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	consultant := connect(o, "c", 50)

	assert.Equal(t, JoinNotFound, o.Join(context.Background(), consultant.client, "session-gone"))
	assert.Empty(t, consultant.conn.all())
	assert.Empty(t, store.ops())
}

func TestSendMessage_BroadcastsInOrder(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	consultant := connect(o, "c", 50)
	ctx := context.Background()

	id, err := o.Start(ctx, user.client, StartRequest{UserName: "kim"})
	require.NoError(t, err)
	o.Join(ctx, consultant.client, id)

	m1, err := o.SendMessage(ctx, user.client, MessageRequest{SessionID: id, Message: "hello", Sender: "user"})
	require.NoError(t, err)
	m2, err := o.SendMessage(ctx, consultant.client, MessageRequest{SessionID: id, Message: "hi", Sender: "consultant"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, m1.Seq)
	assert.EqualValues(t, 2, m2.Seq)
	assert.Equal(t, transcript.SenderUser, m1.SenderRole)
	assert.Equal(t, transcript.SenderConsultant, m2.SenderRole)

	for _, p := range []party{user, consultant} {
		assert.Equal(t, 2, p.conn.count(EventReceiveMessage))
		var last Message
		p.conn.last(t, EventReceiveMessage, &last)
		assert.Equal(t, "hi", last.Content)
	}
}

func TestSendMessage_InactiveSession(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)

	_, err := o.SendMessage(context.Background(), user.client, MessageRequest{SessionID: "session-x", Message: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotActive)
	user.conn.last(t, EventSessionError, nil)

	_, err = o.SendMessage(context.Background(), user.client, MessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestTyping_ExcludesSender(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	consultant := connect(o, "c", 50)
	ctx := context.Background()

	id, _ := o.Start(ctx, user.client, StartRequest{UserName: "kim"})
	o.Join(ctx, consultant.client, id)
	before := len(store.ops())

	o.Typing(user.client, TypingRequest{SessionID: id, Sender: "user", IsTyping: true})

	assert.Equal(t, 0, user.conn.count(EventTyping))
	var notice TypingNotice
	consultant.conn.last(t, EventTyping, &notice)
	assert.True(t, notice.IsTyping)
	assert.Equal(t, "user", notice.Sender)
	assert.Len(t, store.ops(), before, "typing is not persisted")
}

func TestEnd_UnknownSessionEmitsNothing(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	observer := connect(o, "obs", 2)

	id, _ := o.Start(context.Background(), user.client, StartRequest{UserName: "kim"})
	user.conn.reset()
	observer.conn.reset()
	before := len(store.ops())

	assert.False(t, o.End(context.Background(), user.client, "session-unknown"))
	assert.Empty(t, user.conn.all())
	assert.Empty(t, observer.conn.all())
	assert.Len(t, store.ops(), before)
	assert.Len(t, o.Registry().ListWaiting(""), 1)
	_, ok := o.Registry().Get(id)
	assert.True(t, ok)
	assert.Equal(t, 0, o.Scheduler().Len())
}

func TestEnd_NotifiesArchivesAndPurges(t *testing.T) {
	store := &fakeStore{}
	queue := &fakeQueue{}
	o := newTestOrchestrator(store, Options{
		PurgeDelay:       30 * time.Millisecond,
		Queue:            queue,
		SummaryAudiences: []transcript.Audience{transcript.AudienceUser, transcript.AudienceConsultant},
	})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	consultant := connect(o, "c", 50)
	observer := connect(o, "obs", 2)
	ctx := context.Background()

	id, _ := o.Start(ctx, user.client, StartRequest{UserName: "kim"})
	o.Join(ctx, consultant.client, id)
	_, err := o.SendMessage(ctx, user.client, MessageRequest{SessionID: id, Message: "bye", Sender: "user"})
	require.NoError(t, err)

	require.True(t, o.End(ctx, consultant.client, id))

	assert.Equal(t, 1, user.conn.count(EventConsultEnded))
	assert.Equal(t, 1, consultant.conn.count(EventConsultEnded))
	assert.Equal(t, 0, observer.conn.count(EventConsultEnded))

	var completed []CompletedSession
	observer.conn.last(t, EventCompletedSessionsUpdated, &completed)
	require.Len(t, completed, 1)
	assert.Equal(t, id, completed[0].SessionID)

	ops := store.ops()
	assert.Equal(t, transcript.StatusEnded, ops[len(ops)-1].Status)
	assert.Equal(t, []string{id + "/USER", id + "/CONSULTANT"}, queue.jobs)

	_, ok := o.Registry().Get(id)
	assert.False(t, ok)
	assert.Len(t, o.Sequencer().Messages(id), 1, "transcript kept until the purge")

	require.Eventually(t, func() bool {
		return o.Sequencer().Messages(id) == nil && o.Hub().Members(id) == 0 &&
			len(o.Registry().ListCompleted()) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return observer.conn.count(EventCompletedSessionsUpdated) == 2
	}, time.Second, 5*time.Millisecond, "purge republishes the completed list")

	// ended sessions accept no new activity
	_, err = o.SendMessage(ctx, user.client, MessageRequest{SessionID: id, Message: "late"})
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.False(t, o.End(ctx, user.client, id))
}

func TestShutdown_CancelsPendingPurges(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, Options{PurgeDelay: time.Hour})
	user := connect(o, "u", 1)
	ctx := context.Background()

	id, _ := o.Start(ctx, user.client, StartRequest{UserName: "kim"})
	o.SendMessage(ctx, user.client, MessageRequest{SessionID: id, Message: "x"})
	require.True(t, o.End(ctx, user.client, id))
	assert.True(t, o.Scheduler().Pending(id))

	o.Shutdown()
	assert.Equal(t, 0, o.Scheduler().Len())
}

func TestStoreFailuresDoNotBreakRealtimeFlow(t *testing.T) {
	store := &fakeStore{fail: true}
	o := newTestOrchestrator(store, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	consultant := connect(o, "c", 50)
	ctx := context.Background()

	id, err := o.Start(ctx, user.client, StartRequest{UserName: "kim"})
	require.NoError(t, err)
	assert.Equal(t, JoinConnected, o.Join(ctx, consultant.client, id))
	_, err = o.SendMessage(ctx, user.client, MessageRequest{SessionID: id, Message: "hello"})
	require.NoError(t, err)
	require.True(t, o.End(ctx, user.client, id))

	assert.Equal(t, 1, consultant.conn.count(EventReceiveMessage))
	assert.Equal(t, 1, consultant.conn.count(EventConsultEnded))
	assert.Equal(t, 0, user.conn.count(EventSessionError))
	assert.Len(t, store.ops(), 4)
}

func TestListRequests(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, Options{})
	defer o.Shutdown()
	user := connect(o, "u", 1)
	ctx := context.Background()

	id, _ := o.Start(ctx, user.client, StartRequest{UserName: "kim"})
	o.WaitingSessions(user.client)
	var waiting []WaitingSession
	user.conn.last(t, EventWaitingSessions, &waiting)
	require.Len(t, waiting, 1)

	o.End(ctx, user.client, id)
	o.CompletedSessions(user.client)
	var completed []CompletedSession
	user.conn.last(t, EventCompletedSessions, &completed)
	require.Len(t, completed, 1)
	assert.Equal(t, "kim", completed[0].DisplayName)
}
