package ws

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/mocks"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	dispatcher *mocks.MockIDispatcher
	tracker    *mocks.MockIConnectionTracker
	hub        *Hub
	server     *httptest.Server
}

type fixedHealth struct{}

func (fixedHealth) Latest() domain.HealthSnapshot {
	return domain.HealthSnapshot{PID: 42, ProcessStatus: "R"}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	f := &fixture{
		dispatcher: mocks.NewMockIDispatcher(ctrl),
		tracker:    mocks.NewMockIConnectionTracker(ctrl),
		hub:        NewHub(log),
	}
	h := NewHandler(log, f.dispatcher, f.tracker, f.hub, Options{CORSOrigin: "http://localhost:5173", Health: fixedHealth{}})
	f.server = httptest.NewServer(h.Routes())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (event.Name, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event event.Name      `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame.Event, frame.Data
}

func sendAction(t *testing.T, conn *websocket.Conn, action domain.Action, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(inboundFrame{Action: action, Data: payload}))
}

func TestHandler_RegisterSendAndDisconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	opened := make(chan string, 1)
	closed := make(chan string, 1)
	f.tracker.EXPECT().Open(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c domain.Connection) error {
			opened <- c.ID
			return nil
		})
	f.tracker.EXPECT().Touch(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	// Given a dispatcher answering the registration on the caller connection
	f.dispatcher.EXPECT().Register(gomock.Any(), gomock.Any(), "alice").
		DoAndReturn(func(_ context.Context, connID, name string) (domain.Participant, error) {
			f.hub.SendTo(connID, event.Registered{ParticipantID: "p1", DisplayName: name})
			return domain.Participant{ID: "p1", DisplayName: name, Status: domain.StatusOnline}, nil
		})
	sent := make(chan string, 1)
	f.dispatcher.EXPECT().SendMessage(gomock.Any(), "p1", "hello").
		DoAndReturn(func(_ context.Context, _, text string) (domain.ChatMessage, error) {
			sent <- text
			return domain.ChatMessage{Text: text}, nil
		})
	f.dispatcher.EXPECT().Disconnect(gomock.Any(), "p1")
	f.tracker.EXPECT().Close(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string) error {
			closed <- id
			return nil
		})

	conn := f.dial(t)

	// When registering
	sendAction(t, conn, domain.ActionRegister, domain.RegisterCommand{DisplayName: "alice"})
	name, data := readFrame(t, conn)

	// Then the caller receives its identity
	req.Equal(event.NameRegistered, name)
	var registered event.Registered
	req.NoError(json.Unmarshal(data, &registered))
	req.Equal("alice", registered.DisplayName)

	// And later messages are attributed to the bound participant
	sendAction(t, conn, domain.ActionSendMessage, domain.SendMessageCommand{Text: "hello"})
	select {
	case text := <-sent:
		req.Equal("hello", text)
	case <-time.After(2 * time.Second):
		req.Fail("message not dispatched")
	}

	// When the client leaves, the participant goes offline and the record is removed
	sendAction(t, conn, domain.ActionDisconnect, struct{}{})
	select {
	case id := <-closed:
		req.Equal(<-opened, id)
	case <-time.After(2 * time.Second):
		req.Fail("connection not closed")
	}
}

func TestHandler_ErrorsGoToCallerOnly(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.tracker.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.tracker.EXPECT().Touch(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.tracker.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.dispatcher.EXPECT().SendMessage(gomock.Any(), "", "hi").Return(domain.ChatMessage{}, errors.ErrNotRegistered)

	caller := f.dial(t)
	bystander := f.dial(t)
	req.Eventually(func() bool { return f.hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	// When an unregistered connection sends a message
	sendAction(t, caller, domain.ActionSendMessage, domain.SendMessageCommand{Text: "hi"})

	// Then only the caller receives the error
	name, data := readFrame(t, caller)
	req.Equal(event.NameError, name)
	req.Contains(string(data), "not registered")

	req.NoError(bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err := bystander.ReadMessage()
	req.Error(err)
}

func TestHandler_UnknownActionAndMalformedFrame(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.tracker.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil)
	f.tracker.EXPECT().Touch(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.tracker.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	conn := f.dial(t)

	sendAction(t, conn, "dance", struct{}{})
	name, data := readFrame(t, conn)
	req.Equal(event.NameError, name)
	req.Contains(string(data), "unknown action")

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	name, data = readFrame(t, conn)
	req.Equal(event.NameError, name)
	req.Contains(string(data), "invalid payload")
}

func TestHub_BroadcastReachesEveryConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.tracker.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.tracker.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	first := f.dial(t)
	second := f.dial(t)
	req.Eventually(func() bool { return f.hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	f.hub.Broadcast(event.PresenceUpdate{Participants: []domain.Participant{{ID: "p1", DisplayName: "alice"}}})

	for _, conn := range []*websocket.Conn{first, second} {
		name, data := readFrame(t, conn)
		req.Equal(event.NamePresenceUpdate, name)
		req.Contains(string(data), "alice")
	}
	req.False(f.hub.SendTo("unknown", event.Error{Message: "x"}))
}

func TestHandler_ReadAPI(t *testing.T) {
	f := newFixture(t)
	sessionID := uuid.New()
	missing := uuid.New()

	f.dispatcher.EXPECT().Participants().Return([]domain.Participant{{ID: "p1", DisplayName: "alice"}})
	f.dispatcher.EXPECT().History(5).Return([]domain.ChatMessage{{Text: "hello", AuthorName: "alice"}})
	f.dispatcher.EXPECT().Archives().Return([]domain.ArchiveRecord{{SessionID: sessionID, MessageCount: 1}})
	f.dispatcher.EXPECT().FetchArchived(gomock.Any(), sessionID).Return([]domain.ChatMessage{{Text: "hello"}}, nil)
	f.dispatcher.EXPECT().FetchArchived(gomock.Any(), missing).Return(nil, errors.ErrArchiveNotFound)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/api/participants", http.StatusOK, `"displayName":"alice"`},
		{"/api/messages?limit=5", http.StatusOK, `"text":"hello"`},
		{"/api/messages?limit=abc", http.StatusBadRequest, "limit"},
		{"/api/archives", http.StatusOK, `"messageCount":1`},
		{"/api/archives/" + sessionID.String(), http.StatusOK, `"text":"hello"`},
		{"/api/archives/" + missing.String(), http.StatusNotFound, "archive not found"},
		{"/api/archives/not-a-uuid", http.StatusBadRequest, "invalid session id"},
		{"/healthz", http.StatusOK, `"pid":42`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := require.New(t)
			resp, err := http.Get(f.server.URL + tt.path)
			req.NoError(err)
			defer resp.Body.Close()

			var body json.RawMessage
			req.NoError(json.NewDecoder(resp.Body).Decode(&body))
			req.Equal(tt.status, resp.StatusCode)
			req.Contains(string(body), tt.contains)
			req.Equal("http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHandler_Preflight(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	r, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/participants", nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(r)
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusNoContent, resp.StatusCode)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	req.Error(err)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}
