package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rallymatch/backend/internal/api/handler"
	"rallymatch/backend/internal/chathub"
	"rallymatch/backend/internal/identity"
	"rallymatch/backend/internal/matching"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/session"
	"rallymatch/backend/internal/storage/memstore"
	"rallymatch/backend/internal/swipe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store  *memstore.Store
	router *gin.Engine
	hub    *chathub.ManagerService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	resolver := session.NewResolver(store)
	coord := messaging.NewCoordinator(store)
	hub := chathub.NewManagerService(coord, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	h := handler.NewHandler(handler.Handler{
		Hub:      hub,
		Store:    store,
		Feed:     matching.NewService(store, matching.RankOptions{}, nil),
		Swipes:   swipe.NewRegistry(resolver, swipe.WithPolicy(swipe.AcceptPolicy{Retries: 1, Backoff: time.Millisecond, Timeout: time.Second})),
		Sessions: resolver,
		Messages: coord,
		Tokens:   identity.NewJWTIssuer("test-secret", time.Hour),
	})
	r := gin.New()
	h.Routes(r)
	return &testServer{store: store, router: r, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type registered struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"profile"`
}

func (s *testServer) register(t *testing.T, name, level string, accepted, days []string) registered {
	t.Helper()
	w := s.do(t, http.MethodPost, "/register", "", gin.H{
		"name": name, "level": level, "accepted_levels": accepted, "available_days": days,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[registered](t, w)
}

func TestRegisterAndProfile(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "  Alice ", "Intermediate", []string{"Intermediate", "Advanced"}, []string{"mon", "Wednesday"})

	assert.NotEmpty(t, a.Token)
	assert.Equal(t, "Alice", a.Profile.Name)
	assert.Equal(t, []string{"Monday", "Wednesday"}, []string(a.Profile.AvailableDays))

	w := s.do(t, http.MethodGet, "/profile", a.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a.Profile.ID, decode[models.Profile](t, w).ID)

	w = s.do(t, http.MethodPut, "/profile", a.Token, gin.H{"name": "Alice B", "level": "Advanced"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.LevelAdvanced, decode[models.Profile](t, w).Level)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/register", "", gin.H{"name": "X", "level": "Wizard"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/register", "", gin.H{"level": "Pro"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/register", "", gin.H{"name": "X", "level": "Pro", "accepted_levels": []string{"Nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/profile", "garbage", nil).Code)

	other, err := identity.NewJWTIssuer("other-secret", time.Hour).Issue("someone")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/feed", other, nil).Code)
}

func TestFeedDecideAndChat(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "A", "Intermediate", []string{"Intermediate", "Advanced"}, []string{"Mon", "Wed"})
	b := s.register(t, "B", "Advanced", []string{"Intermediate"}, []string{"Mon", "Fri"})
	s.register(t, "C", "Beginner", nil, []string{"Mon", "Wed"})

	w := s.do(t, http.MethodGet, "/feed", a.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[struct {
		Candidates []models.RankedCandidate `json:"candidates"`
		Remaining  int                      `json:"remaining"`
	}](t, w)
	require.Len(t, feed.Candidates, 1)
	assert.Equal(t, b.Profile.ID, feed.Candidates[0].Profile.ID)
	assert.Equal(t, 1, feed.Candidates[0].AvailabilityOverlap)

	w = s.do(t, http.MethodPost, "/feed/decide?wait=true", a.Token, gin.H{"direction": "accept"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decided := decode[struct {
		Advanced   bool                `json:"advanced"`
		Resolution string              `json:"resolution"`
		Session    *models.ChatSession `json:"session"`
		Remaining  int                 `json:"remaining"`
	}](t, w)
	assert.True(t, decided.Advanced)
	assert.Equal(t, "resolved", decided.Resolution)
	assert.Equal(t, 0, decided.Remaining)
	require.NotNil(t, decided.Session)
	sessionID := decided.Session.ID

	// Exhausted: a further swipe is a no-op.
	w = s.do(t, http.MethodPost, "/feed/decide", a.Token, gin.H{"direction": "reject"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"advanced":false`)

	// B opening the chat explicitly finds the same session.
	w = s.do(t, http.MethodPost, "/sessions", b.Token, gin.H{"peer_id": a.Profile.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sessionID, decode[models.ChatSession](t, w).ID)

	w = s.do(t, http.MethodPost, "/sessions/"+sessionID+"/messages", a.Token, gin.H{"text": "  hi  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "hi", decode[models.Message](t, w).Text)

	w = s.do(t, http.MethodPost, "/sessions/"+sessionID+"/messages", b.Token, gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/sessions/"+sessionID+"/messages", b.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, w)
	require.Len(t, history.Messages, 1)
	assert.EqualValues(t, 1, history.Messages[0].Seq)

	w = s.do(t, http.MethodGet, "/sessions", b.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	chats := decode[struct {
		Sessions []models.ChatSummary `json:"sessions"`
	}](t, w)
	require.Len(t, chats.Sessions, 1)
	assert.Equal(t, "A", chats.Sessions[0].PeerName)
	assert.Equal(t, "hi", chats.Sessions[0].LastMessage)
}

func TestSessionAccessControl(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "A", "Pro", nil, nil)
	b := s.register(t, "B", "Pro", nil, nil)
	c := s.register(t, "C", "Pro", nil, nil)

	w := s.do(t, http.MethodPost, "/sessions", a.Token, gin.H{"peer_id": b.Profile.ID})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := decode[models.ChatSession](t, w).ID

	w = s.do(t, http.MethodPost, "/sessions/"+sessionID+"/messages", c.Token, gin.H{"text": "intrude"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodGet, "/sessions/"+sessionID+"/messages", c.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/sessions/missing/messages", a.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/sessions", a.Token, gin.H{"peer_id": a.Profile.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/sessions", a.Token, gin.H{"peer_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "A", "Pro", []string{"Pro"}, nil)
	s.store.Unavailable = func() bool { return true }

	w := s.do(t, http.MethodGet, "/feed", a.Token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "temporarily unavailable")

	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "A", "Pro", nil, nil)
	b := s.register(t, "B", "Pro", nil, nil)
	w := s.do(t, http.MethodPost, "/sessions", a.Token, gin.H{"peer_id": b.Profile.ID})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := decode[models.ChatSession](t, w).ID

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sessionID

	conn, _, err := websocket.DefaultDialer.Dial(base+"&token="+b.Token, nil)
	require.NoError(t, err)
	defer conn.Close()

	w = s.do(t, http.MethodPost, "/sessions/"+sessionID+"/messages", a.Token, gin.H{"text": "over http"})
	require.Equal(t, http.StatusCreated, w.Code)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, models.EventMessage, ev.Type)
	assert.Equal(t, "over http", ev.Message.Text)

	require.NoError(t, conn.WriteJSON(models.OutgoingText{Text: "over ws"}))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "over ws", ev.Message.Text)
	assert.Equal(t, b.Profile.ID, ev.Message.SenderID)
	assert.EqualValues(t, 2, ev.Message.Seq)

	_, resp, err := websocket.DefaultDialer.Dial(base+"&token="+s.register(t, "C", "Pro", nil, nil).Token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
