package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/service"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

const testSecret = "test-secret"

// nopPublisher drops every event.
type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, subject string, ev model.Event) error {
	return nil
}

type testServer struct {
	router     chi.Router
	store      *store.MemoryStore
	sessionSvc *service.SessionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	st := store.NewMemoryStore()
	pub := nopPublisher{}

	presenceSvc := service.NewPresenceService(st, pub, log)
	sessionSvc := service.NewSessionService(st, presenceSvc, testSecret, 24*time.Hour, log)
	roomSvc := service.NewRoomService(st, log)
	messageSvc := service.NewMessageService(st, pub, log)

	authHandler := NewAuthHandler(sessionSvc, log)
	userHandler := NewUserHandler(st, log)
	roomHandler := NewRoomHandler(roomSvc, log)
	messageHandler := NewMessageHandler(messageSvc, log)
	presenceHandler := NewPresenceHandler(presenceSvc, sessionSvc, testSecret, log)

	r := chi.NewRouter()
	r.Post("/api/v1/auth/register", authHandler.Register)
	r.Post("/api/v1/auth/login", authHandler.Login)
	r.Post("/api/v1/presence/offline", presenceHandler.Offline)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(testSecret, sessionSvc))
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		r.Get("/users", userHandler.List)
		r.Put("/presence", presenceHandler.Update)
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.List)
			r.Post("/direct", roomHandler.ResolveDirect)
			r.Post("/group", roomHandler.CreateGroup)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
			})
		})
	})

	return &testServer{router: r, store: st, sessionSvc: sessionSvc}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// register creates an account and returns the token plus profile.
func (ts *testServer) register(t *testing.T, email string) (string, *model.Profile) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", &model.RegisterRequest{
		Email:    email,
		Password: "supersecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp model.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Profile)
	return resp.Token, resp.Profile
}

func TestAuthEndpoints(t *testing.T) {
	t.Run("should register, restore and log out", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		token, profile := ts.register(t, "alice@example.com")

		rec := ts.do(t, http.MethodGet, "/api/v1/session", token, nil)
		req.Equal(http.StatusOK, rec.Code)
		var restored model.AuthResponse
		req.NoError(json.NewDecoder(rec.Body).Decode(&restored))
		req.Equal(profile.UserID, restored.Profile.UserID)

		rec = ts.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
		req.Equal(http.StatusNoContent, rec.Code)

		// The revoked session no longer authenticates.
		rec = ts.do(t, http.MethodGet, "/api/v1/session", token, nil)
		req.Equal(http.StatusUnauthorized, rec.Code)
	})

	t.Run("should reject a duplicate registration with 409", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		ts.register(t, "alice@example.com")

		rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", &model.RegisterRequest{
			Email:    "alice@example.com",
			Password: "supersecret",
		})
		req.Equal(http.StatusConflict, rec.Code)
	})

	t.Run("should reject bad credentials with 401", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		ts.register(t, "alice@example.com")

		rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", &model.LoginRequest{
			Email:    "alice@example.com",
			Password: "wrongpassword",
		})
		req.Equal(http.StatusUnauthorized, rec.Code)
	})

	t.Run("should reject requests without a token", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodGet, "/api/v1/rooms/", "", nil)
		req.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func TestRoomEndpoints(t *testing.T) {
	t.Run("should resolve the same direct room for both users", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		tokenA, profileA := ts.register(t, "alice@example.com")
		tokenB, profileB := ts.register(t, "bob@example.com")

		rec := ts.do(t, http.MethodPost, "/api/v1/rooms/direct", tokenA, &model.ResolveDirectRequest{
			OtherUserID: profileB.UserID,
		})
		req.Equal(http.StatusOK, rec.Code)
		var first model.Room
		req.NoError(json.NewDecoder(rec.Body).Decode(&first))

		rec = ts.do(t, http.MethodPost, "/api/v1/rooms/direct", tokenB, &model.ResolveDirectRequest{
			OtherUserID: profileA.UserID,
		})
		req.Equal(http.StatusOK, rec.Code)
		var second model.Room
		req.NoError(json.NewDecoder(rec.Body).Decode(&second))

		req.Equal(first.ID, second.ID)
	})

	t.Run("should reject a self chat with 400", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		token, profile := ts.register(t, "alice@example.com")

		rec := ts.do(t, http.MethodPost, "/api/v1/rooms/direct", token, &model.ResolveDirectRequest{
			OtherUserID: profile.UserID,
		})
		req.Equal(http.StatusBadRequest, rec.Code)
	})

	t.Run("should list the user directory without the caller", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		tokenA, _ := ts.register(t, "alice@example.com")
		_, profileB := ts.register(t, "bob@example.com")

		rec := ts.do(t, http.MethodGet, "/api/v1/users", tokenA, nil)
		req.Equal(http.StatusOK, rec.Code)
		var resp ListUsersResponse
		req.NoError(json.NewDecoder(rec.Body).Decode(&resp))
		req.Equal(1, resp.Total)
		req.Equal(profileB.UserID, resp.Users[0].UserID)
	})
}

func TestMessageEndpoints(t *testing.T) {
	setupRoom := func(t *testing.T, ts *testServer) (string, string, string) {
		t.Helper()
		tokenA, _ := ts.register(t, "alice@example.com")
		tokenB, profileB := ts.register(t, "bob@example.com")

		rec := ts.do(t, http.MethodPost, "/api/v1/rooms/direct", tokenA, &model.ResolveDirectRequest{
			OtherUserID: profileB.UserID,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var room model.Room
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
		return tokenA, tokenB, room.ID.String()
	}

	t.Run("should send and list messages", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		tokenA, tokenB, roomID := setupRoom(t, ts)

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/messages", roomID), tokenA, &model.SendMessageRequest{
			Content: "hello bob",
		})
		req.Equal(http.StatusCreated, rec.Code)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/rooms/%s/messages", roomID), tokenB, nil)
		req.Equal(http.StatusOK, rec.Code)
		var resp model.ListMessagesResponse
		req.NoError(json.NewDecoder(rec.Body).Decode(&resp))
		req.Equal(1, resp.Total)
		req.Equal("hello bob", resp.Messages[0].Content)
		req.NotNil(resp.Messages[0].Sender)
		req.Equal("alice", resp.Messages[0].Sender.Username)
	})

	t.Run("should acknowledge a whitespace-only send with 204 and store nothing", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		tokenA, _, roomID := setupRoom(t, ts)

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/messages", roomID), tokenA, &model.SendMessageRequest{
			Content: "   ",
		})
		req.Equal(http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/rooms/%s/messages", roomID), tokenA, nil)
		req.Equal(http.StatusOK, rec.Code)
		var resp model.ListMessagesResponse
		req.NoError(json.NewDecoder(rec.Body).Decode(&resp))
		req.Equal(0, resp.Total)
	})

	t.Run("should refuse a non-participant with 403", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		_, _, roomID := setupRoom(t, ts)
		tokenC, _ := ts.register(t, "carol@example.com")

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/messages", roomID), tokenC, &model.SendMessageRequest{
			Content: "let me in",
		})
		req.Equal(http.StatusForbidden, rec.Code)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/rooms/%s/messages", roomID), tokenC, nil)
		req.Equal(http.StatusForbidden, rec.Code)
	})

	t.Run("should reject a malformed room id with 400", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		tokenA, _, _ := setupRoom(t, ts)

		rec := ts.do(t, http.MethodGet, "/api/v1/rooms/not-a-uuid/messages", tokenA, nil)
		req.Equal(http.StatusBadRequest, rec.Code)
	})
}

func TestPresenceEndpoints(t *testing.T) {
	t.Run("should flip presence via PUT", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		token, profile := ts.register(t, "alice@example.com")

		rec := ts.do(t, http.MethodPut, "/api/v1/presence", token, &model.UpdatePresenceRequest{Online: false})
		req.Equal(http.StatusNoContent, rec.Code)

		p, err := ts.store.GetProfileByUserID(context.Background(), profile.UserID)
		req.NoError(err)
		req.False(p.IsOnline)
	})

	t.Run("should reject the offline beacon without a token", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/api/v1/presence/offline", "", nil)
		req.Equal(http.StatusUnauthorized, rec.Code)
	})

	t.Run("should accept the offline beacon with a query token", func(t *testing.T) {
		req := require.New(t)
		ts := newTestServer(t)
		token, _ := ts.register(t, "alice@example.com")

		rec := ts.do(t, http.MethodPost, "/api/v1/presence/offline?token="+token, "", nil)
		req.Equal(http.StatusAccepted, rec.Code)
	})
}
