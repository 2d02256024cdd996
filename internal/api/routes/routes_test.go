package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signal-relay/internal/api/handlers"
	"signal-relay/internal/api/middleware"
	"signal-relay/internal/models"
	"signal-relay/internal/repositories/postgres"
	"signal-relay/internal/services"
	"signal-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "routes-test-secret"

type fakeUploader struct {
	name string
	body []byte
}

func (f *fakeUploader) Upload(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.name, f.body = filename, body
	return "http://files.test/uploads/" + filename, nil
}

type denyLimiter struct{}

func (denyLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

type testApp struct {
	engine   *gin.Engine
	chats    *services.ChatService
	uploader *fakeUploader
}

func newTestApp(t *testing.T, limiter middleware.RateLimiter) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { sqlDB.Close() })

	userRepo := postgres.NewUserRepository(db)
	userService := services.NewUserService(userRepo, testSecret, time.Hour)
	chatService := services.NewChatService(postgres.NewChatRepository(db), postgres.NewMessageRepository(db), userRepo, nil)

	metrics := websocket.NewConnectionMetrics()
	hub := websocket.NewHub(metrics, 0)
	relay := websocket.NewRelay(hub, chatService, websocket.WithMetrics(metrics))
	wsHandler := websocket.NewHandler(hub, relay, websocket.HandlerOptions{})

	uploader := &fakeUploader{}
	router := NewRouter(Dependencies{
		Auth:     handlers.NewAuthHandler(userService),
		Users:    handlers.NewUserHandler(userService),
		Presence: handlers.NewPresenceHandler(nil, relay),
		Chats:    handlers.NewChatHandler(chatService),
		Upload:   handlers.NewUploadHandler(uploader, 0),
		WS:       handlers.NewWSHandler(hub, relay, wsHandler, testSecret),
		AuthMW:   middleware.NewAuthMiddleware(testSecret),
		LimitMW:  middleware.NewRateLimitMiddleware(limiter),
	})
	router.SetupRoutes()
	return &testApp{engine: router.GetEngine(), chats: chatService, uploader: uploader}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) signup(t *testing.T, name, phone string) (uint, string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name, "phone": phone, "password": "secret1", "publicKey": "pk-" + name,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"phone": phone, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	return login.User.ID, login.Token
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, nil)
	w := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t, nil)
	app.signup(t, "alice", "+1001")

	w := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "again", "phone": "+1001", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"phone": "+1002"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"phone": "+1001", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	app := newTestApp(t, nil)
	for _, path := range []string{"/api/v1/users", "/api/v1/chats", "/api/v1/ws/stats"} {
		assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, path, "garbage", nil).Code, path)
	}
}

func TestUserDirectory(t *testing.T) {
	app := newTestApp(t, nil)
	aliceID, token := app.signup(t, "alice", "+1001")
	bobID, _ := app.signup(t, "bob", "+1002")

	w := app.do(t, http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PublicKey)
	}

	w = app.do(t, http.MethodPost, "/api/v1/users/search", token, map[string]string{"phone": "+1002"})
	require.Equal(t, http.StatusOK, w.Code)
	var found models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	assert.Equal(t, bobID, found.ID)

	w = app.do(t, http.MethodPost, "/api/v1/users/search", token, map[string]string{"phone": "+9999"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/users/"+itoa(bobID)+"/key", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"pk-bob"}`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/users/key", token, map[string]string{"publicKey": "pk-alice-2"})
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/users/"+itoa(aliceID)+"/key", token, nil)
	assert.JSONEq(t, `{"publicKey":"pk-alice-2"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/v1/users/999/key", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/v1/users/abc/key", token, nil).Code)
}

func TestChatsAndMessages(t *testing.T) {
	app := newTestApp(t, nil)
	aliceID, aliceToken := app.signup(t, "alice", "+1001")
	bobID, bobToken := app.signup(t, "bob", "+1002")
	_, eveToken := app.signup(t, "eve", "+1003")

	// the caller is added even when omitted
	w := app.do(t, http.MethodPost, "/api/v1/chats/create", aliceToken, map[string]interface{}{"participants": []uint{bobID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.CreateChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	_, err := app.chats.CreateMessage(context.Background(), created.ID, aliceID, "ciphertext", "", 0)
	require.NoError(t, err)
	_, err = app.chats.CreateMessage(context.Background(), created.ID, bobID, "http://files.test/a.png", models.MessageTypeImage, 60)
	require.NoError(t, err)

	w = app.do(t, http.MethodGet, "/api/v1/chats", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chats []models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chats))
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].Name)
	assert.Equal(t, "alice", *chats[0].Name)
	assert.Equal(t, models.MessageTypeImage, chats[0].LastMessage.Content)

	w = app.do(t, http.MethodGet, "/api/v1/chats/"+itoa(created.ID)+"/messages", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "ciphertext", msgs[0].Content)
	assert.Equal(t, 60, msgs[1].TTL)

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/api/v1/chats/"+itoa(created.ID)+"/messages", eveToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/v1/chats/999/messages", aliceToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/v1/chats", aliceToken, map[string]interface{}{}).Code)
}

func TestUpload(t *testing.T) {
	app := newTestApp(t, nil)
	_, token := app.signup(t, "alice", "+1001")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"url":"http://files.test/uploads/photo.png"}`, w.Body.String())
	assert.Equal(t, "png-bytes", string(app.uploader.body))

	// no file field
	w = app.do(t, http.MethodPost, "/api/v1/upload", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitRejects(t *testing.T) {
	app := newTestApp(t, denyLimiter{})
	w := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"phone": "+1", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestWebSocketHandshake(t *testing.T) {
	app := newTestApp(t, nil)
	aliceID, token := app.signup(t, "alice", "+1001")

	srv := httptest.NewServer(app.engine)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	_, resp, err := gws.DefaultDialer.Dial(base+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gws.DefaultDialer.Dial(base+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env websocket.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, websocket.EventConnected, env.Event)
	var data websocket.ConnectedData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.SocketID)
	assert.Equal(t, aliceID, data.UserID)

	w := app.do(t, http.MethodGet, "/api/v1/users/online", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var online struct {
		Online []uint `json:"online"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &online))
	assert.Equal(t, []uint{aliceID}, online.Online)

	anon, _, err := gws.DefaultDialer.Dial(base, nil)
	require.NoError(t, err)
	anon.Close()
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
