package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinwin/internal/catalog"
	"spinwin/internal/clock"
	"spinwin/internal/config"
	"spinwin/internal/flow"
	"spinwin/internal/kiosk"
	"spinwin/internal/models"
	"spinwin/internal/result"
	"spinwin/internal/store"
	"spinwin/internal/upstream"
	"spinwin/internal/wheel"
)

const (
	testKioskKey = "kiosk-key"
	testAdmin    = "admin-token"
	testInit     = "init-secret"
)

type testEnv struct {
	srv    *Server
	router *gin.Engine
	fake   *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, catalog.DemoRewards())
}

func newTestEnvWith(t *testing.T, rewards []models.Reward) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		JWTSecret:      "test-secret",
		KioskTokenTTL:  time.Hour,
		KioskAPIKey:    testKioskKey,
		AdminToken:     testAdmin,
		InitSecret:     testInit,
		ReviewRequired: true,
		SiteURL:        "https://shop.example.com",
		SkipReveal:     4 * time.Second,
		SpinAnimation:  3 * time.Second,
		SpinSettle:     time.Second,
		AutoReturn:     time.Minute,
		SlideCount:     3,
	}
	fake := clock.NewFake(time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC))
	cat := catalog.NewCached(catalog.NewStatic(rewards), nil, time.Minute, zerolog.Nop())
	reg := kiosk.NewRegistry(kiosk.Deps{
		Catalog:   cat,
		Reviewer:  upstream.Offline{},
		Scheduler: fake,
		Log:       zerolog.Nop(),
	}, kiosk.Options{
		Flow:   flow.Options{ReviewRequired: true},
		Random: wheel.NewXorShift32(7),
		Result: result.Options{SiteURL: cfg.SiteURL, Now: fake.Now},
	})
	t.Cleanup(reg.Close)
	srv := NewServer(cfg, nil, nil, reg, cat, store.NewPlays(nil), zerolog.Nop())
	pages := fstest.MapFS{"web/index.html": {Data: []byte("<html>kiosk</html>")}}
	return &testEnv{srv: srv, router: NewRouter(srv, pages), fake: fake}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
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
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// playToResult drives a fresh session through review and spin to the result step.
func (e *testEnv) playToResult(t *testing.T, token string) {
	t.Helper()
	for _, path := range []string{"/api/session/tap", "/api/session/start"} {
		require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, path, token, nil, nil).Code)
	}
	w := e.do(t, http.MethodPost, "/api/session/review", token, gin.H{"full_name": "Ada", "rating": 4}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/session/spin", token, nil, nil).Code)
	e.fake.Advance(5 * time.Second)
}

func (e *testEnv) register(t *testing.T, kioskID string) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/kiosk/register", "", gin.H{"kiosk_id": kioskID}, map[string]string{headerKiosk: testKioskKey})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	return body["token"].(string), body["session_id"].(string)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRegisterKiosk(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/kiosk/register", "", gin.H{"kiosk_id": "lobby"}, map[string]string{headerKiosk: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/kiosk/register", "", gin.H{"key": testKioskKey}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/kiosk/register", "", gin.H{"key": testKioskKey, "kiosk_id": "lobby"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "lobby", body["kiosk_id"])
	session := body["session"].(map[string]any)
	assert.Equal(t, "slideshow", session["step"])
	assert.Equal(t, 1, e.srv.Sessions.Len())
}

func TestSessionRequiresToken(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/session", "", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/session", "not-a-jwt", nil, nil).Code)
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "lobby")

	w := e.do(t, http.MethodPost, "/api/session/start", token, nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1005, body["code"])
	assert.Equal(t, "slideshow", body["session"].(map[string]any)["step"])
}

func TestFullPlayOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	token, sessionID := e.register(t, "lobby")

	w := e.do(t, http.MethodPost, "/api/session/tap", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "intro", decode(t, w)["step"])

	w = e.do(t, http.MethodPost, "/api/session/start", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "review", decode(t, w)["step"])

	w = e.do(t, http.MethodPost, "/api/session/review", token, gin.H{"full_name": "Ada", "rating": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	session := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, "review", session["step"])
	assert.NotEmpty(t, session["last_error"])

	w = e.do(t, http.MethodPost, "/api/session/review", token, gin.H{"full_name": "Ada", "email": "ada@example.com", "rating": 5, "review": "lovely"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "spin", body["step"])
	assert.Equal(t, sessionID, body["session_id"])
	assert.Empty(t, body["last_error"])

	w = e.do(t, http.MethodGet, "/api/session/wheel", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wheelBody := decode(t, w)
	assert.Equal(t, true, wheelBody["ready"])
	assert.Len(t, wheelBody["segments"], 8)

	w = e.do(t, http.MethodPost, "/api/session/spin", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	spinView := decode(t, w)["spin"].(map[string]any)
	assert.Equal(t, "spinning", spinView["state"])
	target := spinView["target"].(map[string]any)
	assert.GreaterOrEqual(t, target["total_rotation"].(float64), 1800.0)

	w = e.do(t, http.MethodPost, "/api/session/spin", token, nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	e.fake.Advance(4 * time.Second)

	w = e.do(t, http.MethodGet, "/api/session", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)
	assert.Equal(t, "result", view["step"])
	res := view["result"].(map[string]any)

	w = e.do(t, http.MethodGet, "/api/session/qr.png", token, nil, nil)
	switch res["branch"] {
	case "winner":
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, res["qr_payload"], "CONGRATULATIONS")
	case "try_again":
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, res["code"])
	default:
		t.Fatalf("unexpected branch %v", res["branch"])
	}

	w = e.do(t, http.MethodGet, "/api/session/wheel.png?size=128", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = e.do(t, http.MethodPost, "/api/session/home", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "slideshow", decode(t, w)["step"])
}

func TestAdminEndpoints(t *testing.T) {
	e := newTestEnv(t)
	admin := map[string]string{headerAdmin: testAdmin}
	_, sessionID := e.register(t, "lobby")

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/admin/sessions", "", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/admin/sessions", "", nil, map[string]string{headerAdmin: "nope"}).Code)

	w := e.do(t, http.MethodGet, "/api/admin/plays", "", nil, admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = e.do(t, http.MethodGet, "/api/admin/sessions", "", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, sessionID, items[0].(map[string]any)["session_id"])
	assert.Equal(t, false, items[0].(map[string]any)["connected"])

	w = e.do(t, http.MethodPost, "/api/admin/catalog/refresh", "", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 8, decode(t, w)["count"])

	w = e.do(t, http.MethodGet, "/api/admin/metrics", "", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	metrics := decode(t, w)
	assert.EqualValues(t, 1, metrics["events"].(map[string]any)[eventRegister])
	assert.EqualValues(t, 1, metrics["sessions"])

	w = e.do(t, http.MethodPost, "/api/admin/sessions/"+sessionID+"/reset", "", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "slideshow", decode(t, w)["step"])

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/admin/sessions/"+sessionID, "", nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/admin/sessions/"+sessionID, "", nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/admin/sessions/"+sessionID+"/reset", "", nil, admin).Code)
}

func TestInitReset(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "lobby")
	e.register(t, "entrance")

	w := e.do(t, http.MethodPost, "/api/admin/init/reset", "", nil, map[string]string{headerSecret: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2, e.srv.Sessions.Len())

	w = e.do(t, http.MethodPost, "/api/admin/init/reset", "", nil, map[string]string{headerSecret: testInit})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, e.srv.Sessions.Len())
	assert.EqualValues(t, 0, decode(t, w)["keys_deleted"], "no redis configured")

	w = e.do(t, http.MethodPost, "/api/admin/init/reset?secret="+testInit, "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code, "secret accepted from the query")
}

func TestKioskConfigAndPages(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/config", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["offline"])
	assert.Equal(t, true, body["review_required"])
	assert.EqualValues(t, 3000, body["spin_animation_ms"])

	w = e.do(t, http.MethodGet, "/", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kiosk")

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "", nil, nil).Code)
}

func TestRespondErrorPlainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, assert.AnError, gin.H{"extra": 1})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "internal error", body["error"])
	assert.EqualValues(t, 1, body["extra"])
}

func TestWebSocketPushesSessionViews(t *testing.T) {
	e := newTestEnv(t)
	token, sessionID := e.register(t, "lobby")
	ts := httptest.NewServer(e.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello struct {
		Type string `json:"type"`
		Data struct {
			KioskID string         `json:"kiosk_id"`
			Session map[string]any `json:"session"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.Equal(t, "lobby", hello.Data.KioskID)
	assert.Equal(t, sessionID, hello.Data.Session["session_id"])

	require.NoError(t, conn.WriteJSON(gin.H{"type": "tap", "seq": 1}))
	var gotSession, gotAck bool
	for !(gotSession && gotAck) {
		var msg struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case "session":
			assert.Equal(t, "intro", msg.Data["step"])
			gotSession = true
		case "ack":
			assert.Equal(t, true, msg.Data["ok"])
			assert.EqualValues(t, 1, msg.Data["seq"])
			gotAck = true
		}
	}

	require.NoError(t, conn.WriteJSON(gin.H{"type": "spin", "seq": 2}))
	var ack struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, false, ack.Data["ok"])
	assert.EqualValues(t, 1005, ack.Data["code"])

	require.NoError(t, conn.WriteJSON(gin.H{"type": "ping", "seq": 3, "ts": 42}))
	var pong struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
	assert.EqualValues(t, 42, pong.Data["ts"])
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)
	ts := httptest.NewServer(e.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteSessionRevokesSocket(t *testing.T) {
	e := newTestEnv(t)
	token, sessionID := e.register(t, "lobby")
	ts := httptest.NewServer(e.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "hello", msg.Type)

	w := e.do(t, http.MethodDelete, "/api/admin/sessions/"+sessionID, "", nil, map[string]string{headerAdmin: testAdmin})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "revoked", msg.Type)
	assert.Equal(t, sessionID, msg.Data["session_id"])
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestGetBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
		"BEARER x.y.z": "x.y.z",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		assert.Equal(t, want, getBearerToken(req), header)
	}
}

func TestWSPayloadEncodeFailureIsLoggedAndDropped(t *testing.T) {
	var buf bytes.Buffer
	srv := NewServer(config.Config{}, nil, nil, nil, nil, nil, zerolog.New(&buf))

	payload := srv.wsPayload(WSMessage{Type: "session", Data: make(chan int)})
	assert.Nil(t, payload)
	assert.Contains(t, buf.String(), "ws message encode failed")
	assert.Contains(t, buf.String(), `"level":"warn"`)

	client := NewWSClient("s-1", nil)
	client.Send(payload)
	assert.Zero(t, len(client.SendCh), "nil payload is never queued")
	client.Send(srv.wsPayload(WSMessage{Type: "pong"}))
	assert.Equal(t, 1, len(client.SendCh))
}
