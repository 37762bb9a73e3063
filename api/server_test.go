package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"broker-calls/auth"
	"broker-calls/calls"
	"broker-calls/config"
	"broker-calls/database/memory"
	models "broker-calls/database/models_pkg"
	"broker-calls/market"
	"broker-calls/notifications"
	"broker-calls/realtime"
	"broker-calls/uploads"
	"broker-calls/watchlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMarket struct {
	results []market.SearchResult
	quote   *market.Quote
	history []market.DailyClose
	err     error
}

func (f *fakeMarket) Search(_ context.Context, _ string) ([]market.SearchResult, error) {
	return f.results, f.err
}

func (f *fakeMarket) Quote(_ context.Context, _ string) (*market.Quote, error) {
	return f.quote, f.err
}

func (f *fakeMarket) History(_ context.Context, _ string, _, _ time.Time) ([]market.DailyClose, error) {
	return f.history, f.err
}

type testEnv struct {
	server  *Server
	handler http.Handler
	store   *memory.Store
	market  *fakeMarket
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		CORSOrigin:  "http://localhost:3000",
		Auth: config.AuthConfig{
			JWTSecret:    "test-secret",
			JWTExpiresIn: time.Hour,
			CookieName:   "auth-token",
		},
		RateLimit: config.RateLimitConfig{
			APIMax:     1000,
			APIWindow:  time.Minute,
			AuthMax:    5,
			AuthWindow: time.Hour,
		},
	}

	logger := zap.NewNop()
	store := memory.New()
	fm := &fakeMarket{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	broker := realtime.NewBroker(logger)
	go broker.Run(ctx)

	uploadStore, err := uploads.NewStore(t.TempDir())
	require.NoError(t, err)

	notificationService := notifications.NewService(store.Notifications, broker, logger)
	srv := NewServer(Deps{
		Config: cfg,
		Auth: auth.NewService(
			store.Users,
			auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn),
			auth.NewRevocations(store.Tokens, nil, logger),
			logger,
		),
		Calls:         calls.NewService(store.Calls, notificationService, fm, logger),
		Watchlist:     watchlist.NewService(store.Users, logger),
		Notifications: notificationService,
		Market:        fm,
		Quotes:        fm,
		Broker:        broker,
		Uploads:       uploadStore,
		Logger:        logger,
	})

	return &testEnv{server: srv, handler: srv.Router(), store: store, market: fm}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) register(t *testing.T, email, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": "Passw0rd", "name": name,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func (e *testEnv) admin(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashPassword("Adm1nPass")
	require.NoError(t, err)
	require.NoError(t, e.store.Users.Create(context.Background(), &models.User{
		Email: "admin@x.com", PasswordHash: hash, Name: "Admin", Role: models.RoleAdmin,
	}))

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "admin@x.com", "password": "Adm1nPass",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func callBody() map[string]interface{} {
	return map[string]interface{}{
		"stock":        "RELIANCE",
		"broker":       "Angel One",
		"action":       "buy",
		"type":         "Equity",
		"target":       2800,
		"stopLoss":     2400,
		"currentPrice": 2500,
		"entryDate":    "2024-01-01",
		"expiryDate":   "2024-03-01",
		"status":       "APPROVED",
		"tags":         `["energy","largecap"]`,
		"news":         "not json",
	}
}

func (e *testEnv) createCall(t *testing.T, token string) map[string]interface{} {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/calls", callBody(), token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["data"].(map[string]interface{})["call"].(map[string]interface{})
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@x.com", "password": "Passw0rd", "name": "A",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.NotEmpty(t, body["token"])

	user := body["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth-token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, body["token"], cookie.Value)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dup@x.com", "First")

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "dup@x.com", "password": "Other1Pass", "name": "Second",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "fail", decode(t, rec)["status"])

	user, err := env.store.Users.FindByEmail(context.Background(), "dup@x.com")
	require.NoError(t, err)
	assert.Equal(t, "First", user.Name)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "nope", "password": "short", "name": "X",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	assert.NotEmpty(t, body["errors"])
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "b@x.com", "B")

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "b@x.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "b@x.com", "password": "Wrong1Pass",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", decode(t, rec)["message"])
}

func TestMeWithCookie(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "c@x.com", "C")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth-token", Value: token})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decode(t, rec)["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "c@x.com", user["email"])
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "d@x.com", "D")

	rec := env.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successfully logged out", decode(t, rec)["message"])

	rec = env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMyCallsRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/calls/my", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/calls/my", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateCallForcesPending(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "e@x.com", "E")

	call := env.createCall(t, token)
	assert.Equal(t, "PENDING_VERIFICATION", call["status"])
	assert.Equal(t, "BUY", call["action"])
	assert.Equal(t, []interface{}{"energy", "largecap"}, call["tags"])
	assert.Equal(t, []interface{}{}, call["news"])

	rec := env.do(t, http.MethodGet, "/api/calls/my", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["data"].(map[string]interface{})["calls"].([]interface{})
	assert.Len(t, list, 1)
}

func TestCreateCallIgnoresClientAttachments(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ea@x.com", "EA")

	body := callBody()
	body["attachments"] = `[{"name":"report","url":"javascript:alert(document.domain)"}]`
	rec := env.do(t, http.MethodPost, "/api/calls", body, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	call := decode(t, rec)["data"].(map[string]interface{})["call"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, call["attachments"])
}

func TestCreateCallMissingFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "f@x.com", "F")

	rec := env.do(t, http.MethodPost, "/api/calls", map[string]interface{}{"stock": "TCS"}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["errors"])
}

func TestCreateCallMultipart(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "g@x.com", "G")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range callBody() {
		s, ok := v.(string)
		if !ok {
			b, _ := json.Marshal(v)
			s = string(b)
		}
		require.NoError(t, mw.WriteField(k, s))
	}
	fw, err := mw.CreateFormFile("attachments", "chart.png")
	require.NoError(t, err)
	fw.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/calls", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	call := decode(t, rec)["data"].(map[string]interface{})["call"].(map[string]interface{})
	attachments := call["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]interface{})
	assert.Equal(t, "chart.png", att["name"])
	url := att["url"].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))

	// The stored file is served back as a download
	rec = env.do(t, http.MethodGet, url, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "attachment", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdminApproveNotifiesCreator(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.register(t, "h@x.com", "H")
	adminToken := env.admin(t)
	call := env.createCall(t, userToken)
	id := int64(call["id"].(float64))

	rec := env.do(t, http.MethodGet, "/api/calls/pending", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode(t, rec)["data"].(map[string]interface{})["calls"].([]interface{})
	require.Len(t, pending, 1)
	creator := pending[0].(map[string]interface{})["creator"].(map[string]interface{})
	assert.Equal(t, "h@x.com", creator["email"])

	rec = env.do(t, http.MethodPost, "/api/calls/"+itoa(id)+"/approve", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode(t, rec)["data"].(map[string]interface{})["call"].(map[string]interface{})
	assert.Equal(t, "APPROVED", approved["status"])

	rec = env.do(t, http.MethodGet, "/api/notifications", nil, userToken)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["data"].(map[string]interface{})["notifications"].([]interface{})
	require.Len(t, list, 1)
	n := list[0].(map[string]interface{})
	assert.Equal(t, "Your call on RELIANCE has been approved.", n["message"])

	rec = env.do(t, http.MethodPost, "/api/notifications/"+itoa(int64(n["id"].(float64)))+"/read", nil, userToken)
	require.Equal(t, http.StatusOK, rec.Code)
	read := decode(t, rec)["data"].(map[string]interface{})["notification"].(map[string]interface{})
	assert.Equal(t, true, read["read"])

	// Approved calls show up publicly
	rec = env.do(t, http.MethodGet, "/api/calls?broker=Angel%20One", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode(t, rec)["data"].(map[string]interface{})["calls"].([]interface{})
	assert.Len(t, public, 1)
}

func TestAdminRejectBackwardsConflicts(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.register(t, "i@x.com", "I")
	adminToken := env.admin(t)
	id := itoa(int64(env.createCall(t, userToken)["id"].(float64)))

	rec := env.do(t, http.MethodPost, "/api/calls/"+id+"/approve", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/calls/"+id+"/reject", nil, adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/calls/999/approve", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Call not found", decode(t, rec)["message"])
}

func TestNonAdminForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "j@x.com", "J")
	id := itoa(int64(env.createCall(t, token)["id"].(float64)))

	rec := env.do(t, http.MethodPost, "/api/calls/"+id+"/approve", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/calls/pending", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBrokerStats(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "k@x.com", "K")
	env.createCall(t, token)

	rec := env.do(t, http.MethodGet, "/api/calls/broker/Angel%20One", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Angel One", body["name"])
	assert.Equal(t, float64(1), body["totalCalls"])
	assert.Equal(t, "/angel.png", body["logo"])

	rec = env.do(t, http.MethodGet, "/api/calls/broker/Nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No calls found for this broker", decode(t, rec)["message"])
}

func TestPerformance(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "l@x.com", "L")
	id := itoa(int64(env.createCall(t, token)["id"].(float64)))
	env.market.history = []market.DailyClose{{Date: "2024-01-02", Close: 2510.5}}

	rec := env.do(t, http.MethodGet, "/api/calls/"+id+"/performance", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode(t, rec)["priceHistory"].([]interface{})
	require.Len(t, points, 1)

	rec = env.do(t, http.MethodGet, "/api/calls/424242/performance", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Call not found", decode(t, rec)["error"])

	env.market.err = errors.New("upstream down")
	rec = env.do(t, http.MethodGet, "/api/calls/"+id+"/performance", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch live data", decode(t, rec)["error"])
}

func TestWatchlist(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "m@x.com", "M")

	rec := env.do(t, http.MethodGet, "/api/watchlists", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["watchlist"])

	rec = env.do(t, http.MethodPost, "/api/watchlists", map[string]interface{}{"watchlist": []string{"TCS", "INFY"}}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = env.do(t, http.MethodGet, "/api/watchlists", nil, token)
	assert.Equal(t, []interface{}{"TCS", "INFY"}, decode(t, rec)["watchlist"])

	for _, bad := range []interface{}{
		map[string]interface{}{"watchlist": "TCS"},
		map[string]interface{}{"watchlist": []int{1, 2}},
		map[string]interface{}{},
	} {
		rec = env.do(t, http.MethodPost, "/api/watchlists", bad, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid watchlist format", decode(t, rec)["error"])
	}
}

func TestStocks(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/stocks", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var catalogue []market.Stock
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalogue))
	assert.NotEmpty(t, catalogue)

	rec = env.do(t, http.MethodGet, "/api/stocks/search?q=", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	env.market.results = []market.SearchResult{{Symbol: "TCS.NS", Name: "Tata Consultancy"}}
	rec = env.do(t, http.MethodGet, "/api/stocks/search?q=tata", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"symbol":"TCS.NS","name":"Tata Consultancy"}]`, rec.Body.String())

	env.market.quote = &market.Quote{Symbol: "TCS.NS", RegularMarketPrice: 3512.4}
	rec = env.do(t, http.MethodGet, "/api/stocks/price/TCS.NS", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"price":3512.4}`, rec.Body.String())

	env.market.err = errors.New("boom")
	rec = env.do(t, http.MethodGet, "/api/stocks/search?q=tata", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/stocks/price/TCS.NS", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch price"}`, rec.Body.String())
}

func TestAuthRateLimitCountsFailuresOnly(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "n@x.com", "N")

	login := func(password string) int {
		return env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "n@x.com", "password": password,
		}, "").Code
	}

	// Successful logins do not use up the budget
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, login("Passw0rd"))
	}
	// The registration above counted as a success too; five failures remain
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, login("Wrong1Pass"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login("Passw0rd"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestShutdownBeforeStart(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.server.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- env.server.Start() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept listening after Shutdown")
	}
}

func TestShutdownWhileStarting(t *testing.T) {
	env := newTestEnv(t)

	done := make(chan error, 1)
	go func() { done <- env.server.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
