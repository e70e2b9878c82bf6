package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/donation-checkin-api/api"
	"github.com/linesmerrill/donation-checkin-api/api/scheduler"
	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/databases/mocks"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

func TestApp_HealthCheck(t *testing.T) {
	a := App{}
	a.initializeRoutes()

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.HealthCheckResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Alive)
	assert.False(t, resp.Database)
}

func TestApp_HealthCheckPing(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		want    bool
	}{
		{"database up", nil, true},
		{"database down", errors.New("server selection timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mocks.ClientHelper{}
			client.On("Ping", mock.Anything).Return(tt.pingErr)
			a := App{client: client}
			a.initializeRoutes()

			rr := httptest.NewRecorder()
			a.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
			assert.Equal(t, http.StatusOK, rr.Code)
			var resp models.HealthCheckResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.True(t, resp.Alive)
			assert.Equal(t, tt.want, resp.Database)
			client.AssertExpectations(t)
		})
	}
}

func TestApp_HealthCheckReportsStoreJob(t *testing.T) {
	client := &mocks.ClientHelper{}
	client.On("Ping", mock.Anything).Return(errors.New("server selection timeout")).Once()
	client.On("Ping", mock.Anything).Return(nil).Once()
	a := App{sched: scheduler.NewScheduler(client, nil)}
	a.initializeRoutes()

	health := func() models.HealthCheckResponse {
		rr := httptest.NewRecorder()
		a.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp models.HealthCheckResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp
	}

	assert.True(t, health().Database)

	a.sched.CheckStore()
	assert.False(t, health().Database)

	a.sched.CheckStore()
	assert.True(t, health().Database)

	// the handler itself never pings
	client.AssertNumberOfCalls(t, "Ping", 2)
}

func TestApp_ProtectedRoutesRequireOperator(t *testing.T) {
	a := App{}
	a.initializeRoutes()

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{"POST", "/api/v1/verify", `{"token":"AB12CD"}`},
		{"GET", "/api/v1/verify/AB12CD", ""},
		{"GET", "/api/v1/registrations/5fc51f36c72ff10004dca381", ""},
		{"GET", "/api/v1/events/drive-2026/registrations", ""},
		{"GET", "/api/v1/events/drive-2026/feed", ""},
		{"GET", "/api/v1/metrics", ""},
		{"DELETE", "/api/v1/auth/logout", ""},
		{"POST", "/api/v1/auth/token", ""},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, strings.NewReader(rt.body))
			req.Header.Set("Authorization", "Bearer not-a-real-token")
			rr := httptest.NewRecorder()
			a.Router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"success": false, "error": "unauthorized", "code": "UNAUTHORIZED"}`, rr.Body.String())
		})
	}
}

func TestApp_PublicRoutes(t *testing.T) {
	a := App{}
	a.initializeRoutes()

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/registrations/not-an-id/qr", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/registrations", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), models.CodeValidation)
}

func TestApp_RequestIDHeader(t *testing.T) {
	a := App{}
	a.initializeRoutes()

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/verify/AB12CD", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestApp_VerifyRateLimitedWithoutRedis(t *testing.T) {
	a := App{Config: config.Config{VerifyRatePerSecond: 10}}
	a.initializeRoutes()
	require.IsType(t, &api.LocalLimiter{}, a.Limiter)

	// malformed tokens are rejected before the store, so no database is needed
	v := Verify{Engine: verification.NewEngine(nil, time.Second), Limiter: a.Limiter}
	op := verification.Operator{ID: "op-1", Events: []string{"drive-2026"}}
	var limited int
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest("POST", "/api/v1/verify", strings.NewReader(`{"token":"<script>"}`))
		req = req.WithContext(api.WithOperator(req.Context(), op, nil))
		rr := httptest.NewRecorder()
		v.VerifyTokenHandler(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.GreaterOrEqual(t, limited, 30)
}

func newOperatorStore(t *testing.T, op *models.Operator) *mocks.DatabaseHelper {
	t.Helper()
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	srHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Operator)
		**arg = *op
	})
	collectionHelper.On("FindOne", mock.Anything, mock.Anything).Return(srHelper)
	dbHelper.On("Collection", "operators").Return(collectionHelper)
	return dbHelper
}

func TestApp_FeedThroughRouter(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	op := &models.Operator{
		ID:       primitive.NewObjectID(),
		Email:    "frontdesk@example.com",
		Password: string(hash),
		Events:   []string{"drive-2026"},
		Active:   true,
	}

	a := App{dbHelper: newOperatorStore(t, op), Hub: NewHub(nil)}
	a.initializeRoutes()
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	req, err := http.NewRequest("POST", srv.URL+"/api/v1/auth/token", nil)
	require.NoError(t, err)
	req.SetBasicAuth(op.Email, "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var issued map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, issued["token"])

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/drive-2026/feed"

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?access_token=wrong", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+url.QueryEscape(issued["token"]), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return a.Hub.Count("drive-2026") == 1 }, 2*time.Second, 10*time.Millisecond)

	res := &models.VerificationResult{
		Status:       models.StatusAlreadyVerified,
		Registration: models.Registration{Name: "Ada", EventID: "drive-2026", Token: "AB12CD", Verified: true},
	}
	a.Hub.Publish(context.Background(), NewVerificationEvent(res, op.ID.Hex()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got FeedEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "already_verified", got.Status)
	assert.Equal(t, "AB12CD", got.Token)
}
