package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/donation-checkin-api/api"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(ctx context.Context, eventID string, payload []byte) error {
	p.calls++
	return errors.New("redis: connection refused")
}

func testClient(eventID string) *feedClient {
	return &feedClient{id: eventID + "-client", eventID: eventID, send: make(chan []byte, 1)}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := NewHub(nil)
	a := testClient("drive-2026")
	b := testClient("other")
	h.register(a)
	h.register(b)
	assert.Equal(t, 1, h.Count("drive-2026"))

	h.Broadcast("drive-2026", []byte(`{"x":1}`))
	assert.Equal(t, `{"x":1}`, string(<-a.send))
	assert.Len(t, b.send, 0)

	// full buffer drops instead of blocking
	h.Broadcast("drive-2026", []byte("one"))
	h.Broadcast("drive-2026", []byte("two"))
	assert.Equal(t, "one", string(<-a.send))

	h.unregister(a)
	assert.Zero(t, h.Count("drive-2026"))
	_, open := <-a.send
	assert.False(t, open)
	h.unregister(a)
}

func TestHub_PublishFallsBackToLocal(t *testing.T) {
	pub := &failingPublisher{}
	h := NewHub(pub)
	c := testClient("drive-2026")
	h.register(c)

	h.Publish(context.Background(), FeedEvent{Type: "verification", EventID: "drive-2026", Token: "AB12CD"})
	assert.Equal(t, 1, pub.calls)

	var got FeedEvent
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, "AB12CD", got.Token)
}

func TestFeed_CheckOrigin(t *testing.T) {
	f := Feed{AllowedOrigins: []string{"https://admin.example.com"}}
	req := httptest.NewRequest("GET", "/", nil)
	assert.True(t, f.checkOrigin(req))

	req.Header.Set("Origin", "https://admin.example.com")
	assert.True(t, f.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, f.checkOrigin(req))

	f.AllowedOrigins = []string{"*"}
	assert.True(t, f.checkOrigin(req))
}

func TestFeed_FeedHandlerForbidden(t *testing.T) {
	f := Feed{Hub: NewHub(nil)}
	req := httptest.NewRequest("GET", "/api/v1/events/drive-2026/feed", nil)
	req = mux.SetURLVars(req, map[string]string{"event_id": "drive-2026"})
	op := verification.Operator{ID: "op-1", Events: []string{"other"}}
	req = req.WithContext(api.WithOperator(req.Context(), op, nil))

	rr := httptest.NewRecorder()
	f.FeedHandler(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	f.FeedHandler(rr, mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"event_id": "drive-2026"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestFeed_FeedHandlerStreamsEvents(t *testing.T) {
	hub := NewHub(nil)
	f := Feed{Hub: hub}
	op := verification.Operator{ID: "op-1", Events: []string{"drive-2026"}}

	r := mux.NewRouter()
	r.HandleFunc("/events/{event_id}/feed", func(w http.ResponseWriter, req *http.Request) {
		f.FeedHandler(w, req.WithContext(api.WithOperator(req.Context(), op, nil)))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/drive-2026/feed"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count("drive-2026") == 1 }, 2*time.Second, 10*time.Millisecond)

	res := &models.VerificationResult{
		Status:        models.StatusVerified,
		NewlyVerified: true,
		Registration:  models.Registration{Name: "Ada", EventID: "drive-2026", Token: "AB12CD", Verified: true, VerifiedBy: "op-1"},
	}
	hub.Publish(context.Background(), NewVerificationEvent(res, "op-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got FeedEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "verification", got.Type)
	assert.Equal(t, "verified", got.Status)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "op-1", got.Operator)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count("drive-2026") == 0 }, 2*time.Second, 10*time.Millisecond)
}
