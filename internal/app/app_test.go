package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/domain/payment"
	"github.com/xenking/bites-pos/internal/handler"
	"github.com/xenking/bites-pos/internal/storage/memory"
	"github.com/xenking/bites-pos/internal/ws"
	"github.com/xenking/bites-pos/pkg/health"
	"github.com/xenking/bites-pos/pkg/httpmiddleware"
)

type testServer struct {
	*httptest.Server
	health *health.Health
}

// startServer serves the full router over the embedded menu.
func startServer(t *testing.T) *testServer {
	t.Helper()
	lg := zap.NewNop()

	catalog, err := memory.LoadSeed()
	require.NoError(t, err)
	store := order.NewStore()
	payments, err := payment.NewService(store, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(lg)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()

	h, err := handler.New(handler.Config{Location: time.UTC}, catalog, store, payments, hub)
	require.NoError(t, err)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("order-store", time.Second, health.LockCheck(func() { store.CurrentSlot() }))

	srv := httptest.NewServer(newRouter(routerDeps{
		lg:     lg,
		cors:   CORSConfig{Origins: []string{"*"}},
		api:    h,
		hub:    hub,
		health: healthSvc,
		tp:     tracenoop.NewTracerProvider(),
		mp:     metricnoop.NewMeterProvider(),
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hubDone
	})
	return &testServer{Server: srv, health: healthSvc}
}

func (s *testServer) do(t *testing.T, method, path, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.URL+path, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestRouter_Health(t *testing.T) {
	srv := startServer(t)

	resp, body := srv.do(t, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, body = srv.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "_readiness")

	srv.health.SetReady(true)
	resp, _ = srv.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RequestID(t *testing.T) {
	srv := startServer(t)

	resp, _ := srv.do(t, http.MethodGet, "/livez", "", nil)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.HeaderRequestID))

	resp, _ = srv.do(t, http.MethodGet, "/api/menu", "", http.Header{
		httpmiddleware.HeaderRequestID: {"terminal-2-req-17"},
	})
	assert.Equal(t, "terminal-2-req-17", resp.Header.Get(httpmiddleware.HeaderRequestID))
}

func TestRouter_CORS(t *testing.T) {
	srv := startServer(t)

	resp, _ := srv.do(t, http.MethodOptions, "/api/cart/items", "", http.Header{
		"Origin":                        {"http://terminal.local"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))

	resp, _ = srv.do(t, http.MethodGet, "/api/menu", "", http.Header{"Origin": {"http://terminal.local"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_OrderFlowBroadcasts(t *testing.T) {
	srv := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	msgs := make(chan string, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- string(msg)
		}
	}()
	next := func(typ string) string {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case msg, ok := <-msgs:
				require.True(t, ok, "event stream closed")
				if strings.Contains(msg, typ) {
					return msg
				}
			case <-timeout:
				require.FailNow(t, "no event", typ)
			}
		}
	}

	// The hub registers the terminal asynchronously, so selecting a slot may
	// have to be repeated before the first event arrives.
	require.Eventually(t, func() bool {
		resp, _ := srv.do(t, http.MethodPut, "/api/slot", `{"slot": 999}`, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		select {
		case msg := <-msgs:
			return strings.Contains(msg, ws.EventSlotSelected)
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	resp, body := srv.do(t, http.MethodPost, "/api/cart/items", `{"menuItemId": 7}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"total":385`)
	assert.Contains(t, next(ws.EventCartUpdated), `"slot":999`)

	resp, body = srv.do(t, http.MethodPost, "/api/checkout", `{"method": "cash", "tendered": 500}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, `"change":115`)
	assert.Contains(t, next(ws.EventOrderCompleted), `"total":385`)

	resp, body = srv.do(t, http.MethodGet, "/api/tables", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"takeaway":{"id":999,"hasOrder":false,"selected":true}`)
}
