package inspect

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/reactor"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

func newTestServer(t *testing.T, data map[string]any) (*reactor.Runtime, *Server, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	rt, err := reactor.New(reactor.Config{
		Data:          data,
		SweepInterval: -1,
		Metrics:       telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	})
	require.NoError(t, err)

	srv := New(rt, WithGatherer(reg))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		rt.Destroy()
	})
	return rt, srv, ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	rt, _, ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	rt.Destroy()
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "destroyed", body["status"])
}

func TestData(t *testing.T) {
	_, _, ts := newTestServer(t, map[string]any{
		"name": "ada",
		"tags": []any{"math"},
	})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada", body["name"])
	assert.Equal(t, []any{"math"}, body["tags"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/data/name", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada", body["value"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/data/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/data/name", "grace")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, body = doJSON(t, http.MethodGet, ts.URL+"/data/name", nil)
	assert.Equal(t, "grace", body["value"])
}

func TestPut_InvalidBody(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/data/x", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEval(t *testing.T) {
	_, _, ts := newTestServer(t, map[string]any{"a": 2, "b": 3})

	tests := []struct {
		name   string
		req    EvalRequest
		status int
		value  any
		code   string
	}{
		{"expression", EvalRequest{Expression: "a * b"}, http.StatusOK, float64(6), ""},
		{"object", EvalRequest{Expression: "({sum: a + b})"}, http.StatusOK, map[string]any{"sum": float64(5)}, ""},
		{"run", EvalRequest{Expression: "var x = a; return x + 1", Mode: "run"}, http.StatusOK, float64(3), ""},
		{"function", EvalRequest{Expression: "function() {}"}, http.StatusOK, nil, ""},
		{"error", EvalRequest{Expression: "nope()"}, http.StatusUnprocessableEntity, nil, "R001"},
		{"bad mode", EvalRequest{Expression: "a", Mode: "eval"}, http.StatusBadRequest, nil, "R006"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, ts.URL+"/eval", tt.req)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				errBody, ok := body["error"].(map[string]any)
				require.True(t, ok, "expected an error body, got %v", body)
				assert.Equal(t, tt.code, errBody["code"])
				return
			}
			if tt.value != nil {
				assert.Equal(t, tt.value, body["value"])
			} else {
				assert.IsType(t, "", body["value"])
			}
		})
	}
}

func TestEval_Assign(t *testing.T) {
	rt, _, ts := newTestServer(t, map[string]any{"n": 1})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/eval", EvalRequest{Expression: "n = n + 41", Mode: "run"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 42, rt.Data().Peek("n"))
}

func TestMetrics(t *testing.T) {
	_, _, ts := newTestServer(t, map[string]any{"a": 1})

	doJSON(t, http.MethodPost, ts.URL+"/eval", EvalRequest{Expression: "a + 1"})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reactor_evaluations_total")
}

func TestSubscriptions(t *testing.T) {
	rt, _, ts := newTestServer(t, map[string]any{"a": 1})
	rt.React(func() { rt.Data().Get("a") }, nil)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/subscriptions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["groups"])
	assert.EqualValues(t, 0, body["bindings"])
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/watch?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatch_Property(t *testing.T) {
	rt, srv, ts := newTestServer(t, map[string]any{"count": 1})

	conn := dial(t, ts, "property=count")
	msg := readMessage(t, conn)
	assert.Equal(t, "count", msg.Property)
	assert.EqualValues(t, 1, msg.Value)

	doJSON(t, http.MethodPut, ts.URL+"/data/count", 2)
	msg = readMessage(t, conn)
	assert.EqualValues(t, 2, msg.Value)
	assert.EqualValues(t, 1, msg.Old)

	cell, ok := rt.Data().Cell("count")
	require.True(t, ok)
	require.Len(t, cell.Watches(), 1)

	conn.Close()
	require.Eventually(t, func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, rt.Sweep())
	assert.Empty(t, cell.Watches())
}

func TestWatch_Expression(t *testing.T) {
	rt, srv, ts := newTestServer(t, map[string]any{"first": "Ada", "last": "Lovelace"})

	conn := dial(t, ts, "expression=first+%2B+%27+%27+%2B+last")
	msg := readMessage(t, conn)
	assert.Equal(t, "Ada Lovelace", msg.Value)

	rt.Do(func() { rt.Data().Set("first", "Augusta") })
	msg = readMessage(t, conn)
	assert.Equal(t, "Augusta Lovelace", msg.Value)

	conn.Close()
	require.Eventually(t, func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	rt.Sweep()
	assert.Empty(t, rt.Binder().Bindings())
}

func TestWatch_BadRequests(t *testing.T) {
	_, _, ts := newTestServer(t, map[string]any{"a": 1})
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/watch"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?property=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJSONValue(t *testing.T) {
	assert.Nil(t, jsonValue(nil))
	assert.Equal(t, "[func()]", jsonValue(func() {}))
	assert.Equal(t, []any{1, "[func()]"}, jsonValue([]any{1, func() {}}))
}
