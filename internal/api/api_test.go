package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tictactoe-live/internal/api"
	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/factory"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/realtime"
	"github.com/mcoot/tictactoe-live/internal/testutil"
)

// testServer runs the full router over a real listener
type testServer struct {
	app    *factory.TestApp
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:   testutil.NopLogger(),
		Verifier: app.AuthService,
		Gate:     app.Gate,
		Registry: app.Registry,
		Rooms:    app.Rooms,
		Queue:    app.Queue,
	})

	ts := &testServer{app: app, server: httptest.NewServer(router)}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = app.Gate.Shutdown(ctx)
		ts.server.Close()
	})
	return ts
}

func (ts *testServer) get(t *testing.T, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testServer) token(t *testing.T, userID int64, name string) string {
	t.Helper()
	token, err := ts.app.Token(userID, name)
	require.NoError(t, err)
	return token
}

func (ts *testServer) dial(token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func (ts *testServer) mustDial(t *testing.T, userID int64, name string) *websocket.Conn {
	t.Helper()
	ws, _, err := ts.dial(ts.token(t, userID, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func decodeError(t *testing.T, resp *http.Response) apierr.APIError {
	t.Helper()
	var body apierr.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func write(t *testing.T, ws *websocket.Conn, mt realtime.MessageType, payload any) {
	t.Helper()
	data, err := realtime.Encode(mt, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, ws *websocket.Conn, want realtime.MessageType, dst any) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	env, err := realtime.Decode(data)
	require.NoError(t, err)
	require.Equal(t, want, env.Type, "payload: %s", env.Payload)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Payload, dst))
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body response.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apierr.CodeNotFound, decodeError(t, resp).Code)
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/ws", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apierr.CodeUnauthorizedMissingToken, decodeError(t, resp).Code)
	assert.Equal(t, 0, ts.app.Registry.Count())
}

func TestWebsocketRejectsInvalidToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/ws?token=not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apierr.CodeUnauthorizedInvalidToken, decodeError(t, resp).Code)

	resp = ts.get(t, "/ws", http.Header{"Authorization": {"Bearer not-a-jwt"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apierr.CodeUnauthorizedInvalidToken, decodeError(t, resp).Code)
	assert.Equal(t, 0, ts.app.Registry.Count())
}

func TestWebsocketRejectsExpiredToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, 1, "alice")
	ts.app.MockClock.Advance(48 * time.Hour)

	_, resp, err := ts.dial(token)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketAcceptsAuthorizationHeader(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	header := http.Header{"Authorization": {"Bearer " + ts.token(t, 1, "alice")}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	assert.Eventually(t, func() bool { return ts.app.Registry.Count() == 1 }, time.Second, 10*time.Millisecond)
	assert.NotNil(t, ts.app.Registry.LookupByUsername("alice"))
}

func TestSecondConnectionForIdentityRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.mustDial(t, 1, "alice")

	_, resp, err := ts.dial(ts.token(t, 1, "alice"))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apierr.CodeAlreadyConnected, decodeError(t, resp).Code)
	assert.Equal(t, 1, ts.app.Registry.Count())
}

func TestStatusReportsOccupancy(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.mustDial(t, 1, "alice")
	write(t, alice, realtime.TypeJoinQueue, realtime.JoinQueuePayload{Identity: "alice"})
	require.Eventually(t, func() bool { return ts.app.Queue.Len() == 1 }, time.Second, 10*time.Millisecond)

	resp := ts.get(t, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status response.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, response.Status{Connections: 1, Rooms: 0, Queued: 1}, status)
}

func TestGamePlayedOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueIntn(0, 1)

	alice := ts.mustDial(t, 1, "alice")
	bob := ts.mustDial(t, 2, "bob")

	write(t, alice, realtime.TypeJoinQueue, realtime.JoinQueuePayload{Identity: "alice"})
	require.Eventually(t, func() bool { return ts.app.Queue.Len() == 1 }, time.Second, 10*time.Millisecond)
	write(t, bob, realtime.TypeJoinQueue, realtime.JoinQueuePayload{Identity: "bob"})

	var started realtime.GameStartedPayload
	read(t, alice, realtime.TypeGameStarted, &started)
	read(t, bob, realtime.TypeGameStarted, nil)
	require.Equal(t, model.Username("alice"), started.FirstTurn)

	moves := []struct {
		ws   *websocket.Conn
		user model.Username
		cell int
	}{
		{alice, "alice", 0}, {bob, "bob", 4}, {alice, "alice", 1}, {bob, "bob", 8}, {alice, "alice", 2},
	}

	var update realtime.BoardUpdatedPayload
	for _, m := range moves {
		cell := m.cell
		write(t, m.ws, realtime.TypeMove, realtime.MovePayload{RoomName: started.RoomName, CellIndex: &cell, Identity: m.user})
		read(t, alice, realtime.TypeBoardUpdated, &update)
		read(t, bob, realtime.TypeBoardUpdated, nil)
	}

	require.NotNil(t, update.Outcome)
	require.NotNil(t, update.Outcome.Winner)
	assert.Equal(t, model.Username("alice"), *update.Outcome.Winner)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.app.Recorder.Wait(ctx))

	stats, err := ts.app.Storage.GetStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Losses)
}
