package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var event ws.Event
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func TestWSController_StatusChangeReachesOwner(t *testing.T) {
	s := setupTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	cpID, cp := s.registerCP("cp@example.com")
	adminID, admin := s.createAdmin("admin@example.com")

	cpConn := dialEvents(t, srv, cp.AccessToken)
	adminConn := dialEvents(t, srv, admin.AccessToken)
	require.Eventually(t, func() bool {
		return s.hub.IsUserOnline(cpID) && s.hub.IsUserOnline(adminID)
	}, 2*time.Second, 10*time.Millisecond)

	w := s.do("POST", "/api/v1/cp/material", cp.AccessToken, completeRequest(lifecycle.ActionSubmitReview))
	require.Equal(t, http.StatusCreated, w.Code)

	event := readEvent(t, cpConn)
	assert.Equal(t, ws.EventMaterialStatusChanged, event.Type)
	payload, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(lifecycle.StatusReviewing), payload["to"])
	assert.Equal(t, false, payload["editable"])

	event = readEvent(t, adminConn)
	assert.Equal(t, ws.EventMaterialReviewRequested, event.Type)
}

func TestWSController_RequiresToken(t *testing.T) {
	s := setupTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSController_LogoutClosesSockets(t *testing.T) {
	s := setupTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	cpID, cp := s.registerCP("cp@example.com")
	conn := dialEvents(t, srv, cp.AccessToken)
	require.Eventually(t, func() bool { return s.hub.IsUserOnline(cpID) }, 2*time.Second, 10*time.Millisecond)

	w := s.do("POST", "/api/v1/auth/logout", cp.AccessToken, LogoutRequest{RefreshToken: cp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	event := readEvent(t, conn)
	assert.Equal(t, ws.EventSessionInvalidated, event.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return !s.hub.IsUserOnline(cpID) }, 2*time.Second, 10*time.Millisecond)

	// the revoked token can no longer open a socket
	url := fmt.Sprintf("ws%s/api/v1/ws?token=%s", strings.TrimPrefix(srv.URL, "http"), cp.AccessToken)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
