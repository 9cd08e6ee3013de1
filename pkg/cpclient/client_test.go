package cpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, code string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"statusCode": code, "statusMessage": "msg"}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/api/v1/"})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validate(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(Config{BaseURL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c, err := NewClient(Config{BaseURL: "http://localhost:8080/api/v1/", Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1", c.config.BaseURL)
	assert.Equal(t, defaultTimeout, c.config.Timeout)
	assert.Equal(t, "t", c.Token())
}

func TestClient_LoginKeepsToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "cp@example.com", body["email"])
			writeEnvelope(w, http.StatusOK, "0", map[string]interface{}{
				"user":   map[string]interface{}{"id": 3, "email": "cp@example.com", "role": "cp"},
				"tokens": map[string]interface{}{"access_token": "access-1", "refresh_token": "refresh-1"},
			})
		case "/api/v1/auth/me":
			gotAuth = r.Header.Get("Authorization")
			writeEnvelope(w, http.StatusOK, "0", map[string]interface{}{
				"user": map[string]interface{}{"id": 3, "email": "cp@example.com"},
			})
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.Login(context.Background(), "cp@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, uint(3), res.User.ID)
	assert.Equal(t, "access-1", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cp@example.com", me.Email)
	assert.Equal(t, "Bearer access-1", gotAuth)
}

func TestClient_NonZeroCodeIgnoresData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// a misbehaving server that sends data alongside a failure code
		writeEnvelope(w, http.StatusConflict, "MATERIAL_NOT_EDITABLE", map[string]interface{}{
			"material_id": 9, "status": 2,
		})
	})

	m, err := c.SaveMaterial(context.Background(), 9, SaveRequest{CpName: "Acme", Mode: "save_draft"})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Equal(t, "MATERIAL_NOT_EDITABLE", Code(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
}

func TestClient_ZeroCodeWithHTTPErrorStillSucceeds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusCreated, "0", map[string]interface{}{"material_id": 1, "status": 1})
	})

	m, err := c.SaveMaterial(context.Background(), 0, SaveRequest{CpName: "Acme", Mode: "save_draft"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), m.MaterialID)
	assert.Equal(t, 1, m.Status)
}

func TestClient_SaveMaterialMethod(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		writeEnvelope(w, http.StatusOK, "0", map[string]interface{}{"material_id": 5})
	})

	_, err := c.SaveMaterial(context.Background(), 0, SaveRequest{Mode: "save_draft"})
	require.NoError(t, err)
	_, err = c.SaveMaterial(context.Background(), 5, SaveRequest{Mode: "submit_review"})
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /api/v1/cp/material", "PUT /api/v1/cp/material/5"}, calls)
}

func TestClient_MyMaterialNilWhenAbsent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "0", nil)
	})

	m, err := c.MyMaterial(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestClient_ErrorSentinels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/admin/materials/1":
			writeEnvelope(w, http.StatusNotFound, "MATERIAL_NOT_FOUND", nil)
		default:
			writeEnvelope(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", nil)
		}
	})

	_, err := c.GetMaterial(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ListMaterials(context.Background(), "reviewing", 1, 20)
	assert.ErrorIs(t, err, ErrUnauthorized)

	c.config.BaseURL = "http://127.0.0.1:1"
	_, err = c.Statuses(context.Background())
	assert.ErrorIs(t, err, ErrNetworkError)
}

func TestClient_ListAndReview(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/admin/materials":
			assert.Equal(t, "reviewing", r.URL.Query().Get("status"))
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			writeEnvelope(w, http.StatusOK, "0", map[string]interface{}{
				"materials": []map[string]interface{}{{"material_id": 4, "status": 2}},
				"total":     21, "page": 2, "page_size": 20,
			})
		case "/api/v1/admin/materials/4/reject":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "blurry", body["comment"])
			writeEnvelope(w, http.StatusOK, "0", map[string]interface{}{"material_id": 4, "status": 4, "review_comment": "blurry"})
		default:
			http.NotFound(w, r)
		}
	})

	page, err := c.ListMaterials(context.Background(), "reviewing", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(21), page.Total)
	require.Len(t, page.Materials, 1)

	m, err := c.Reject(context.Background(), 4, "blurry")
	require.NoError(t, err)
	assert.Equal(t, "blurry", m.ReviewComment)
}

func TestClient_Export(t *testing.T) {
	payload := []byte("PK\x03\x04fake-xlsx")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") == "bad" {
			writeEnvelope(w, http.StatusBadRequest, "VALIDATION_INVALID_INPUT", nil)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(payload)
	})

	var buf bytes.Buffer
	n, err := c.Export(context.Background(), "", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())

	_, err = c.Export(context.Background(), "bad", &buf)
	assert.Equal(t, "VALIDATION_INVALID_INPUT", Code(err))
}
