package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		context    string
		httpStatus int
		code       string
	}{
		{"Nil error", nil, "", http.StatusInternalServerError, InternalServerError},
		{"Missing name", lifecycle.ErrMissingName, "", http.StatusBadRequest, MaterialMissingName},
		{
			"Wrapped missing images",
			fmt.Errorf("save: %w", &lifecycle.TransitionError{From: lifecycle.StatusDraft, Action: lifecycle.ActionSubmitReview, Kind: lifecycle.ErrValidationFailed, Reason: lifecycle.ErrMissingVerificationImages}),
			"", http.StatusBadRequest, MaterialMissingVerificationImages,
		},
		{"Not editable", &lifecycle.TransitionError{From: lifecycle.StatusOnline, Action: lifecycle.ActionSaveDraft, Kind: lifecycle.ErrNotEditable}, "", http.StatusConflict, MaterialNotEditable},
		{"Invalid transition", lifecycle.ErrInvalidTransition, "", http.StatusConflict, MaterialInvalidTransition},
		{"Record not found for material", gorm.ErrRecordNotFound, "get material", http.StatusNotFound, MaterialNotFound},
		{"Record not found for notification", gorm.ErrRecordNotFound, "notification", http.StatusNotFound, NotificationNotFound},
		{"Record not found without context", gorm.ErrRecordNotFound, "", http.StatusNotFound, ResourceNotFound},
		{"Duplicate email", errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email"`), "", http.StatusConflict, AuthEmailAlreadyExists},
		{"Duplicate cp material", errors.New("UNIQUE constraint failed: cp_materials.cp_id"), "", http.StatusConflict, MaterialAlreadyExists},
		{"Foreign key", errors.New("violates foreign key constraint"), "", http.StatusBadRequest, ResourceNotFound},
		{"Network", errors.New("dial tcp: connection refused"), "", http.StatusBadGateway, InternalExternalAPI},
		{"Unknown", errors.New("boom"), "update material", http.StatusInternalServerError, InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseError(tt.err, tt.context)
			assert.Equal(t, tt.httpStatus, info.HTTPStatus)
			assert.Equal(t, tt.code, info.Code)
			assert.NotEmpty(t, info.Message)
		})
	}
}

func TestParseLifecycleError_IgnoresOtherErrors(t *testing.T) {
	_, ok := ParseLifecycleError(errors.New("boom"))
	assert.False(t, ok)
}

func TestParseAndRespond_WritesEnvelopeWithoutData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ParseAndRespond(c, lifecycle.ErrMissingReviewComment, "review material")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, MaterialMissingReviewComment, body["statusCode"])
	assert.NotContains(t, body, "data")
}

func TestOK_UsesZeroStatusCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Respond(c, http.StatusCreated, gin.H{"id": 1})

	require.Equal(t, http.StatusCreated, w.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, StatusOK, env.StatusCode)
	assert.NotNil(t, env.Data)
}
