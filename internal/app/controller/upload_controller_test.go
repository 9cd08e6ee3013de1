package controller

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/ikkim/cpportal-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) upload(token, folder, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(s.t, err)
	_, err = part.Write(content)
	require.NoError(s.t, err)
	if folder != "" {
		require.NoError(s.t, mw.WriteField("folder", folder))
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/upload/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestUploadController_UploadImage(t *testing.T) {
	s := setupTestServer(t)
	_, tokens := s.registerCP("cp@example.com")
	token := tokens.AccessToken

	w := s.upload(token, "", "license.png", "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		URL string `json:"url"`
	}
	decode(t, w, &res)
	assert.Equal(t, "https://cdn.example.com/"+storage.FolderVerification+"/license.png", res.URL)

	w = s.upload(token, storage.FolderIcons, "icon.webp", "image/webp", []byte("webp"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.uploader.uploaded, 2)
}

func TestUploadController_Rejections(t *testing.T) {
	s := setupTestServer(t)
	_, tokens := s.registerCP("cp@example.com")
	token := tokens.AccessToken

	w := s.upload(token, "", "notes.pdf", "application/pdf", []byte("%PDF"))
	assert.Equal(t, apperrors.UploadInvalidFileType, statusOf(t, w, http.StatusBadRequest))

	w = s.upload(token, "", "big.png", "image/png", bytes.Repeat([]byte("x"), 2048))
	assert.Equal(t, apperrors.UploadFileTooLarge, statusOf(t, w, http.StatusRequestEntityTooLarge))

	w = s.upload(token, "../etc", "a.png", "image/png", []byte("x"))
	assert.Equal(t, apperrors.ValidationInvalidInput, statusOf(t, w, http.StatusBadRequest))

	req := httptest.NewRequest("POST", "/api/v1/upload/image", strings.NewReader("plain"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, apperrors.ValidationInvalidInput, statusOf(t, rec, http.StatusBadRequest))

	assert.Empty(t, s.uploader.uploaded)
}

func TestUploadController_StorageFailure(t *testing.T) {
	s := setupTestServer(t)
	_, tokens := s.registerCP("cp@example.com")
	s.uploader.err = errors.New("bucket unavailable")

	w := s.upload(tokens.AccessToken, "", "a.png", "image/png", []byte("x"))
	assert.Equal(t, apperrors.UploadFailed, statusOf(t, w, http.StatusBadGateway))
}

func TestUploadController_PresignedURL(t *testing.T) {
	s := setupTestServer(t)
	_, tokens := s.registerCP("cp@example.com")
	token := tokens.AccessToken

	w := s.do("POST", "/api/v1/upload/presigned-url", token, GeneratePresignedURLRequest{
		Filename:    "license.jpg",
		ContentType: "image/jpeg",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res storage.PresignedURLResponse
	decode(t, w, &res)
	assert.Equal(t, storage.FolderVerification+"/license.jpg", res.Key)
	assert.NotEmpty(t, res.UploadURL)

	w = s.do("POST", "/api/v1/upload/presigned-url", token, GeneratePresignedURLRequest{
		Filename:    "a.exe",
		ContentType: "application/octet-stream",
	})
	assert.Equal(t, apperrors.UploadInvalidFileType, statusOf(t, w, http.StatusBadRequest))

	w = s.do("POST", "/api/v1/upload/presigned-url", "", GeneratePresignedURLRequest{Filename: "a.png", ContentType: "image/png"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
