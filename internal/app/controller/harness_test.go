package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	"github.com/ikkim/cpportal-backend/internal/db"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	"github.com/ikkim/cpportal-backend/internal/storage"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/ikkim/cpportal-backend/pkg/util"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type fakeUploader struct {
	uploaded []string
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, folder, filename, _ string, r io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://cdn.example.com/%s/%s", folder, filename)
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeUploader) PresignUpload(_ context.Context, folder, filename, _ string) (*storage.PresignedURLResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := folder + "/" + filename
	return &storage.PresignedURLResponse{
		UploadURL: "https://upload.example.com/" + key + "?sig=abc",
		FileURL:   "https://cdn.example.com/" + key,
		Key:       key,
	}, nil
}

func (f *fakeUploader) Driver() string { return "fake" }

type testServer struct {
	t           *testing.T
	router      *gin.Engine
	db          *gorm.DB
	authService service.AuthService
	uploader    *fakeUploader
	hub         *ws.Hub
}

// setupTestServer wires every controller the way the production router does
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)

	userRepo := repository.NewUserRepository(testDB)
	materialRepo := repository.NewMaterialRepository(testDB)
	notificationRepo := repository.NewNotificationRepository(testDB)

	authService := service.NewAuthService(userRepo, nil, hub, testJWTSecret, 15*time.Minute, 24*time.Hour)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, materialRepo, hub)
	materialService := service.NewMaterialService(materialRepo,
		service.WithEventPublisher(hub),
		service.WithReviewNotifier(notificationService),
	)

	uploader := &fakeUploader{}
	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret, authService)
	authCtrl := NewAuthController(authService)
	materialCtrl := NewMaterialController(materialService)
	adminCtrl := NewAdminMaterialController(materialService)
	uploadCtrl := NewUploadController(uploader, 1024)
	notificationCtrl := NewNotificationController(notificationService)
	wsCtrl := NewWSController(hub, []string{"*"})

	authenticated := authMiddleware.Authenticate()
	cpOnly := authMiddleware.RequireRole(model.RoleCP)
	adminOnly := authMiddleware.RequireRole(model.RoleAdmin)

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", authCtrl.Register)
	v1.POST("/auth/login", authCtrl.Login)
	v1.POST("/auth/refresh", authCtrl.Refresh)
	v1.POST("/auth/logout", authenticated, authCtrl.Logout)
	v1.GET("/auth/me", authenticated, authCtrl.GetMe)
	v1.GET("/materials/statuses", materialCtrl.ListStatuses)
	v1.POST("/materials/validate", authenticated, cpOnly, materialCtrl.ValidateMaterial)

	cp := v1.Group("/cp", authenticated, cpOnly)
	cp.GET("/material", materialCtrl.GetMyMaterial)
	cp.POST("/material", materialCtrl.CreateMaterial)
	cp.GET("/material/:id", materialCtrl.GetMaterial)
	cp.PUT("/material/:id", materialCtrl.UpdateMaterial)
	cp.GET("/material/:id/reviews", materialCtrl.ListMyReviews)

	admin := v1.Group("/admin", authenticated, adminOnly)
	admin.GET("/materials", adminCtrl.ListMaterials)
	admin.GET("/materials/export", adminCtrl.ExportMaterials)
	admin.GET("/materials/:id", adminCtrl.GetMaterial)
	admin.POST("/materials/:id/approve", adminCtrl.ApproveMaterial)
	admin.POST("/materials/:id/reject", adminCtrl.RejectMaterial)

	v1.POST("/upload/image", authenticated, uploadCtrl.UploadImage)
	v1.POST("/upload/presigned-url", authenticated, uploadCtrl.GeneratePresignedURL)

	v1.GET("/notifications", authenticated, notificationCtrl.GetNotifications)
	v1.GET("/notifications/unread-count", authenticated, notificationCtrl.GetUnreadCount)
	v1.PUT("/notifications/read-all", authenticated, notificationCtrl.MarkAllAsRead)
	v1.PUT("/notifications/:id/read", authenticated, notificationCtrl.MarkAsRead)

	v1.GET("/ws", authenticated, wsCtrl.HandleWebSocket)

	return &testServer{t: t, router: router, db: testDB, authService: authService, uploader: uploader, hub: hub}
}

// registerCP creates a CP account through the API and returns its access token
func (s *testServer) registerCP(email string) (uint, *util.TokenPair) {
	s.t.Helper()
	user, tokens, err := s.authService.Register(email, "password123", "CP "+email, "")
	require.NoError(s.t, err)
	return user.ID, tokens
}

// createAdmin inserts an admin directly; admins are never self-registered
func (s *testServer) createAdmin(email string) (uint, *util.TokenPair) {
	s.t.Helper()
	hash, err := util.HashPassword("password123")
	require.NoError(s.t, err)
	admin := &model.User{Email: email, PasswordHash: hash, Name: "Admin", Role: model.RoleAdmin}
	require.NoError(s.t, s.db.Create(admin).Error)

	_, tokens, err := s.authService.Login(email, "password123")
	require.NoError(s.t, err)
	return admin.ID, tokens
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type testEnvelope struct {
	Data          json.RawMessage   `json:"data"`
	StatusCode    string            `json:"statusCode"`
	StatusMessage string            `json:"statusMessage"`
	Fields        map[string]string `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// statusOf returns the envelope code and asserts the HTTP status
func statusOf(t *testing.T, w *httptest.ResponseRecorder, httpStatus int) string {
	t.Helper()
	require.Equal(t, httpStatus, w.Code, w.Body.String())
	return decode(t, w, nil).StatusCode
}
