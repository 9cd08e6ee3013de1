package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ikkim/cpportal-backend/config"
	"github.com/ikkim/cpportal-backend/internal/app/controller"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	"github.com/ikkim/cpportal-backend/internal/cache"
	"github.com/ikkim/cpportal-backend/internal/db"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	"github.com/ikkim/cpportal-backend/internal/router"
	"github.com/ikkim/cpportal-backend/internal/storage"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/ikkim/cpportal-backend/pkg/cpclient"
	redisstore "github.com/ikkim/cpportal-backend/pkg/redis"
	"github.com/ikkim/cpportal-backend/pkg/util"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryUploader struct{}

func (memoryUploader) Upload(_ context.Context, folder, filename, _ string, r io.Reader, _ int64) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "https://cdn.example.com/" + folder + "/" + filename, err
}

func (memoryUploader) PresignUpload(_ context.Context, folder, filename, _ string) (*storage.PresignedURLResponse, error) {
	key := folder + "/" + filename
	return &storage.PresignedURLResponse{UploadURL: "https://upload.example.com/" + key, FileURL: "https://cdn.example.com/" + key, Key: key}, nil
}

func (memoryUploader) Driver() string { return "memory" }

type TestServer struct {
	URL string
	DB  *gorm.DB
}

// setupIntegrationTest assembles the production router over SQLite and miniredis
func setupIntegrationTest(t *testing.T) *TestServer {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := redisstore.NewStore(rdb)

	cfg := &config.Config{
		Server:  config.ServerConfig{GinMode: "test"},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"https://portal.example.com"}},
		JWT:     config.JWTConfig{Secret: "test-secret", AccessTokenExpiry: 15 * time.Minute, RefreshTokenExpiry: 24 * time.Hour},
		Storage: config.StorageConfig{MaxUploadBytes: 1 << 20},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	userRepo := repository.NewUserRepository(testDB)
	materialRepo := repository.NewMaterialRepository(testDB)
	notificationRepo := repository.NewNotificationRepository(testDB)

	authService := service.NewAuthService(userRepo, store, hub, cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, materialRepo, hub)
	materialService := service.NewMaterialService(
		materialRepo,
		service.WithMaterialCache(cache.New[*model.Material]("material", 64, time.Minute)),
		service.WithSubmissionGuard(service.NewRedisSubmissionGuard(store, 10*time.Second)),
		service.WithEventPublisher(hub),
		service.WithReviewNotifier(notificationService),
	)

	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewMaterialController(materialService),
		controller.NewAdminMaterialController(materialService),
		controller.NewUploadController(memoryUploader{}, cfg.Storage.MaxUploadBytes),
		controller.NewNotificationController(notificationService),
		controller.NewWSController(hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(cfg.JWT.Secret, authService),
		cfg,
	)
	srv := httptest.NewServer(r.Setup())
	t.Cleanup(srv.Close)

	return &TestServer{URL: srv.URL, DB: testDB}
}

func (s *TestServer) client(t *testing.T) *cpclient.Client {
	t.Helper()
	c, err := cpclient.NewClient(cpclient.Config{BaseURL: s.URL + "/api/v1", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func (s *TestServer) adminClient(t *testing.T) *cpclient.Client {
	t.Helper()
	_, err := db.SeedAdmin(s.DB, "admin@example.com", "password123", "Admin")
	require.NoError(t, err)

	c := s.client(t)
	_, err = c.Login(context.Background(), "admin@example.com", "password123")
	require.NoError(t, err)
	return c
}

func TestIntegration_HealthMetricsAndCORS(t *testing.T) {
	s := setupIntegrationTest(t)

	resp, err := http.Get(s.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	req, err := http.NewRequest(http.MethodOptions, s.URL+"/api/v1/cp/material", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://portal.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://portal.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "http_requests_total")
}

func TestIntegration_ProviderToOnline(t *testing.T) {
	s := setupIntegrationTest(t)
	ctx := context.Background()

	provider := s.client(t)
	_, err := provider.Register(ctx, "cp@example.com", "password123", "Acme Provider", "010-0000-0000")
	require.NoError(t, err)

	m, err := provider.MyMaterial(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	images := []string{"https://cdn.example.com/b.png", "https://cdn.example.com/a.png"}
	m, err = provider.SaveMaterial(ctx, 0, cpclient.SaveRequest{CpName: "Acme", BusinessLicense: "123-45-67890", Mode: "save_draft"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Status)
	assert.True(t, m.Editable)

	_, err = provider.SaveMaterial(ctx, m.MaterialID, cpclient.SaveRequest{CpName: "Acme", BusinessLicense: "123-45-67890", Mode: "submit_review"})
	assert.Equal(t, "MATERIAL_MISSING_VERIFICATION_IMAGES", cpclient.Code(err))

	m, err = provider.SaveMaterial(ctx, m.MaterialID, cpclient.SaveRequest{
		CpName: "Acme", BusinessLicense: "123-45-67890", VerificationImages: images, Mode: "submit_review",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Status)
	assert.Equal(t, images, m.VerificationImages)

	admin := s.adminClient(t)
	page, err := admin.ListMaterials(ctx, "reviewing", 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	_, err = admin.Reject(ctx, m.MaterialID, "")
	assert.Equal(t, "MATERIAL_MISSING_REVIEW_COMMENT", cpclient.Code(err))

	rejected, err := admin.Reject(ctx, m.MaterialID, "license number mismatch")
	require.NoError(t, err)
	assert.Equal(t, 4, rejected.Status)

	m, err = provider.MyMaterial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "license number mismatch", m.ReviewComment)

	m, err = provider.SaveMaterial(ctx, m.MaterialID, cpclient.SaveRequest{
		CpName: "Acme", BusinessLicense: "123-45-67891", VerificationImages: images, Mode: "submit_review",
	})
	require.NoError(t, err)
	assert.Empty(t, m.ReviewComment)

	online, err := admin.Approve(ctx, m.MaterialID)
	require.NoError(t, err)
	assert.Equal(t, 3, online.Status)
	assert.False(t, online.Editable)

	_, err = provider.SaveMaterial(ctx, m.MaterialID, cpclient.SaveRequest{CpName: "Acme 2", BusinessLicense: "1", Mode: "save_draft"})
	assert.Equal(t, "MATERIAL_NOT_EDITABLE", cpclient.Code(err))

	detail, err := admin.GetMaterial(ctx, m.MaterialID)
	require.NoError(t, err)
	assert.Len(t, detail.Reviews, 5)
}

func TestIntegration_LogoutRevokesAcrossRedis(t *testing.T) {
	s := setupIntegrationTest(t)
	ctx := context.Background()

	c := s.client(t)
	res, err := c.Register(ctx, "cp@example.com", "password123", "Acme", "")
	require.NoError(t, err)

	require.NoError(t, c.Logout(ctx, res.Tokens.RefreshToken))

	c.SetToken(res.Tokens.AccessToken)
	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, cpclient.ErrUnauthorized)
	assert.Equal(t, "AUTH_TOKEN_REVOKED", cpclient.Code(err))
}

func TestIntegration_AdminsCannotSelfRegister(t *testing.T) {
	s := setupIntegrationTest(t)
	ctx := context.Background()

	c := s.client(t)
	res, err := c.Register(ctx, "Someone@Example.com", "password123", "Someone", "")
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleCP), res.User.Role)
	assert.Equal(t, "someone@example.com", res.User.Email)

	_, err = c.ListMaterials(ctx, "", 1, 20)
	assert.Equal(t, "AUTHZ_FORBIDDEN", cpclient.Code(err))

	claims, err := util.ValidateToken(res.Tokens.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(res.User.ID), claims.Subject)
}
