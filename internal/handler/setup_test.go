package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/estate/internal/config"
	"github.com/xxxsen/estate/internal/filestore"
	"github.com/xxxsen/estate/internal/handler"
	"github.com/xxxsen/estate/internal/middleware"
	"github.com/xxxsen/estate/internal/repo"
	"github.com/xxxsen/estate/internal/service"
	"github.com/xxxsen/estate/internal/testutil"
	"github.com/xxxsen/estate/internal/tokenstore"
)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) Send(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := strings.Fields(body)
	for _, f := range fields {
		f = strings.Trim(f, ".,:")
		if len(f) == 6 && strings.Trim(f, "0123456789") == "" {
			s.codes[to] = f
		}
	}
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[strings.ToLower(email)]
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	router  http.Handler
	sender  *captureSender
	fileDir string
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)

	userRepo := repo.NewUserRepo(db)
	codeRepo := repo.NewEmailVerificationRepo(db)
	propertyRepo := repo.NewPropertyRepo(db)
	imageRepo := repo.NewPropertyImageRepo(db)

	jwtSecret := []byte("test-secret")
	sender := &captureSender{codes: map[string]string{}}
	blacklist := tokenstore.NewMemoryBlacklist(time.Minute)
	verifyService := service.NewEmailVerificationService(codeRepo, userRepo, sender, service.VerificationOptions{})
	authService := service.NewAuthService(userRepo, verifyService, blacklist, jwtSecret, time.Hour, true)
	propertyService := service.NewPropertyService(propertyRepo, imageRepo, nil)

	fileDir := t.TempDir()
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": fileDir},
	})
	require.NoError(t, err)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService, verifyService),
		Features:  handler.NewFeaturesHandler(config.Properties{EnableUserRegister: true}),
		Listings:  handler.NewListingHandler(propertyService),
		Files:     handler.NewFileHandler(store, propertyService, 1024*1024),
		JWTSecret: jwtSecret,
		Blacklist: blacklist,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testServer{router: engine, sender: sender, fileDir: fileDir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) envelope {
	t.Helper()
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

// register walks send_code and register for a fresh account and returns its token.
func (s *testServer) register(t *testing.T, email, role string) string {
	t.Helper()
	env := s.do(t, http.MethodPost, "/api/v1/auth/send_code", "", map[string]string{"email": email, "purpose": "register"})
	require.Equal(t, 0, env.Code, env.Msg)
	code := s.sender.code(email)
	require.Len(t, code, 6)

	env = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "role": role, "code": code,
	})
	require.Equal(t, 0, env.Code, env.Msg)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}
