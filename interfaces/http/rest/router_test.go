package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"diary-backend/application/services"
	"diary-backend/domain/config"
	"diary-backend/infrastructure/messaging/eventbridge"
	"diary-backend/infrastructure/persistence/sqlite"
	"diary-backend/infrastructure/provider"
	"diary-backend/interfaces/http/rest/handlers"
	"diary-backend/pkg/auth"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

const testSecret = "router-test-secret"

// fakeProvider serves the two provider endpoints and counts analyze calls
type fakeProvider struct {
	analyzeCalls int32
	down         atomic.Bool
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.down.Load() {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	switch r.URL.Path {
	case "/get_or_create_assistant":
		_, _ = w.Write([]byte(`{"assistant_id":"asst_1","thread_id":"thread_1"}`))
	case "/analyze":
		atomic.AddInt32(&p.analyzeCalls, 1)
		_, _ = w.Write([]byte(`{"emotion_analysis":"content","summary":"a good day","advice":"rest well","total_score":72}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testServer struct {
	handler  http.Handler
	provider *fakeProvider
	accounts *services.AccountService
	userID   int64
	token    string
}

func newTestServer(t *testing.T, options RouterOptions) *testServer {
	t.Helper()
	logger := zap.NewNop()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, sqlite.MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fp := &fakeProvider{}
	upstream := httptest.NewServer(fp)
	t.Cleanup(upstream.Close)

	metrics := observability.NewMetrics("diary")
	rules := config.DevelopmentDomainConfig()
	entries := sqlite.NewEntryRepository(db)
	analyses := sqlite.NewAnalysisRepository(db)
	users := sqlite.NewUserRepository(db)
	publisher := eventbridge.NewLogPublisher(logger)

	cfg := provider.DefaultConfig(upstream.URL)
	cfg.BreakerMinRequests = 100
	client := provider.NewClient(cfg, upstream.Client(), metrics, logger)

	sessions := services.NewSessionManager(users, client, nil, publisher, metrics, logger)
	orchestrator := services.NewAnalysisOrchestrator(entries, analyses, sessions, client,
		services.NewWeeklyAggregator(analyses), publisher, rules, metrics, logger)
	diary := services.NewDiaryService(entries, analyses, publisher, rules, metrics, logger)
	accounts := services.NewAccountService(users, publisher, logger)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: testSecret})
	require.NoError(t, err)

	router := NewRouter(diary, orchestrator, accounts, validator, db, metrics,
		pkgerrors.NewErrorHandler(logger, false), options, logger)

	user, err := accounts.CreateUser(ctx, "mina", "mina@example.com")
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return &testServer{
		handler:  router.Setup(),
		provider: fp,
		accounts: accounts,
		userID:   user.ID,
		token:    token,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, RouterOptions{ExposeMetrics: true})

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diary/2024.09.05", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diary/2024.09.05", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["error"].(map[string]interface{})["type"])
}

func TestSaveAndReadEntry(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024.09.05","contents":"went hiking"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode(t, rec)
	assert.Equal(t, services.MessageEntrySaved, saved["message"])
	assert.Equal(t, true, saved["created"])

	rec = s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024-09-05","contents":"overwrite attempt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.MessageEntryExists, decode(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode(t, rec)
	assert.Equal(t, "went hiking", entry["contents"])
	assert.Equal(t, saved["diary_id"], entry["diary_id"])

	rec = s.do(t, http.MethodGet, "/api/v1/diary/2024.09.06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"diary_id":null,"contents":""}`, rec.Body.String())
}

func TestSaveEntryRejectsBadInput(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"05/09/2024","contents":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024.09.05","contents":"x","mood":"happy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/diary/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, pkgerrors.CodeInvalidDate, decode(t, rec)["error"].(map[string]interface{})["code"])
}

func TestAdviceIsCachedAndWeekAnchored(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024.09.05","contents":"went hiking"}`).Code)

	first := s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05/advice", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(handlers.DegradedHeader))

	second := s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05/advice", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&s.provider.analyzeCalls))

	result := decode(t, first)
	assert.Equal(t, "2024.09.05", result["date"])
	assert.Equal(t, float64(72), result["total_score"])
	assert.Equal(t, []interface{}{nil, nil, nil, nil, float64(72), nil, nil}, result["total_scores"])

	// A later date without its own entry falls back to this one.
	fallback := decode(t, s.do(t, http.MethodGet, "/api/v1/diary/2024.09.07/advice", ""))
	assert.Equal(t, "2024.09.05", fallback["date"])
}

func TestAdviceDegradesWhenProviderDown(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024.09.05","contents":"text"}`).Code)
	s.provider.down.Store(true)

	rec := s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05/advice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(handlers.DegradedHeader))
	assert.JSONEq(t, `{"date":null,"emotion_analysis":null,"summary":null,"advice":null,
		"total_score":null,"total_scores":[null,null,null,null,null,null,null]}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/diary/2024.09.05/analysis", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, pkgerrors.CodeProviderUnavailable, decode(t, rec)["error"].(map[string]interface{})["code"])
}

func TestUpdateDeleteAndMonth(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	for _, date := range []string{"2024.09.20", "2024.09.01", "2024.10.01"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"`+date+`","contents":"x"}`).Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/diary/months/2024/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dates":["2024.09.01","2024.09.20"]}`, rec.Body.String())

	entry := decode(t, s.do(t, http.MethodGet, "/api/v1/diary/2024.09.01", ""))
	id := strconv.FormatInt(int64(entry["diary_id"].(float64)), 10)

	rec = s.do(t, http.MethodPut, "/api/v1/diary/entries/"+id, `{"contents":"edited"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "edited", decode(t, s.do(t, http.MethodGet, "/api/v1/diary/2024.09.01", ""))["contents"])

	rec = s.do(t, http.MethodDelete, "/api/v1/diary/entries/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/v1/diary/entries/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/diary/months/2024/13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024.09.05","contents":"x"}`).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05/advice", "").Code)

	rec := s.do(t, http.MethodDelete, "/api/v1/users/me", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.JSONEq(t, `{"diary_id":null,"contents":""}`, s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05", "").Body.String())
	_, err := s.accounts.GetUser(context.Background(), s.userID)
	assert.True(t, pkgerrors.IsNotFound(err))

	rec = s.do(t, http.MethodDelete, "/api/v1/users/me", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLambdaAuthUsesGatewayHeader(t *testing.T) {
	s := newTestServer(t, RouterOptions{LambdaAuth: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diary/2024.09.05", nil)
	req.Header.Set("X-User-ID", strconv.FormatInt(s.userID, 10))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/diary/2024.09.05", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, RouterOptions{ExposeMetrics: true})
	s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05", "")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `diary_http_requests_total{method="GET",route="/api/v1/diary/{date}",status="200"} 1`)
}

func TestReanalyzeIsRateLimited(t *testing.T) {
	s := newTestServer(t, RouterOptions{AnalysisLimiter: auth.NewUserRateLimiter(2)})

	rec := s.do(t, http.MethodPost, "/api/v1/diary", `{"date":"2024.09.05","contents":"went hiking"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodPost, "/api/v1/diary/2024.09.05/analysis", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/diary/2024.09.05/analysis", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, pkgerrors.CodeRateLimited, decode(t, rec)["error"].(map[string]interface{})["code"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&s.provider.analyzeCalls))

	// cached advice does not count against the quota
	rec = s.do(t, http.MethodGet, "/api/v1/diary/2024.09.05/advice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
