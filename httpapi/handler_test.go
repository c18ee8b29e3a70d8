package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	authgate "github.com/pressops/authgate"
	"github.com/pressops/authgate/accounts/memory"
	"github.com/pressops/authgate/httpapi"
)

type apiTest struct {
	router  http.Handler
	headers authgate.HeaderConfig
	mr      *miniredis.Miniredis
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authgate.DefaultConfig()
	cfg.Token.AccessSecret = []byte("httpapi-test-access")
	cfg.Token.RefreshSecret = []byte("httpapi-test-refresh")

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccounts(memory.NewProvider()).
		Build()
	require.NoError(t, err)

	handler := httpapi.NewHandler(engine, zerolog.Nop())
	return &apiTest{router: handler.Routes(), headers: engine.Headers(), mr: mr}
}

func (at *apiTest) post(t *testing.T, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	at.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (result, msg string) {
	t.Helper()
	var body struct {
		Result string `json:"result"`
		Msg    string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Result, body.Msg
}

func TestSignupEndpoint(t *testing.T) {
	at := newAPITest(t)

	rec := at.post(t, "/api/v1/member/signup", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	result, _ := decodeEnvelope(t, rec)
	require.Equal(t, "success", result)

	rec = at.post(t, "/api/v1/member/signup", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	result, msg := decodeEnvelope(t, rec)
	require.Equal(t, "fail", result)
	require.Contains(t, msg, "already registered")
}

func TestSignupValidation(t *testing.T) {
	at := newAPITest(t)

	cases := map[string]string{
		"malformed json":   `{"email":`,
		"missing email":    `{"password":"swordfish-1"}`,
		"bad email format": `{"email":"not-an-email","password":"swordfish-1"}`,
		"short password":   `{"email":"u@x.com","password":"short"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := at.post(t, "/api/v1/member/signup", body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			result, _ := decodeEnvelope(t, rec)
			require.Equal(t, "fail", result)
		})
	}
}

func TestLoginEndpointSetsTokenHeaders(t *testing.T) {
	at := newAPITest(t)

	at.post(t, "/api/v1/member/signup", `{"email":"u@x.com","password":"swordfish-1"}`, nil)

	rec := at.post(t, "/api/v1/member/login", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(at.headers.Access))
	require.NotEmpty(t, rec.Header().Get(at.headers.Refresh))

	rec = at.post(t, "/api/v1/member/login", `{"email":"u@x.com","password":"wrong-password"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Header().Get(at.headers.Access))

	rec = at.post(t, "/api/v1/member/login", `{"email":"ghost@x.com","password":"swordfish-1"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	at := newAPITest(t)

	at.post(t, "/api/v1/member/signup", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	login := at.post(t, "/api/v1/member/login", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	access := login.Header().Get(at.headers.Access)
	refresh := login.Header().Get(at.headers.Refresh)

	// No token: the gate rejects before the handler runs.
	rec := at.post(t, "/api/v1/member/logout", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = at.post(t, "/api/v1/member/logout", "", map[string]string{
		at.headers.Access:  access,
		at.headers.Refresh: refresh,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The evicted access token no longer authenticates.
	rec = at.post(t, "/api/v1/member/logout", "", map[string]string{
		at.headers.Access:  access,
		at.headers.Refresh: refresh,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginDuringStoreOutage(t *testing.T) {
	at := newAPITest(t)

	at.post(t, "/api/v1/member/signup", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	at.mr.Close()

	rec := at.post(t, "/api/v1/member/login", `{"email":"u@x.com","password":"swordfish-1"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	result, msg := decodeEnvelope(t, rec)
	require.Equal(t, "fail", result)
	require.Contains(t, msg, "unavailable")
}
