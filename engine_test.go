package authgate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	authgate "github.com/pressops/authgate"
	"github.com/pressops/authgate/accounts/memory"
	"github.com/pressops/authgate/token"
)

// fakeClock lets tests move the engine's notion of time without waiting.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engineTest struct {
	engine *authgate.Engine
	mr     *miniredis.Miniredis
	clock  *fakeClock
	cfg    authgate.Config
}

func newEngineTest(t *testing.T, provisionURL string) *engineTest {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()

	cfg := authgate.DefaultConfig()
	cfg.Token.AccessSecret = []byte("engine-test-access-secret")
	cfg.Token.RefreshSecret = []byte("engine-test-refresh-secret")
	cfg.Provision.URL = provisionURL

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccounts(memory.NewProvider()).
		WithNow(clock.Now).
		Build()
	require.NoError(t, err)

	return &engineTest{engine: engine, mr: mr, clock: clock, cfg: cfg}
}

func (et *engineTest) register(t *testing.T, email, pass string) {
	t.Helper()
	require.NoError(t, et.engine.Signup(context.Background(), email, pass))
}

func TestLoginIssuesValidPair(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")

	pair, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	id, err := et.engine.Validate(ctx, pair.AccessToken, token.Access)
	require.NoError(t, err)
	require.Equal(t, "u@x.com", id.Email)
	require.Equal(t, authgate.RoleOneman, id.Role)

	id, err = et.engine.Validate(ctx, pair.RefreshToken, token.Refresh)
	require.NoError(t, err)
	require.Equal(t, "u@x.com", id.Email)
}

func TestLoginSupersedesPriorSession(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")

	first, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)

	_, err = et.engine.Validate(ctx, first.AccessToken, token.Access)
	require.NoError(t, err)

	second, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	// The first pair dies immediately, long before its embedded expiry.
	_, err = et.engine.Validate(ctx, first.AccessToken, token.Access)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)
	_, err = et.engine.Validate(ctx, first.RefreshToken, token.Refresh)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)

	id, err := et.engine.Validate(ctx, second.AccessToken, token.Access)
	require.NoError(t, err)
	require.Equal(t, "u@x.com", id.Email)
	require.Equal(t, authgate.RoleOneman, id.Role)
}

func TestLogoutEvictsEverythingAndIsIdempotent(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")
	pair, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)

	require.NoError(t, et.engine.Logout(ctx, "u@x.com", pair.AccessToken, pair.RefreshToken))

	_, err = et.engine.Validate(ctx, pair.AccessToken, token.Access)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)
	_, err = et.engine.Validate(ctx, pair.RefreshToken, token.Refresh)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)

	// Nothing left for this account in the store.
	require.Empty(t, et.mr.Keys())

	// Logging out an already-ended session still succeeds.
	require.NoError(t, et.engine.Logout(ctx, "u@x.com", pair.AccessToken, pair.RefreshToken))
}

func TestValidateRejectsEmbeddedExpiryEvenWithLiveMarker(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")
	pair, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)

	// Move the clock past the access lifetime without touching redis: the
	// marker is still present, the embedded expiry alone must reject.
	et.clock.Advance(et.cfg.Token.AccessTTL + time.Minute)

	_, err = et.engine.Validate(ctx, pair.AccessToken, token.Access)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)

	// The refresh token outlives the access one.
	_, err = et.engine.Validate(ctx, pair.RefreshToken, token.Refresh)
	require.NoError(t, err)
}

func TestValidateRejectsDeadMarkerEvenBeforeEmbeddedExpiry(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")
	pair, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)

	// Expire the redis-side markers while the engine clock stands still:
	// the token itself is untouched, the missing marker alone must reject.
	et.mr.FastForward(et.cfg.Token.AccessTTL + time.Minute)

	_, err = et.engine.Validate(ctx, pair.AccessToken, token.Access)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)

	_, err = et.engine.Validate(ctx, pair.RefreshToken, token.Refresh)
	require.NoError(t, err)
}

func TestValidateRejectsKindConfusion(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")
	pair, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)

	_, err = et.engine.Validate(ctx, pair.RefreshToken, token.Access)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)
	_, err = et.engine.Validate(ctx, pair.AccessToken, token.Refresh)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)
}

func TestValidateRejectsGarbage(t *testing.T) {
	et := newEngineTest(t, "")

	_, err := et.engine.Validate(context.Background(), "not.a.token", token.Access)
	require.ErrorIs(t, err, authgate.ErrTokenInvalid)
}

func TestLoginCredentialFailures(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")

	_, err := et.engine.Login(ctx, "nobody@x.com", "swordfish-1")
	require.ErrorIs(t, err, authgate.ErrAccountNotFound)

	_, err = et.engine.Login(ctx, "u@x.com", "wrong-password")
	require.ErrorIs(t, err, authgate.ErrCredentialMismatch)
}

func TestSignupRejectsDuplicate(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")

	err := et.engine.Signup(ctx, "u@x.com", "different-pass")
	require.ErrorIs(t, err, authgate.ErrDuplicateAccount)
}

func TestConcurrentSignupHasExactlyOneWinner(t *testing.T) {
	et := newEngineTest(t, "")

	const attempts = 8
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = et.engine.Signup(context.Background(), "race@x.com", "swordfish-1")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, authgate.ErrDuplicateAccount)
	}
	require.Equal(t, 1, winners)

	_, err := et.engine.Login(context.Background(), "race@x.com", "swordfish-1")
	require.NoError(t, err)
}

func TestSignupProvisioningOutcomes(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":"success","msg":"counted"}`))
		}))
		defer srv.Close()

		et := newEngineTest(t, srv.URL)
		require.NoError(t, et.engine.Signup(context.Background(), "u@x.com", "swordfish-1"))
	})

	t.Run("explicit fail blocks signup", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":"fail","msg":"quota"}`))
		}))
		defer srv.Close()

		et := newEngineTest(t, srv.URL)
		err := et.engine.Signup(context.Background(), "u@x.com", "swordfish-1")
		require.ErrorIs(t, err, authgate.ErrProvisioningFailed)

		// No account materialized.
		_, err = et.engine.Login(context.Background(), "u@x.com", "swordfish-1")
		require.ErrorIs(t, err, authgate.ErrAccountNotFound)
	})

	t.Run("unreachable collaborator blocks signup", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		et := newEngineTest(t, srv.URL)
		err := et.engine.Signup(context.Background(), "u@x.com", "swordfish-1")
		require.ErrorIs(t, err, authgate.ErrProvisioningFailed)
	})
}

func TestStoreOutageFailsClosed(t *testing.T) {
	et := newEngineTest(t, "")
	ctx := context.Background()

	et.register(t, "u@x.com", "swordfish-1")
	pair, err := et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.NoError(t, err)

	et.mr.Close()

	// Login cannot succeed without the session write.
	_, err = et.engine.Login(ctx, "u@x.com", "swordfish-1")
	require.ErrorIs(t, err, authgate.ErrStoreUnavailable)

	// A cryptographically valid token is still rejected when liveness
	// cannot be checked.
	_, err = et.engine.Validate(ctx, pair.AccessToken, token.Access)
	require.ErrorIs(t, err, authgate.ErrStoreUnavailable)
	require.False(t, errors.Is(err, authgate.ErrTokenInvalid))

	err = et.engine.Logout(ctx, "u@x.com", pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, authgate.ErrStoreUnavailable)
}

func TestBuilderValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authgate.DefaultConfig()
	cfg.Token.AccessSecret = []byte("builder-test-access")
	cfg.Token.RefreshSecret = []byte("builder-test-refresh")

	_, err := authgate.New().WithConfig(cfg).WithAccounts(memory.NewProvider()).Build()
	require.Error(t, err, "redis client is required")

	_, err = authgate.New().WithConfig(cfg).WithRedis(client).Build()
	require.Error(t, err, "account provider is required")

	missingSecrets := authgate.DefaultConfig()
	_, err = authgate.New().
		WithConfig(missingSecrets).
		WithRedis(client).
		WithAccounts(memory.NewProvider()).
		Build()
	require.Error(t, err)

	b := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccounts(memory.NewProvider())
	_, err = b.Build()
	require.NoError(t, err)

	_, err = b.Build()
	require.Error(t, err, "a builder builds at most once")
}
