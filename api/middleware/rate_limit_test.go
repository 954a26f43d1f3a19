package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abundantshare/share-backend/pkg/config"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

func allowAll(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func post(handler http.Handler, path, remote, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitKeepsBodyForHandler(t *testing.T) {
	policy := RateLimitPolicy{Name: PolicySignIn, Window: time.Minute, IPLimit: 2, SubjectField: "email", SubjectLimit: 2}
	handler := RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"email":"donor@example.com"`)
		w.WriteHeader(http.StatusOK)
	}))

	rec := post(handler, "/api/v1/auth/sign-in", "1.2.3.4:5678", `{"email":"donor@example.com","password":"secret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitSubjectIsCaseInsensitive(t *testing.T) {
	policy := RateLimitPolicy{Name: PolicySignIn, Window: time.Minute, SubjectField: "email", SubjectLimit: 2}
	handler := RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(allowAll))

	emails := []string{"Blocked@example.com", "blocked@example.com ", "BLOCKED@EXAMPLE.COM"}
	for i, email := range emails {
		rec := post(handler, "/api/v1/auth/sign-in", "10.0.0."+string(rune('1'+i))+":80", `{"email":"`+email+`","password":"x"}`)
		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))

		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	policy := RateLimitPolicy{Name: PolicySignUp, Window: time.Minute, IPLimit: 1}
	handler := RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(allowAll))

	assert.Equal(t, http.StatusOK, post(handler, "/api/v1/auth/sign-up", "5.6.7.8:1234", `{}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(handler, "/api/v1/auth/sign-up", "5.6.7.8:4321", `{}`).Code)
	assert.Equal(t, http.StatusOK, post(handler, "/api/v1/auth/sign-up", "9.9.9.9:1234", `{}`).Code)
}

func TestRateLimitPhoneCodes(t *testing.T) {
	policy := PhoneCodePolicy(config.AuthRateLimitConfig{PhoneCodeWindow: time.Hour, PhoneCodeLimit: 1})
	handler := RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(allowAll))

	assert.Equal(t, http.StatusOK, post(handler, "/api/v1/profile/phone/code", "1.1.1.1:1", `{"phone":"+15550001111"}`).Code)
	rec := post(handler, "/api/v1/profile/phone/code", "2.2.2.2:1", `{"phone":"+15550001111"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, post(handler, "/api/v1/profile/phone/code", "2.2.2.2:1", `{"phone":"+15550002222"}`).Code)
}

func TestRateLimitStoreFailure(t *testing.T) {
	policy := RateLimitPolicy{Name: PolicySignIn, Window: time.Minute, IPLimit: 5}
	handler := RateLimit(policy, failingRateStore{}, nil)(http.HandlerFunc(allowAll))

	assert.Equal(t, http.StatusServiceUnavailable, post(handler, "/api/v1/auth/sign-in", "1.2.3.4:1", `{}`).Code)
}

func TestRateLimitPassThrough(t *testing.T) {
	withoutStore := RateLimit(RateLimitPolicy{Name: PolicySignIn, Window: time.Minute, IPLimit: 1}, nil, nil)(http.HandlerFunc(allowAll))
	disabled := RateLimit(SignUpPolicy(config.AuthRateLimitConfig{}), newFakeRateStore(), nil)(http.HandlerFunc(allowAll))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(withoutStore, "/", "1.2.3.4:1", `{"email":"a@example.com"}`).Code)
		assert.Equal(t, http.StatusOK, post(disabled, "/", "1.2.3.4:1", `{"email":"a@example.com"}`).Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestMemoryRateStoreWindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryRateStore(func() time.Time { return now })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.IncrWithTTL(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	now = now.Add(time.Minute)
	got, err := store.IncrWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

type failingRateStore struct{}

func (failingRateStore) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis: connection refused")
}
