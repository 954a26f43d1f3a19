package otp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/db/models"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/kv"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type clock struct{ at time.Time }

func (c *clock) now() time.Time { return c.at }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestLocalChallengeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := localstore.New(localstore.Params{KV: kv.NewMemory(), Logger: testLogger()})
	require.NoError(t, err)
	c := &clock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	local, err := NewLocal(store, config.OTPConfig{TTL: 5 * time.Minute, DevCode: "123456"}, c.now)
	require.NoError(t, err)

	err = local.Verify(ctx, "+15550100", "123456")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	challenge, err := local.Request(ctx, " +15550100 ")
	require.NoError(t, err)
	require.Equal(t, "123456", challenge.Code)
	require.Equal(t, "+15550100", challenge.Phone)

	require.ErrorIs(t, local.Verify(ctx, "+15550100", "000000"), errInvalidCode)
	require.NoError(t, local.Verify(ctx, "+15550100", "123456"))
	require.ErrorIs(t, local.Verify(ctx, "+15550100", "123456"), errNoCode)
}

func TestLocalChallengeExpires(t *testing.T) {
	ctx := context.Background()
	store, err := localstore.New(localstore.Params{KV: kv.NewMemory(), Logger: testLogger()})
	require.NoError(t, err)
	c := &clock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	local, err := NewLocal(store, config.OTPConfig{TTL: 5 * time.Minute}, c.now)
	require.NoError(t, err)

	challenge, err := local.Request(ctx, "+15550100")
	require.NoError(t, err)
	require.Len(t, challenge.Code, CodeLength)

	c.at = c.at.Add(5*time.Minute + time.Second)
	require.ErrorIs(t, local.Verify(ctx, "+15550100", challenge.Code), errExpired)
}

func TestLocalVerifyTrimsSubmittedCode(t *testing.T) {
	ctx := context.Background()
	store, err := localstore.New(localstore.Params{KV: kv.NewMemory(), Logger: testLogger()})
	require.NoError(t, err)
	c := &clock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	local, err := NewLocal(store, config.OTPConfig{TTL: 5 * time.Minute, DevCode: "123456"}, c.now)
	require.NoError(t, err)

	_, err = local.Request(ctx, "+15550100")
	require.NoError(t, err)
	require.NoError(t, local.Verify(ctx, "+15550100", " 123456\n"))
}

func TestLocalRequestRequiresPhone(t *testing.T) {
	store, err := localstore.New(localstore.Params{KV: kv.NewMemory(), Logger: testLogger()})
	require.NoError(t, err)
	local, err := NewLocal(store, config.OTPConfig{}, nil)
	require.NoError(t, err)

	_, err = local.Request(context.Background(), "  ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type capturingSender struct{ codes map[string]string }

func (s *capturingSender) Send(_ context.Context, phone, code string) error {
	s.codes[phone] = code
	return nil
}

func newHosted(t *testing.T, c *clock) (*Hosted, *capturingSender, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.PhoneOTP{}))
	sender := &capturingSender{codes: map[string]string{}}
	h, err := NewHosted(HostedParams{
		Repo:   NewRepository(conn),
		Sender: sender,
		Config: config.OTPConfig{HMACKey: "secret", TTL: 5 * time.Minute, MaxAttempts: 5},
		Logger: testLogger(),
		Clock:  c.now,
	})
	require.NoError(t, err)
	return h, sender, conn
}

func TestHostedVerifyConsumesCode(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, sender, conn := newHosted(t, c)

	challenge, err := h.Request(ctx, "+15550100")
	require.NoError(t, err)
	require.Empty(t, challenge.Code)
	code := sender.codes["+15550100"]
	require.Len(t, code, CodeLength)

	var row models.PhoneOTP
	require.NoError(t, conn.First(&row, "phone = ?", "+15550100").Error)
	require.NotEqual(t, code, row.CodeHash)

	require.NoError(t, h.Verify(ctx, "+15550100", code))
	require.ErrorIs(t, h.Verify(ctx, "+15550100", code), errNoCode)
}

func TestHostedVerifyLimitsAttempts(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, sender, _ := newHosted(t, c)

	_, err := h.Request(ctx, "+15550100")
	require.NoError(t, err)
	wrong := "000000"
	if sender.codes["+15550100"] == wrong {
		wrong = "111111"
	}
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, h.Verify(ctx, "+15550100", wrong), errInvalidCode)
	}
	err = h.Verify(ctx, "+15550100", sender.codes["+15550100"])
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))

	// a fresh request resets the counter
	_, err = h.Request(ctx, "+15550100")
	require.NoError(t, err)
	require.NoError(t, h.Verify(ctx, "+15550100", sender.codes["+15550100"]))
}

func TestHostedVerifyExpired(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, sender, _ := newHosted(t, c)

	_, err := h.Request(ctx, "+15550100")
	require.NoError(t, err)
	c.at = c.at.Add(6 * time.Minute)
	require.ErrorIs(t, h.Verify(ctx, "+15550100", sender.codes["+15550100"]), errExpired)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestRelaySendsContract(t *testing.T) {
	var paths []string
	var payloads []map[string]string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		paths = append(paths, req.URL.Path)
		if got := req.Header.Get("Authorization"); got != "Bearer relay-token" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		var payload map[string]string
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		payloads = append(payloads, payload)
		if payload["token"] == "000000" {
			return jsonResponse(http.StatusBadRequest, `{"error":"invalid"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"ok":true}`), nil
	})

	relay, err := NewRelay("http://relay.test/send", "http://relay.test/verify",
		WithToken("relay-token"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = relay.Request(ctx, "+15550100")
	require.NoError(t, err)
	require.NoError(t, relay.Verify(ctx, "+15550100", "123456"))

	err = relay.Verify(ctx, "+15550100", "000000")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, errInvalidCode.Message(), pkgerrors.As(err).Message())

	require.Equal(t, []string{"/send", "/verify", "/verify"}, paths)
	require.Equal(t, map[string]string{"phone": "+15550100"}, payloads[0])
	require.Equal(t, map[string]string{"phone": "+15550100", "token": "123456"}, payloads[1])
}

func TestRelayMapsStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   pkgerrors.Code
	}{
		{name: "too many attempts", status: http.StatusTooManyRequests, want: pkgerrors.CodeRateLimit},
		{name: "server error", status: http.StatusInternalServerError, want: pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, `{"error":"nope"}`), nil
			})
			relay, err := NewRelay("http://relay.test/send", "http://relay.test/verify", WithHTTPClient(&http.Client{Transport: rt}))
			require.NoError(t, err)
			err = relay.Verify(context.Background(), "+15550100", "123456")
			require.True(t, pkgerrors.IsCode(err, tc.want), "got %v", err)
		})
	}
}

func TestNewSelectsProvider(t *testing.T) {
	store, err := localstore.New(localstore.Params{KV: kv.NewMemory(), Logger: testLogger()})
	require.NoError(t, err)

	c, err := New(Params{Config: config.OTPConfig{}, Local: store, Logger: testLogger()})
	require.NoError(t, err)
	require.IsType(t, &Local{}, c)

	c, err = New(Params{Config: config.OTPConfig{Provider: "relay", RelaySendURL: "http://a", RelayCheckURL: "http://b"}})
	require.NoError(t, err)
	require.IsType(t, &Relay{}, c)

	_, err = New(Params{Config: config.OTPConfig{Provider: "hosted", HMACKey: "k"}, Hosted: true})
	require.Error(t, err)
}
