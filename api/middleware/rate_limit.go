package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/pkg/config"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

// RateLimiterStore counts attempts within a window. pkg/redis.Client and
// MemoryRateStore satisfy it.
type RateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// Policy names, also used as the counter key namespace.
const (
	PolicySignIn    = "sign-in"
	PolicySignUp    = "sign-up"
	PolicyPhoneCode = "phone-code"
)

// maxThrottledBody caps how much of a request body is buffered to find the
// subject field.
const maxThrottledBody = 64 << 10

// RateLimitPolicy throttles one endpoint by client IP and, optionally, by a
// subject read from a JSON body field such as the email or phone number.
// A zero limit disables that counter.
type RateLimitPolicy struct {
	Name         string
	Window       time.Duration
	IPLimit      int
	SubjectField string
	SubjectLimit int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.subjectEnabled())
}

func (p RateLimitPolicy) subjectEnabled() bool {
	return p.SubjectLimit > 0 && p.SubjectField != ""
}

func (p RateLimitPolicy) key(scope, value string) string {
	return "rl:" + p.Name + ":" + scope + ":" + value
}

func SignInPolicy(cfg config.AuthRateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{Name: PolicySignIn, Window: cfg.LoginWindow, IPLimit: cfg.LoginIPLimit, SubjectField: "email", SubjectLimit: cfg.LoginEmailLimit}
}

func SignUpPolicy(cfg config.AuthRateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{Name: PolicySignUp, Window: cfg.RegisterWindow, IPLimit: cfg.RegisterIPLimit, SubjectField: "email", SubjectLimit: cfg.RegisterEmailLimit}
}

// PhoneCodePolicy limits how often a code can be sent to one number, on top
// of the per-challenge resend cooldown.
func PhoneCodePolicy(cfg config.AuthRateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{Name: PolicyPhoneCode, Window: cfg.PhoneCodeWindow, IPLimit: cfg.PhoneCodeIPLimit, SubjectField: "phone", SubjectLimit: cfg.PhoneCodeLimit}
}

// RateLimit rejects requests over the policy's limits with RATE_LIMIT_EXCEEDED
// and a Retry-After of one window. A nil store or disabled policy passes
// everything through.
func RateLimit(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if ip := clientIP(r); policy.IPLimit > 0 && ip != "" {
				if !check(ctx, w, logg, store, policy, "ip", ip, policy.IPLimit) {
					return
				}
			}

			if policy.subjectEnabled() && r.Body != nil {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxThrottledBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if subject := subjectFrom(body, policy.SubjectField); subject != "" {
					if !check(ctx, w, logg, store, policy, policy.SubjectField, hashValue(subject), policy.SubjectLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check increments one counter and writes the rejection when it is over.
func check(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store RateLimiterStore, policy RateLimitPolicy, scope, value string, limit int) bool {
	count, err := store.IncrWithTTL(ctx, policy.key(scope, value), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
		return false
	}
	if count <= int64(limit) {
		return true
	}

	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   policy.Name,
			"scope":    scope,
			"attempts": count,
			"limit":    limit,
		}), "ratelimit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later").
		WithRetryAfter(policy.Window))
	return false
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func subjectFrom(payload []byte, field string) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(body[field], &value); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
