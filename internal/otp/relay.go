package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

const relayBodyReadLimit int64 = 1024

var errRelayURLRequired = errors.New("relay send and verify urls are required")

// Relay delegates codes to the remote one-time-code relay: one endpoint
// accepts {phone} and sends the code, the other accepts {phone, token}.
type Relay struct {
	httpClient *http.Client
	sendURL    string
	verifyURL  string
	token      string
}

type RelayOption func(*Relay)

func WithHTTPClient(client *http.Client) RelayOption {
	return func(r *Relay) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent to the relay.
func WithToken(token string) RelayOption {
	return func(r *Relay) { r.token = strings.TrimSpace(token) }
}

func WithTimeout(timeout time.Duration) RelayOption {
	return func(r *Relay) {
		if timeout > 0 {
			r.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func NewRelay(sendURL, verifyURL string, opts ...RelayOption) (*Relay, error) {
	sendURL, verifyURL = strings.TrimSpace(sendURL), strings.TrimSpace(verifyURL)
	if sendURL == "" || verifyURL == "" {
		return nil, errRelayURLRequired
	}
	r := &Relay{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sendURL:    sendURL,
		verifyURL:  verifyURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

type relaySendRequest struct {
	Phone string `json:"phone"`
}

type relayVerifyRequest struct {
	Phone string `json:"phone"`
	Token string `json:"token"`
}

func (r *Relay) Request(ctx context.Context, phone string) (Challenge, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return Challenge{}, err
	}
	if err := r.post(ctx, r.sendURL, relaySendRequest{Phone: phone}, "send"); err != nil {
		return Challenge{}, err
	}
	return Challenge{Phone: phone, ExpiresAt: time.Now().Add(5 * time.Minute)}, nil
}

func (r *Relay) Verify(ctx context.Context, phone, code string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	return r.post(ctx, r.verifyURL, relayVerifyRequest{Phone: phone, Token: strings.TrimSpace(code)}, "verify")
}

func (r *Relay) post(ctx context.Context, url string, body any, op string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal relay "+op+" request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build relay "+op+" request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute relay "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, relayBodyReadLimit))
	var relayErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &relayErr)
	msg := strings.TrimSpace(relayErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, cause, "too many verification attempts")
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, relayMessage(msg, op))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "relay "+op+" request failed")
	}
}

func relayMessage(msg, op string) string {
	switch msg {
	case "expired":
		return errExpired.Message()
	case "invalid":
		return errInvalidCode.Message()
	case "no otp requested":
		return errNoCode.Message()
	case "":
		return "relay rejected " + op + " request"
	default:
		return msg
	}
}
