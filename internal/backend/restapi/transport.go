package restapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"taskboard/internal/logging"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// AuthTransport stamps every outbound request with the current bearer token.
// The token source is consulted per request, so a login or logout between
// calls takes effect on the next call. Without a token the Authorization
// header is removed.
type AuthTransport struct {
	Source oauth2.TokenSource
	Base   http.RoundTripper
	Logger *logging.Logger
}

// NewAuthTransport wraps base (http.DefaultTransport if nil).
func NewAuthTransport(source oauth2.TokenSource, base http.RoundTripper, log *logging.Logger) *AuthTransport {
	if log == nil {
		log = logging.NopLogger()
	}
	return &AuthTransport{Source: source, Base: base, Logger: log}
}

// RoundTrip implements http.RoundTripper. The caller's request is not
// modified.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	authorized := false
	if t.Source != nil {
		if tok, err := t.Source.Token(); err == nil && tok.AccessToken != "" {
			tok.SetAuthHeader(r)
			authorized = true
		}
	}
	if !authorized {
		r.Header.Del("Authorization")
	}

	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		r.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := t.base().RoundTrip(r)
	if err != nil {
		t.Logger.Debug("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", id,
			"error", err.Error(),
		)
		return nil, err
	}

	t.Logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"request_id", id,
		"authorized", authorized,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}
