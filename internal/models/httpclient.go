// internal/models/httpclient.go
package models

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Provider status errors
var (
	ErrUnauthorized   = errors.New("unauthorized (401)")
	ErrRateLimit      = errors.New("rate limit exceeded (429)")
	ErrServerBusy     = errors.New("server busy (503)")
	ErrBadGateway     = errors.New("bad gateway (502)")
	ErrGatewayTimeout = errors.New("gateway timeout (504)")
)

// StatusError carries a non-2xx provider response
type StatusError struct {
	Provider string
	Code     int
	Body     string
	kind     error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.Code)
	if e.kind != nil {
		msg = e.kind.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

func (e *StatusError) Unwrap() error { return e.kind }

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 2048

// newHTTPClient returns a client suited to long-lived streams: the connect
// and response-header phases are bounded, the body is not.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = 30 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   5,
		},
	}
}

// checkResponse turns a non-2xx response into a *StatusError and closes the body.
func checkResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Provider: provider,
		Code:     resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
		kind:     statusKind(resp.StatusCode),
	}
}

// statusKind maps well-known HTTP statuses to sentinel errors
func statusKind(code int) error {
	switch code {
	case 401, 403:
		return ErrUnauthorized
	case 429:
		return ErrRateLimit
	case 502:
		return ErrBadGateway
	case 503:
		return ErrServerBusy
	case 504:
		return ErrGatewayTimeout
	default:
		return nil
	}
}
