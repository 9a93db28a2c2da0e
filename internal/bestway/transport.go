package bestway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// applicationID identifies the Bestway mobile app to the Gizwits cloud.
// It is fixed for all users.
const applicationID = "98754e684ec045528b073876c34c7348"

// defaultTimeout bounds every vendor API call. Calls that exceed it fail
// with a timeout error rather than hanging the polling loop.
const defaultTimeout = 10 * time.Second

// Vendor error codes carried in the {"error_code": N} envelope of
// non-2xx responses.
const (
	codeTokenInvalid      = 9004
	codeUserNotFound      = 9005
	codeIncorrectPassword = 9020
	codeDeviceOffline     = 9042
)

// transport is a thin wrapper around net/http for the vendor API.
//
// It applies the fixed headers, the per-call timeout, and the vendor
// error envelope decoding shared by every endpoint.
type transport struct {
	httpClient *http.Client
	apiRoot    string
}

func newTransport(apiRoot string, timeout time.Duration) *transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &transport{
		httpClient: &http.Client{Timeout: timeout},
		apiRoot:    apiRoot,
	}
}

// get performs an authenticated GET and decodes the JSON response into out.
func (t *transport) get(ctx context.Context, path, token string, out any) error {
	return t.do(ctx, http.MethodGet, path, token, nil, out)
}

// post performs an authenticated POST with a JSON body and decodes the
// JSON response into out. out may be nil when the response body is not
// needed.
func (t *transport) post(ctx context.Context, path, token string, body, out any) error {
	return t.do(ctx, http.MethodPost, path, token, body, out)
}

func (t *transport) do(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.apiRoot+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Gizwits-Application-Id", applicationID)
	if token != "" {
		req.Header.Set("X-Gizwits-User-token", token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}

	// All API responses are JSON, but the server often declares
	// 'text/html' as the content type. Decode the bytes directly and
	// never trust the header.
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrAPI, err)
	}

	return nil
}

// decodeAPIError maps a non-2xx response to a domain error.
//
// The API often provides a useful {"error_code": N} JSON envelope; known
// codes map to sentinel errors and everything else surfaces as a generic
// HTTP-status error.
func decodeAPIError(status int, body []byte) error {
	var envelope struct {
		ErrorCode int `json:"error_code"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch envelope.ErrorCode {
		case codeTokenInvalid:
			return ErrTokenInvalid
		case codeUserNotFound:
			return ErrUserNotFound
		case codeIncorrectPassword:
			return ErrIncorrectPassword
		case codeDeviceOffline:
			return ErrDeviceOffline
		}
	}
	return fmt.Errorf("%w: unexpected status %d", ErrAPI, status)
}
