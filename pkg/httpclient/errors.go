package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// envelopeError is the error half of the platform's response envelope.
type envelopeError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes a non-2xx response and maps it onto an
// AppError, keeping the downstream code and message when the body is a
// platform envelope.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned %d (read body: %w)", service, resp.StatusCode, err)
	}

	code, message := "", string(body)
	var env envelopeError
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		code, message = env.Error.Code, env.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(service+" resource", message)
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(service + ": " + message)
	case resp.StatusCode == http.StatusConflict:
		return apperrors.Conflict(service + ": " + message)
	case resp.StatusCode >= 500:
		return apperrors.Unavailable(service, fmt.Errorf("status %d %s: %s", resp.StatusCode, code, message))
	default:
		return fmt.Errorf("%s returned %d %s: %s", service, resp.StatusCode, code, message)
	}
}

// GetJSON issues a GET through d and decodes a 2xx body into dst.
func GetJSON(ctx context.Context, d Doer, url, service string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.Do(ctx, req)
	if err != nil {
		return apperrors.Unavailable(service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, service)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}
