package rest

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
)

var (
	// ErrTransport is returned when the request could not be completed
	ErrTransport = errors.New("transport failure")

	// ErrHTTPStatus is matched by every *HTTPError
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrMalformedResponse is returned when the response lacks data the operation needs
	ErrMalformedResponse = errors.New("malformed response")

	// ErrMissingContentRange is returned by GetManyReference when the total cannot be read
	ErrMissingContentRange = fmt.Errorf("%w: missing Content-Range header", ErrMalformedResponse)
)

// HTTPError represents a non-2xx response from the backend
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	if body := strings.TrimSpace(string(e.Body)); body != "" {
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		msg += ": " + body
	}
	return msg
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// response is a fully read backend response
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// do performs one request and reads the whole response.
// A non-nil payload is sent as a JSON body.
func (a *Adapter) do(ctx context.Context, method, rawURL string, payload any) (*response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := marshalJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = strings.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.LogError(method, rawURL, time.Since(start), err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		a.logger.LogError(method, rawURL, duration, err)
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}
	a.logger.LogResponse(method, rawURL, resp.StatusCode, len(raw), duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       raw,
		}
	}

	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       raw,
	}, nil
}

// marshalJSON encodes v the way a browser's JSON.stringify would: no HTML escaping
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// decodeJSON decodes raw keeping numbers as json.Number so identifiers survive verbatim
func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after JSON value", ErrMalformedResponse)
	}
	return nil
}
