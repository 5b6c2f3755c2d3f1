package idpsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable matches transport failures and 5xx responses.
var ErrUnavailable = errors.New("idpsdk: provider unavailable")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("idpsdk: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Is makes server-side failures match ErrUnavailable.
func (e *APIError) Is(target error) bool {
	return target == ErrUnavailable && e.StatusCode >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a 404 from the provider.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// parseErrorResponse converts a non-2xx response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Type != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       errResp.Type,
			Message:    errResp.Message,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Type:       "http_error",
		Message:    http.StatusText(resp.StatusCode),
	}
}
