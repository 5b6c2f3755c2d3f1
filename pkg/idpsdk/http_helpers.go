package idpsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/soonrec/identity/pkg/slogx"
)

const (
	headerProjectID     = "X-Project-ID"
	headerSessionSecret = "X-Session-Secret"
)

// credential selects how a request authenticates.
type credential struct {
	admin         bool
	sessionSecret string
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs a JSON request. The request id is taken from ctx so
// provider logs line up with ours; a fresh one is minted otherwise.
func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	body any,
	cred credential,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerProjectID, c.ProjectID)

	reqID := slogx.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(slogx.RequestIDHeader, reqID)

	switch {
	case cred.admin:
		token, err := c.adminAssertion(time.Now())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case cred.sessionSecret != "":
		req.Header.Set(headerSessionSecret, cred.sessionSecret)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, nil
}

// decodeJSON decodes a JSON response into target, or returns the typed
// provider error when the status is not expectedStatus.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != expectedStatus {
		if perr := parseErrorResponse(resp, bodyBytes); perr != nil {
			return perr
		}
		return &APIError{StatusCode: resp.StatusCode, Type: "unexpected_status", Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatusNoContent returns a typed error if the response status is not 204 No Content.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		if perr := parseErrorResponse(resp, bodyBytes); perr != nil {
			return perr
		}
		return &APIError{StatusCode: resp.StatusCode, Type: "unexpected_status", Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
