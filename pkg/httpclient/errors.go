package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/shopsphere/storefront-core/pkg/errors"
)

// ParseResponseError reads the body of a non-2xx HTTP response and
// translates it into a classified AppError. The storefront backend answers
// errors as plain text, so the body is used as the message verbatim after
// trimming. The response body is fully consumed and closed.
//
// The caller should only invoke this when resp.StatusCode indicates an
// error (i.e., not 2xx).
func ParseResponseError(resp *http.Response, endpoint string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return apperrors.Unavailable(endpoint,
			fmt.Errorf("status %d (failed to read body: %w)", resp.StatusCode, err))
	}

	message := strings.TrimSpace(string(bodyBytes))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	qualified := fmt.Sprintf("%s: %s", endpoint, message)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(endpoint, message)
	case resp.StatusCode == http.StatusConflict:
		return apperrors.Busy(qualified)
	case resp.StatusCode >= 500:
		return apperrors.Unavailable(endpoint,
			fmt.Errorf("status %d: %s", resp.StatusCode, message))
	default:
		// Remaining 4xx: the backend understood the request and declined it.
		return apperrors.Rejected(qualified)
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
// Useful when deciding whether a retry can ever succeed.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
