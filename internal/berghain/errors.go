package berghain

import "fmt"

// HTTPError represents a non-200 response from the challenge API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("berghain: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsNotFound returns true if the game id or endpoint was unknown.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsServerError returns true for 5xx responses.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}
