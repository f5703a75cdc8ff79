package generate

import "fmt"

// RequestFailedError is returned when the generation API answers with a
// non-success status. The stream is never read in that case.
type RequestFailedError struct {
	StatusCode int
	Body       string
}

func (e RequestFailedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation request failed with status %d", e.StatusCode)
	}

	return fmt.Sprintf("generation request failed with status %d: %s", e.StatusCode, e.Body)
}
