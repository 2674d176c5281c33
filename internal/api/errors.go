package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for non-2xx tracker responses. It carries
// enough to classify the failure: rate limits and server errors are
// transient and worth retrying, other client errors are permanent and
// demote the issue to skipped immediately.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker returned status %d for %s: %s", e.Status, e.URL, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient reports whether an error may succeed on retry. Network
// level failures carry no status and are treated as transient.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return err != nil
}

// IsPermanent reports whether an error is a definitive tracker
// rejection (not found, forbidden, ...) that no retry can fix.
func IsPermanent(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && !statusErr.Transient()
}
