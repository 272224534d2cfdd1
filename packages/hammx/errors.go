package hammx

import (
	"errors"
	"fmt"
)

// ErrClientClosed is returned by requests made after Client.Close.
var ErrClientClosed = errors.New("hammx: client is closed")

// StatusError reports a response with a 4xx or 5xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}
