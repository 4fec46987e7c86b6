package threads

import "fmt"

// RemoteError marks a failure of the remote conversation API. Callers always
// catch it and degrade to fallback mode; it never reaches the end user.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("thread service %s failed: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("thread service %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
