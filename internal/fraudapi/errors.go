package fraudapi

import "fmt"

// FetchError reports a failed snapshot fetch: transport failure, timeout,
// non-success status or an undecodable body. It is never fatal to polling.
type FetchError struct {
	UserID     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch transactions for %s: status %d: %v", e.UserID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch transactions for %s: %v", e.UserID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubmitError is returned when the scorer answers a submission with a
// non-success status.
type SubmitError struct {
	StatusCode int
	Message    string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit transaction: status %d: %s", e.StatusCode, e.Message)
}
