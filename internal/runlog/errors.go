package runlog

import "fmt"

// StoreError wraps a failed run log store call with the operation name and,
// when the store answered at all, the HTTP status it returned.
type StoreError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("runlog %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("runlog %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, statusCode int, err error) *StoreError {
	return &StoreError{Op: op, StatusCode: statusCode, Err: err}
}
