package moodle

import "fmt"

// RemoteServiceError reports a failed web service call: either Moodle answered
// with an exception envelope or the transport returned a non-2xx status.
type RemoteServiceError struct {
	Function   string
	Exception  string
	ErrorCode  string
	Message    string
	StatusCode int   // 0 when the failure came inside a 200 body
	Err        error // transport cause, if any
}

func (e *RemoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("moodle: %s failed: %v", e.Function, e.Err)
	}
	return fmt.Sprintf("moodle: %s failed: %s (%s): %s", e.Function, e.Exception, e.ErrorCode, e.Message)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }
