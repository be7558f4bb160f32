package imucan

import "fmt"

// TransportError is bus level failure (read or write). TransportError is fatal for the current session.
type TransportError struct {
	// Op is operation that failed: "read", "write"
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %v failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
