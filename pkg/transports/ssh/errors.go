package ssh

import "fmt"

// TransportError wraps an SSH/SFTP failure with the operation and host it
// occurred on, so provisioning can report which node's transport broke.
type TransportError struct {
	// Op names the failed operation (connect, upload, probe).
	Op string

	// Host is the remote host the operation targeted.
	Host string

	// AuthFailure marks authentication rejections, which retrying with the
	// same credentials cannot fix.
	AuthFailure bool

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("ssh %s %s: %v", e.Op, e.Host, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(op, host string, err error) *TransportError {
	return &TransportError{Op: op, Host: host, Err: err}
}
