package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates the server rejected the API key.
	ErrUnauthorized = errors.New("api key rejected")
	// ErrNotFound indicates an unknown remote project, file or upload.
	ErrNotFound = errors.New("remote object not found")
	// ErrUnexpectedStatus indicates any other non-success response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrDigestMismatch indicates downloaded bytes that do not match the
	// digest the server advertised.
	ErrDigestMismatch = errors.New("downloaded content does not match digest")
	// ErrNotLinked indicates a call that needs a remote id the local
	// snapshot does not have yet.
	ErrNotLinked = errors.New("project has no remote id")
)

// TransportError reports a failed call to the corpus server. Target names the
// request path, or the file for uploads and downloads, so a retry can be aimed.
type TransportError struct {
	Op         string
	Target     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("corpus %s %s: status %d: %v", e.Op, e.Target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("corpus %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
