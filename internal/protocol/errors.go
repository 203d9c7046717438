package protocol

import "errors"

var (
	ErrMalformedResponse = errors.New("protocol: malformed response")
	ErrUnknownStatus     = errors.New("protocol: unknown response status")
	ErrNoPayload         = errors.New("protocol: no payload in output")
	ErrEmptyCode         = errors.New("protocol: empty code")
)

// RemoteError is an explicit status:"error" reply from the host.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "protocol: remote error: Unknown error"
	}
	return "protocol: remote error: " + e.Message
}
