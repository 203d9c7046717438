package mcp

import (
	"errors"

	"github.com/danmuck/legosorter/internal/protocol"
)

var (
	ErrUnreachable    = errors.New("mcp: host unreachable")
	ErrTimeout        = errors.New("mcp: timed out waiting for response")
	ErrScriptNotFound = errors.New("mcp: script not found")
)

// IsTimeout reports whether err is a read timeout worth retrying.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnreachable reports whether the host could not be dialed.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsRemote reports whether the host answered status:"error".
func IsRemote(err error) bool {
	var remote *protocol.RemoteError
	return errors.As(err, &remote)
}

// IsMalformed reports whether the reply could not be decoded.
func IsMalformed(err error) bool {
	return errors.Is(err, protocol.ErrMalformedResponse) || errors.Is(err, protocol.ErrUnknownStatus)
}
