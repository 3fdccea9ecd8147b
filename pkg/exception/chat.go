package exception

import "github.com/yanun0323/errors"

// Chat stream errors
var (
	// ErrInvalidEvent is returned for an event line whose payload is not a chat event.
	ErrInvalidEvent = errors.New("chat: invalid event")
	// ErrRegistryClosed is returned by Connect after the registry was closed.
	ErrRegistryClosed = errors.New("chat: registry closed")
	ErrNilOpener      = errors.New("chat: nil stream opener")
	ErrNilLocator     = errors.New("chat: nil stream locator")
)
