package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnknownType     = "E_UNKNOWN_TYPE"

	// Arbitration.
	ErrCooldown       = "E_COOLDOWN"
	ErrUnknownCommand = "E_UNKNOWN_COMMAND"

	// Server state.
	ErrQueueFull    = "E_QUEUE_FULL"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownType:     {},
	ErrCooldown:        {},
	ErrUnknownCommand:  {},
	ErrQueueFull:       {},
	ErrNoPermission:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
