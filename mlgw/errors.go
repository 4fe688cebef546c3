package mlgw

import "errors"

// Error kinds (§7). Connect, login, frame-sync and trace-line parse errors
// wrap one of these with %w so callers can branch on category with
// errors.Is; the frame and telegram payload decoders return plain errors.
var (
	ErrAuthInvalid        = errors.New("mlgw: invalid credentials")
	ErrHostInvalid        = errors.New("mlgw: host unreachable or not an mlgw/blgw hub")
	ErrGatewayInvalid     = errors.New("mlgw: wrong device at this address")
	ErrCannotConnect      = errors.New("mlgw: cannot connect")
	ErrProtocolMalformed  = errors.New("mlgw: malformed frame")
	ErrParseFailure       = errors.New("mlgw: parse failure")
	ErrTimeout            = errors.New("mlgw: timeout")
	ErrAuthRetryExhausted = errors.New("mlgw: login failed twice, giving up")
)

// UserFacingError maps an internal error to one of the coarse categories a
// setup UI can render without needing to understand protocol internals.
func UserFacingError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCannotConnect):
		return "cannot_connect"
	case errors.Is(err, ErrAuthInvalid), errors.Is(err, ErrAuthRetryExhausted):
		return "invalid_auth"
	case errors.Is(err, ErrHostInvalid):
		return "invalid_host"
	case errors.Is(err, ErrGatewayInvalid):
		return "invalid_gateway"
	default:
		return "unknown"
	}
}
