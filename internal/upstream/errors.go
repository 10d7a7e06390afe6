package upstream

import (
	"net/http"

	"github.com/plexgate/plexgate/internal/codec"
)

// Error represents a failed downstream call, already mapped to the status
// the gateway should surface. Downstream failures are never retried; a
// provider session is stateful and a blind replay risks duplicate side
// effects on the account.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// classify maps a provider rejection to a gateway status. Quota signals
// pass through; auth failures mean the stored session cookies are no longer
// valid, which is a gateway-side 502, not the client's 401.
func classify(providerStatus int, rawBody []byte) *Error {
	msg := codec.FormatUpstreamError(providerStatus, rawBody)
	switch {
	case providerStatus == http.StatusTooManyRequests:
		return &Error{StatusCode: http.StatusTooManyRequests, Message: msg}
	case providerStatus == http.StatusUnauthorized || providerStatus == http.StatusForbidden:
		return &Error{StatusCode: http.StatusBadGateway, Message: "provider session rejected; cookies may have expired: " + msg}
	case providerStatus == http.StatusServiceUnavailable:
		return &Error{StatusCode: http.StatusServiceUnavailable, Message: msg}
	default:
		return &Error{StatusCode: http.StatusBadGateway, Message: msg}
	}
}
