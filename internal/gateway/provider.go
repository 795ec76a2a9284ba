package gateway

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

var ErrPlaceCall = errors.New("gateway: place call failed")

// CallRequest describes one outbound leg to originate. URL is the webhook
// the provider fetches when the callee answers; StatusCallback receives
// ringing and completion events.
type CallRequest struct {
	To             string
	From           string
	URL            string
	StatusCallback string
	TimeoutSeconds int
	Record         bool
}

// PlacedCall is the provider's acknowledgement of an accepted origination.
type PlacedCall struct {
	ProviderCallID string
	Status         string
}

// Provider originates calls through a telephony carrier.
type Provider interface {
	PlaceCall(ctx context.Context, req CallRequest) (PlacedCall, error)
}

// sanitizeProviderError strips control characters and ANSI escapes from
// carrier error text before it reaches logs or API responses.
func sanitizeProviderError(msg string) string {
	var b strings.Builder
	b.Grow(len(msg))
	inEscape := false
	for _, r := range msg {
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if unicode.IsControl(r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
