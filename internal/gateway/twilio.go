package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioProvider originates calls through the Twilio REST API.
type TwilioProvider struct {
	client *twilio.RestClient
	log    *slog.Logger
}

func NewTwilioProvider(accountSID, authToken string, log *slog.Logger) *TwilioProvider {
	if log == nil {
		log = slog.Default()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{client: client, log: log}
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, req CallRequest) (PlacedCall, error) {
	params := (&openapi.CreateCallParams{}).
		SetTo(req.To).
		SetFrom(req.From).
		SetUrl(req.URL).
		SetMethod("POST")
	if req.StatusCallback != "" {
		params.SetStatusCallback(req.StatusCallback).
			SetStatusCallbackMethod("POST").
			SetStatusCallbackEvent([]string{"ringing", "completed"})
	}
	if req.TimeoutSeconds > 0 {
		params.SetTimeout(req.TimeoutSeconds)
	}
	if req.Record {
		params.SetRecord(true)
	}

	call, err := p.client.Api.CreateCall(params)
	if err != nil {
		p.log.Error("carrier rejected origination",
			"to_suffix", numberSuffix(req.To),
			"error", sanitizeProviderError(err.Error()),
		)
		return PlacedCall{}, fmt.Errorf("%w: %s", ErrPlaceCall, sanitizeProviderError(err.Error()))
	}

	placed := PlacedCall{}
	if call.Sid != nil {
		placed.ProviderCallID = *call.Sid
	}
	if call.Status != nil {
		placed.Status = *call.Status
	}
	return placed, nil
}

// numberSuffix keeps log lines useful without storing full numbers.
func numberSuffix(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "..." + number[len(number)-4:]
}
