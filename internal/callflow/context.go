package callflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"callflow-platform/internal/campaign"
)

var (
	ErrMissingParameter = errors.New("callflow: missing parameter")
	ErrUnknownCampaign  = errors.New("callflow: unknown campaign")
)

// CallContext is the transient state bag threaded through every webhook
// step. The process keeps no continuation between steps: everything the
// state machine needs is rehydrated from these parameters on each request.
type CallContext struct {
	// CampaignRef is the reference as received: a numeric id, or an exact
	// campaign name kept for legacy call-congress URLs.
	CampaignRef string

	SessionID string

	// TargetKeys is the fixed dial order for this caller. Once segmentation
	// runs, the capped list rides along in every subsequent URL so the
	// caller sees a stable sequence.
	TargetKeys []string
	CallIndex  int

	UserPhone    string
	UserCountry  string
	UserLocation string
	UserIP       string

	ScheduleSkip bool
}

// Encode flattens the context into URL-safe parameters. Inverse of Decode
// for every valid context.
func (cc CallContext) Encode() url.Values {
	v := url.Values{}
	v.Set("campaignId", cc.CampaignRef)
	if cc.SessionID != "" {
		v.Set("sessionId", cc.SessionID)
	}
	for _, key := range cc.TargetKeys {
		v.Add("targetIds", key)
	}
	if cc.CallIndex != 0 {
		v.Set("call_index", strconv.Itoa(cc.CallIndex))
	}
	if cc.UserPhone != "" {
		v.Set("userPhone", cc.UserPhone)
	}
	if cc.UserCountry != "" {
		v.Set("userCountry", cc.UserCountry)
	}
	if cc.UserLocation != "" {
		v.Set("userLocation", cc.UserLocation)
	}
	if cc.UserIP != "" {
		v.Set("userIPAddress", cc.UserIP)
	}
	if cc.ScheduleSkip {
		v.Set("scheduleSkip", "1")
	}
	return v
}

// Codec rehydrates contexts from webhook parameters. Decoding is pure aside
// from the campaign lookup.
type Codec struct {
	campaigns campaign.Repository
}

func NewCodec(campaigns campaign.Repository) *Codec {
	return &Codec{campaigns: campaigns}
}

// Decode validates and rebuilds the context. Rules:
// - campaignId is required, resolved by numeric id then exact name;
// - userPhone is required unless the event is an inbound ring;
// - country codes are upper-cased, defaulting to US;
// - the legacy zipcode parameter backfills userLocation;
// - remoteIP backfills userIPAddress when the URL does not carry one.
func (d *Codec) Decode(ctx context.Context, v url.Values, inbound bool, remoteIP string) (CallContext, campaign.Campaign, error) {
	cc := CallContext{
		CampaignRef:  v.Get("campaignId"),
		SessionID:    v.Get("sessionId"),
		TargetKeys:   v["targetIds"],
		UserPhone:    v.Get("userPhone"),
		UserCountry:  strings.ToUpper(v.Get("userCountry")),
		UserLocation: v.Get("userLocation"),
		UserIP:       v.Get("userIPAddress"),
		ScheduleSkip: v.Get("scheduleSkip") != "",
	}
	if cc.CampaignRef == "" {
		return CallContext{}, campaign.Campaign{}, fmt.Errorf("%w: campaignId", ErrMissingParameter)
	}
	if cc.UserPhone == "" && !inbound {
		return CallContext{}, campaign.Campaign{}, fmt.Errorf("%w: userPhone", ErrMissingParameter)
	}
	if cc.UserCountry == "" {
		cc.UserCountry = "US"
	}
	if cc.UserLocation == "" {
		cc.UserLocation = v.Get("zipcode")
	}
	if cc.UserIP == "" {
		cc.UserIP = firstForwardedIP(remoteIP)
	}
	if raw := v.Get("call_index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return CallContext{}, campaign.Campaign{}, fmt.Errorf("%w: call_index", ErrMissingParameter)
		}
		cc.CallIndex = i
	}

	camp, err := campaign.FindByRef(ctx, d.campaigns, cc.CampaignRef)
	if errors.Is(err, campaign.ErrNotFound) {
		return CallContext{}, campaign.Campaign{}, fmt.Errorf("%w: %s", ErrUnknownCampaign, cc.CampaignRef)
	}
	if err != nil {
		return CallContext{}, campaign.Campaign{}, err
	}
	return cc, camp, nil
}

// firstForwardedIP reduces an X-Forwarded-For chain to the client address.
func firstForwardedIP(ip string) string {
	if i := strings.Index(ip, ","); i >= 0 {
		return strings.TrimSpace(ip[:i])
	}
	return ip
}
