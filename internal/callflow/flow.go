package callflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"callflow-platform/internal/admin"
	"callflow-platform/internal/campaign"
	"callflow-platform/internal/gateway"
	"callflow-platform/internal/political"
	"callflow-platform/internal/ratelimit"
	"callflow-platform/internal/schedule"
	"callflow-platform/internal/session"
	"callflow-platform/internal/target"
	"callflow-platform/internal/voice"
)

var (
	ErrNoNumbers   = errors.New("callflow: no outbound numbers for caller country")
	ErrBlocked     = errors.New("callflow: caller blocked")
	ErrRateLimited = errors.New("callflow: caller rate limited")
)

// Config carries the call-flow settings Flow needs from the environment.
type Config struct {
	// BaseURL is the absolute public URL the gateway calls back to.
	BaseURL string
	// InstalledOrg is spoken in the location intro.
	InstalledOrg string
	// DialTimeoutSeconds bounds how long a target leg rings.
	DialTimeoutSeconds int
	// TimeLimitSeconds hard-caps a bridged conversation.
	TimeLimitSeconds int
}

// Flow is the orchestration core. Each public method is one state of the
// machine: it rehydrates state from the decoded context, performs side
// effects, and emits a voice response whose action URLs carry the updated
// context. No call state lives in memory between steps.
type Flow struct {
	cfg       Config
	codec     *Codec
	targets   *target.Resolver
	sessions  *session.Service
	schedules *schedule.Service
	provider  gateway.Provider
	blocklist admin.Blocklist
	limiter   ratelimit.Limiter
	segment   *segmenter
	log       *slog.Logger
}

type FlowDeps struct {
	Campaigns campaign.Repository
	Targets   *target.Resolver
	Sessions  *session.Service
	Schedules *schedule.Service
	Provider  gateway.Provider
	Blocklist admin.Blocklist
	Limiter   ratelimit.Limiter
	Registry  political.Registry
	Log       *slog.Logger

	// Rand overrides the production randomness source in tests.
	Rand *rand.Rand
}

func NewFlow(cfg Config, deps FlowDeps) *Flow {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NoopLimiter{}
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Flow{
		cfg:       cfg,
		codec:     NewCodec(deps.Campaigns),
		targets:   deps.Targets,
		sessions:  deps.Sessions,
		schedules: deps.Schedules,
		provider:  deps.Provider,
		blocklist: deps.Blocklist,
		limiter:   deps.Limiter,
		segment:   newSegmenter(deps.Registry, rng),
		log:       deps.Log,
	}
}

func (f *Flow) Codec() *Codec { return f.codec }

func (f *Flow) actionURL(path string, cc CallContext) string {
	return f.cfg.BaseURL + path + "?" + cc.Encode().Encode()
}

/* ===================== INTRO STATES ===================== */

// Incoming handles the inbound ring. Archived campaigns get the completion
// message and nothing else.
func (f *Flow) Incoming(ctx context.Context, cc CallContext, c campaign.Campaign, fromNumber, campaignNumber string) (*voice.Response, error) {
	b := voice.NewBuilder(c)
	if c.Status == campaign.StatusArchived {
		resp := &voice.Response{}
		resp.Add(b.Prompt(campaign.MsgCampaignComplete, nil))
		return resp, nil
	}

	cc.UserPhone = fromNumber
	sess, err := f.sessions.Start(ctx, session.StartParams{
		CampaignID: c.ID,
		Direction:  session.DirectionInbound,
		FromNumber: campaignNumber,
		UserPhone:  fromNumber,
	})
	if err != nil {
		return nil, err
	}
	cc.SessionID = sess.ID

	return f.intro(cc, c), nil
}

// Connection is the gateway telling us an outbound leg was answered. Same
// branch decision as Incoming.
func (f *Flow) Connection(ctx context.Context, cc CallContext, c campaign.Campaign) (*voice.Response, error) {
	return f.intro(cc, c), nil
}

func (f *Flow) intro(cc CallContext, c campaign.Campaign) *voice.Response {
	if c.SegmentBy == campaign.SegmentByLocation &&
		c.LocateBy == campaign.LocateByPostal &&
		cc.UserLocation == "" {
		return f.introLocation(cc, c)
	}
	return f.introHuman(cc, c)
}

// introHuman plays the intro and waits for a keypress so we know a human
// answered rather than voicemail. Two gathers, the second with a literal
// fallback, then goodbye.
func (f *Flow) introHuman(cc CallContext, c campaign.Campaign) *voice.Response {
	b := voice.NewBuilder(c)
	resp := &voice.Response{}
	resp.Add(b.Prompt(campaign.MsgIntro, nil))

	action := f.actionURL("/call/make_calls", cc)
	resp.Add(voice.Gather{
		NumDigits: 1, Timeout: 10, Method: "POST", Action: action,
		Verbs: []any{b.Prompt(campaign.MsgIntroConfirm, nil)},
	})
	resp.Add(voice.Gather{
		NumDigits: 1, Timeout: 10, Method: "POST", Action: action,
		Verbs: []any{voice.Say{Language: "en", Text: "Press the star key to get started."}},
	})
	resp.Add(b.Prompt(campaign.MsgGoodbye, nil))
	return resp
}

// introLocation plays the location intro (campaign recording when present,
// plain intro otherwise) and gathers a postal code.
func (f *Flow) introLocation(cc CallContext, c campaign.Campaign) *voice.Response {
	b := voice.NewBuilder(c)
	resp := &voice.Response{}
	if m, ok := c.Messages[campaign.MsgIntroLocation]; ok && !m.IsZero() {
		resp.Add(b.Prompt(campaign.MsgIntroLocation, map[string]string{"organization": f.cfg.InstalledOrg}))
	} else {
		resp.Add(b.Prompt(campaign.MsgIntro, nil))
	}
	f.locationGather(resp, cc, c)
	return resp
}

// locationGather waits for 5 digits, retries once, then says goodbye.
func (f *Flow) locationGather(resp *voice.Response, cc CallContext, c campaign.Campaign) {
	b := voice.NewBuilder(c)
	g := voice.Gather{
		NumDigits: 5, Timeout: 10, Method: "POST",
		Action: f.actionURL("/call/location_parse", cc),
		Verbs:  []any{b.Prompt(campaign.MsgLocation, nil)},
	}
	resp.Add(g)
	resp.Add(b.Prompt(campaign.MsgUnparsedLocation, nil))
	resp.Add(g)
	resp.Add(b.Prompt(campaign.MsgGoodbye, nil))
}

/* ===================== OUTBOUND CREATE ===================== */

// TargetPreview summarizes segmentation for the web caller of /call/create.
type TargetPreview struct {
	Segment string         `json:"segment"`
	Objects []TargetObject `json:"objects,omitempty"`
}

type TargetObject struct {
	Title string `json:"title"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CreateResult is the JSON body of /call/create. Field names are a stable
// contract with embedding pages.
type CreateResult struct {
	Campaign   string         `json:"campaign"`
	Call       string         `json:"call,omitempty"`
	Script     string         `json:"script"`
	Redirect   string         `json:"redirect"`
	FromNumber string         `json:"fromNumber,omitempty"`
	Targets    *TargetPreview `json:"targets,omitempty"`
}

// Create places the outbound call to the user. Blocklist and rate limit are
// enforced before any telephony resource is committed.
func (f *Flow) Create(ctx context.Context, cc CallContext, c campaign.Campaign, record bool, ref string) (CreateResult, error) {
	phoneHash := f.sessions.HashPhone(cc.UserPhone)

	exempt, err := f.blocklist.IsAdmin(ctx, phoneHash)
	if err != nil {
		return CreateResult{}, err
	}
	if !exempt {
		blocked, err := f.blocklist.IsBlocked(ctx, phoneHash, cc.UserIP)
		if err != nil {
			return CreateResult{}, err
		}
		if blocked {
			return CreateResult{}, ErrBlocked
		}
		allowed, err := f.limiter.Allow(ctx, cc.UserPhone)
		if err != nil {
			return CreateResult{}, err
		}
		if !allowed {
			return CreateResult{}, ErrRateLimited
		}
	}

	numbers := c.NumbersFor(cc.UserCountry)
	if len(numbers) == 0 {
		return CreateResult{}, fmt.Errorf("%w: campaign %d in %s", ErrNoNumbers, c.ID, cc.UserCountry)
	}

	if c.Status == campaign.StatusArchived {
		return CreateResult{Campaign: string(c.Status)}, nil
	}

	// Compute custom targeting now so the order persists for this caller and
	// the calling page can preview it.
	var preview *TargetPreview
	if c.SegmentBy == campaign.SegmentByCustom {
		keys := append([]string(nil), c.TargetKeys...)
		if c.TargetOrdering == campaign.OrderShuffle {
			keys = capped(f.segment.sequence(ctx, c, cc.UserLocation), c.CallMaximum)
			cc.TargetKeys = keys
		}
		preview = &TargetPreview{Segment: "custom"}
		for _, key := range keys {
			t, _, err := f.targets.Resolve(ctx, key)
			if err != nil || t.Number == "" {
				continue
			}
			preview.Objects = append(preview.Objects, TargetObject{Title: t.Title, Name: t.Name, Phone: t.Number})
		}
	} else {
		preview = &TargetPreview{Segment: string(c.SegmentBy)}
	}

	fromNumber := numbers[f.segment.intn(len(numbers))]
	sess, err := f.sessions.Start(ctx, session.StartParams{
		CampaignID:   c.ID,
		Direction:    session.DirectionOutbound,
		FromNumber:   fromNumber,
		UserPhone:    cc.UserPhone,
		Location:     cc.UserLocation,
		ReferralCode: ref,
	})
	if err != nil {
		return CreateResult{}, err
	}
	cc.SessionID = sess.ID

	placed, err := f.provider.PlaceCall(ctx, gateway.CallRequest{
		To:             cc.UserPhone,
		From:           fromNumber,
		URL:            f.actionURL("/call/connection", cc),
		StatusCallback: f.actionURL("/call/status_callback", cc),
		TimeoutSeconds: f.cfg.DialTimeoutSeconds,
		Record:         record,
	})
	if err != nil {
		return CreateResult{}, err
	}

	result := CreateResult{
		Campaign:   string(c.Status),
		Call:       placed.Status,
		FromNumber: fromNumber,
		Targets:    preview,
	}
	if c.Embed != nil {
		result.Script = c.Embed.Script
		result.Redirect = c.Embed.Redirect
	}
	return result, nil
}

/* ===================== LOCATION & SCHEDULE ===================== */

// LocationParse validates the digits a caller entered against the political
// data cache. Invalid input replays the location gather; it is never an
// HTTP error.
func (f *Flow) LocationParse(ctx context.Context, cc CallContext, c campaign.Campaign, digits string) (*voice.Response, error) {
	if len(digits) > 5 {
		digits = digits[:5]
	}
	b := voice.NewBuilder(c)

	valid := false
	if provider, ok := f.segment.registry.ForCountry(c.CountryCode); ok {
		ok, err := provider.ValidateLocation(ctx, digits)
		if err != nil && !errors.Is(err, political.ErrLocation) {
			f.log.Warn("location validation failed", "error", err, "campaign_id", c.ID)
		}
		valid = ok && err == nil
	}

	if !valid {
		resp := &voice.Response{}
		resp.Add(b.Prompt(campaign.MsgInvalidLocation, map[string]string{"location": digits}))
		f.locationGather(resp, cc, c)
		return resp, nil
	}

	cc.UserLocation = digits
	if cc.SessionID != "" {
		if err := f.sessions.SetLocationOnce(ctx, cc.SessionID, digits); err != nil {
			f.log.Warn("session location update failed", "error", err, "session_id", cc.SessionID)
		}
	}

	resp := &voice.Response{}
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_calls", cc)})
	return resp, nil
}

// ScheduleParse handles the reminder opt-in digit: 1 subscribes, 9
// unsubscribes, anything else (including the gather timeout) is a no-op.
func (f *Flow) ScheduleParse(ctx context.Context, cc CallContext, c campaign.Campaign, digits string) (*voice.Response, error) {
	b := voice.NewBuilder(c)
	resp := &voice.Response{}
	phoneHash := f.sessions.HashPhone(cc.UserPhone)

	switch digits {
	case "1":
		resp.Add(b.Prompt(campaign.MsgScheduleStart, nil))
		if err := f.schedules.Subscribe(ctx, c.ID, cc.SessionID, phoneHash, cc.UserLocation); err != nil {
			f.log.Warn("schedule subscribe failed", "error", err, "campaign_id", c.ID)
		}
	case "9":
		resp.Add(b.Prompt(campaign.MsgScheduleStop, nil))
		if err := f.schedules.Unsubscribe(ctx, c.ID, cc.SessionID, phoneHash); err != nil {
			f.log.Warn("schedule unsubscribe failed", "error", err, "campaign_id", c.ID)
		}
	default:
		// gather timed out without a digit
	}

	cc.ScheduleSkip = true
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_calls", cc)})
	return resp, nil
}

/* ===================== DIAL SEQUENCE ===================== */

// MakeCalls fixes the target sequence and announces the call block, or
// prompts for scheduling first when the campaign asks for it.
func (f *Flow) MakeCalls(ctx context.Context, cc CallContext, c campaign.Campaign) (*voice.Response, error) {
	if c.PromptSchedule && !cc.ScheduleSkip {
		return f.schedulePrompt(ctx, cc, c)
	}
	return f.makeCalls(ctx, cc, c), nil
}

func (f *Flow) schedulePrompt(ctx context.Context, cc CallContext, c campaign.Campaign) (*voice.Response, error) {
	b := voice.NewBuilder(c)
	resp := &voice.Response{}

	promptKey := campaign.MsgPromptSchedule
	subscribed, err := f.schedules.IsSubscribed(ctx, c.ID, f.sessions.HashPhone(cc.UserPhone))
	if err != nil {
		f.log.Warn("schedule lookup failed", "error", err, "campaign_id", c.ID)
	}
	if subscribed {
		promptKey = campaign.MsgAlterSchedule
	}

	resp.Add(voice.Gather{
		NumDigits: 1, Timeout: 3, Method: "POST",
		Action: f.actionURL("/call/schedule_parse", cc),
		Verbs:  []any{b.Prompt(promptKey, nil)},
	})

	// On gather timeout the flow continues without re-prompting.
	cc.ScheduleSkip = true
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_calls", cc)})
	return resp, nil
}

func (f *Flow) makeCalls(ctx context.Context, cc CallContext, c campaign.Campaign) *voice.Response {
	b := voice.NewBuilder(c)
	resp := &voice.Response{}

	if len(cc.TargetKeys) == 0 {
		cc.TargetKeys = f.segment.sequence(ctx, c, cc.UserLocation)
	}
	if len(cc.TargetKeys) == 0 {
		resp.Add(b.Prompt(campaign.MsgInvalidLocation, map[string]string{"location": cc.UserLocation}))
		resp.Add(voice.Hangup{})
		return resp
	}

	cc.TargetKeys = capped(cc.TargetKeys, c.CallMaximum)
	cc.CallIndex = 0

	resp.Add(b.Prompt(campaign.MsgCallBlockIntro, map[string]string{
		"n_targets": strconv.Itoa(len(cc.TargetKeys)),
	}))
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_single", cc)})
	return resp
}

// MakeSingle bridges the caller to the target at the current index. An
// out-of-bounds index means the callback URL lost parameters (length
// limits); the machine self-heals by recomputing the sequence from scratch
// instead of erroring at the caller.
func (f *Flow) MakeSingle(ctx context.Context, cc CallContext, c campaign.Campaign) (*voice.Response, error) {
	if cc.CallIndex < 0 || cc.CallIndex >= len(cc.TargetKeys) {
		return f.resetSequence(ctx, cc, c), nil
	}

	b := voice.NewBuilder(c)
	key := cc.TargetKeys[cc.CallIndex]

	t, _, err := f.targets.Resolve(ctx, key)
	if err != nil {
		f.log.Error("target resolution failed", "error", err, "target_key", key)
		return f.skipTarget(cc, c), nil
	}
	if t.Number == "" {
		f.log.Error("no number for target", "target_key", key)
		return f.skipTarget(cc, c), nil
	}

	office := f.segment.selectOffice(c, t)

	resp := &voice.Response{}
	resp.Add(b.Prompt(campaign.MsgTargetIntro, map[string]string{
		"title":       t.Title,
		"name":        t.Name,
		"location":    office.Location,
		"office_type": office.Type,
		"district":    t.District,
	}))
	resp.Add(voice.Dial{
		Action:       f.actionURL("/call/complete", cc),
		Method:       "POST",
		CallerID:     cc.UserPhone,
		Timeout:      f.cfg.DialTimeoutSeconds,
		TimeLimit:    f.cfg.TimeLimitSeconds,
		HangupOnStar: true,
		Number:       &voice.Number{Value: office.Number},
	})
	return resp, nil
}

// skipTarget announces the problem and moves on to the next index.
func (f *Flow) skipTarget(cc CallContext, c campaign.Campaign) *voice.Response {
	b := voice.NewBuilder(c)
	resp := &voice.Response{}
	resp.Add(b.Prompt(campaign.MsgInvalidLocation, map[string]string{"location": cc.UserLocation}))
	cc.CallIndex++
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_single", cc)})
	return resp
}

// resetSequence recovers from a truncated target list: recompute everything
// and start over at index 0.
func (f *Flow) resetSequence(ctx context.Context, cc CallContext, c campaign.Campaign) *voice.Response {
	cc.CallIndex = 0
	cc.TargetKeys = f.segment.sequence(ctx, c, cc.UserLocation)
	resp := &voice.Response{}
	if len(cc.TargetKeys) == 0 {
		resp.Add(voice.Redirect{URL: f.actionURL("/call/make_calls", cc)})
		return resp
	}
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_single", cc)})
	return resp
}

// Complete records the outcome of one target dial and either advances to
// the next target or thanks the caller. Attempt persistence failures are
// logged and swallowed; losing a log row must never abort the journey.
func (f *Flow) Complete(ctx context.Context, cc CallContext, c campaign.Campaign, providerCallID, dialStatus string, dialDuration int) (*voice.Response, error) {
	if cc.CallIndex < 0 || cc.CallIndex >= len(cc.TargetKeys) {
		return f.resetSequence(ctx, cc, c), nil
	}

	b := voice.NewBuilder(c)
	key := cc.TargetKeys[cc.CallIndex]
	if dialStatus == "" {
		dialStatus = "unknown"
	}

	if err := f.sessions.LogAttempt(ctx, session.CallAttempt{
		SessionID:       cc.SessionID,
		CampaignID:      c.ID,
		TargetKey:       key,
		CallIndex:       cc.CallIndex,
		ProviderCallID:  providerCallID,
		Status:          dialStatus,
		DurationSeconds: dialDuration,
	}); err != nil {
		f.log.Error("failed to log attempt", "error", err, "session_id", cc.SessionID, "call_index", cc.CallIndex)
	}

	resp := &voice.Response{}
	if dialStatus == "busy" {
		params := map[string]string{"title": "", "name": ""}
		if t, _, err := f.targets.Resolve(ctx, key); err == nil {
			params["title"] = t.Title
			params["name"] = t.Name
		}
		resp.Add(b.Prompt(campaign.MsgTargetBusy, params))
	}

	if cc.CallIndex == len(cc.TargetKeys)-1 {
		resp.Add(b.Prompt(campaign.MsgFinalThanks, nil))
		return resp, nil
	}

	cc.CallIndex++
	callsLeft := len(cc.TargetKeys) - cc.CallIndex
	resp.Add(b.Prompt(campaign.MsgBetweenCalls, map[string]string{
		"calls_left": strconv.Itoa(callsLeft),
	}))
	resp.Add(voice.Redirect{URL: f.actionURL("/call/make_single", cc)})
	return resp, nil
}

/* ===================== ASYNC STATUS ===================== */

// StatusResult is the JSON echo for the async status endpoints.
type StatusResult struct {
	PhoneNumber string   `json:"phoneNumber"`
	CallStatus  string   `json:"callStatus"`
	TargetKeys  []string `json:"targetIds,omitempty"`
	CampaignID  string   `json:"campaignId"`
	Message     string   `json:"message,omitempty"`
}

// StatusCallback reconciles async provider events onto the session: queue
// delay on the first ringing event, terminal status plus duration when the
// provider reports completion. Replays are harmless.
func (f *Flow) StatusCallback(ctx context.Context, cc CallContext, from, to, callStatus, callDuration string) (StatusResult, error) {
	if cc.SessionID == "" {
		return StatusResult{
			PhoneNumber: from,
			CallStatus:  "unknown",
			Message:     "no sessionId passed, unable to update status",
			CampaignID:  cc.CampaignRef,
		}, nil
	}

	if callStatus == "ringing" {
		if err := f.sessions.RecordRinging(ctx, cc.SessionID); err != nil {
			f.log.Warn("queue delay update failed", "error", err, "session_id", cc.SessionID)
		}
	}

	// A duration is only present once the call is over.
	if callDuration != "" {
		seconds, _ := strconv.Atoi(callDuration)
		if callStatus == "" {
			callStatus = "unknown"
		}
		if err := f.sessions.CloseWithStatus(ctx, cc.SessionID, callStatus, seconds); err != nil {
			f.log.Warn("session close failed", "error", err, "session_id", cc.SessionID)
		}
	}

	return StatusResult{
		PhoneNumber: to,
		CallStatus:  callStatus,
		TargetKeys:  cc.TargetKeys,
		CampaignID:  cc.CampaignRef,
	}, nil
}

// StatusInbound reconciles an async completion event with the most recent
// open inbound session for the caller. An unmatched event reports unknown
// without erroring.
func (f *Flow) StatusInbound(ctx context.Context, cc CallContext, c campaign.Campaign, from, callStatus, callDuration string) (StatusResult, error) {
	seconds, _ := strconv.Atoi(callDuration)
	if callStatus == "" {
		callStatus = "unknown"
	}

	_, found, err := f.sessions.CloseOpenInbound(ctx, c.ID, from, cc.UserLocation, callStatus, seconds)
	if err != nil {
		return StatusResult{}, err
	}
	if !found {
		return StatusResult{
			PhoneNumber: from,
			CallStatus:  "unknown",
			Message:     "unable to find session matching campaign, location, and phone",
			CampaignID:  cc.CampaignRef,
		}, nil
	}
	return StatusResult{
		PhoneNumber: from,
		CallStatus:  callStatus,
		CampaignID:  cc.CampaignRef,
	}, nil
}
