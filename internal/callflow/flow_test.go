package callflow

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"strings"
	"testing"

	"callflow-platform/internal/admin"
	"callflow-platform/internal/audit"
	"callflow-platform/internal/campaign"
	"callflow-platform/internal/gateway"
	"callflow-platform/internal/political"
	"callflow-platform/internal/ratelimit"
	"callflow-platform/internal/schedule"
	"callflow-platform/internal/session"
	"callflow-platform/internal/target"
	"callflow-platform/internal/voice"
)

// fakePolitical serves canned target keys per location.
type fakePolitical struct {
	valid   map[string]bool
	targets map[string][]string
}

func (f fakePolitical) ValidateLocation(_ context.Context, location string) (bool, error) {
	return f.valid[location], nil
}

func (f fakePolitical) AllTargets(_ context.Context, location string) (political.TargetSets, error) {
	keys, ok := f.targets[location]
	if !ok {
		return nil, political.ErrLocation
	}
	return political.TargetSets{"all": keys}, nil
}

func (f fakePolitical) SortTargets(sets political.TargetSets, _, _ string, _ bool, _ *rand.Rand) []string {
	return sets["all"]
}

func (f fakePolitical) RegionChoices() []political.Region { return nil }

type flowFixture struct {
	flow      *Flow
	campaigns *campaign.MemoryRepo
	sessions  *session.MemoryRepo
	svc       *session.Service
	provider  *gateway.FakeProvider
	blocklist *admin.MemoryBlocklist
	limiter   *ratelimit.MemoryLimiter
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	campaigns := campaign.NewMemoryRepo()
	sessions := session.NewMemoryRepo()
	sessSvc := session.NewService(sessions, "pepper", false)
	provider := gateway.NewFakeProvider()
	blocklist := admin.NewMemoryBlocklist()
	limiter := ratelimit.NewMemoryLimiter(100)

	source := target.StaticSource{
		"custom:1":      {Title: "Senator", Name: "Alice Ash", Number: "+12025550001"},
		"custom:2":      {Title: "Senator", Name: "Bob Birch", Number: "+12025550002"},
		"custom:3":      {Title: "Representative", Name: "Carol Cedar", Number: "+12025550003"},
		"us:bioguide:A": {Title: "Senator", Name: "Dana Dell", Number: "+12025550010", Location: "Washington"},
		"us:bioguide:B": {Title: "Representative", Name: "Eli Elm", Number: "+12025550011"},
		"custom:mute":   {Title: "Governor", Name: "No Phone"},
	}
	resolver := target.NewResolver(target.NewMemoryRepo(), source, nil)

	registry := political.Registry{"US": fakePolitical{
		valid: map[string]bool{"02110": true},
		targets: map[string][]string{
			"02110": {"us:bioguide:A", "us:bioguide:B"},
		},
	}}

	schedules := schedule.NewService(schedule.NewMemoryRepo(), audit.NewService(audit.NewMemoryRepo()), nil)

	flow := NewFlow(Config{
		BaseURL:            "https://calls.example.org",
		InstalledOrg:       "Example Org",
		DialTimeoutSeconds: 40,
		TimeLimitSeconds:   900,
	}, FlowDeps{
		Campaigns: campaigns,
		Targets:   resolver,
		Sessions:  sessSvc,
		Schedules: schedules,
		Provider:  provider,
		Blocklist: blocklist,
		Limiter:   limiter,
		Registry:  registry,
		Rand:      rand.New(rand.NewSource(42)),
	})

	return &flowFixture{
		flow:      flow,
		campaigns: campaigns,
		sessions:  sessions,
		svc:       sessSvc,
		provider:  provider,
		blocklist: blocklist,
		limiter:   limiter,
	}
}

func (fx *flowFixture) customCampaign(t *testing.T, mutate func(*campaign.Campaign)) campaign.Campaign {
	t.Helper()
	c := campaign.Campaign{
		Name:        "custom-camp",
		CountryCode: "us",
		Language:    "en",
		SegmentBy:   campaign.SegmentByCustom,
		TargetKeys:  []string{"custom:1", "custom:2", "custom:3"},
		Status:      campaign.StatusActive,
		PhoneNumbers: []campaign.PhoneNumber{
			{Number: "+15550001111", Country: "US"},
		},
	}
	if mutate != nil {
		mutate(&c)
	}
	return fx.campaigns.Put(c)
}

func (fx *flowFixture) locationCampaign(t *testing.T, mutate func(*campaign.Campaign)) campaign.Campaign {
	t.Helper()
	c := campaign.Campaign{
		Name:        "location-camp",
		CountryCode: "us",
		Language:    "en",
		SegmentBy:   campaign.SegmentByLocation,
		LocateBy:    campaign.LocateByPostal,
		Status:      campaign.StatusActive,
		PhoneNumbers: []campaign.PhoneNumber{
			{Number: "+15550002222", Country: "US"},
		},
	}
	if mutate != nil {
		mutate(&c)
	}
	return fx.campaigns.Put(c)
}

func verbsOf(resp *voice.Response) []any { return resp.Verbs }

func findRedirect(t *testing.T, resp *voice.Response) (voice.Redirect, bool) {
	t.Helper()
	for _, v := range resp.Verbs {
		if r, ok := v.(voice.Redirect); ok {
			return r, true
		}
	}
	return voice.Redirect{}, false
}

func countGathers(resp *voice.Response) int {
	n := 0
	for _, v := range resp.Verbs {
		if _, ok := v.(voice.Gather); ok {
			n++
		}
	}
	return n
}

func sayTexts(resp *voice.Response) string {
	var b strings.Builder
	for _, v := range resp.Verbs {
		if s, ok := v.(voice.Say); ok {
			b.WriteString(s.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

/* ===================== INBOUND & INTRO ===================== */

func TestIncoming_ArchivedCampaignPlaysCompletionOnly(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, func(c *campaign.Campaign) { c.Status = campaign.StatusArchived })

	resp, err := fx.flow.Incoming(context.Background(), CallContext{CampaignRef: "1"}, c, "+1555", "+1444")
	if err != nil {
		t.Fatalf("Incoming: %v", err)
	}
	if len(verbsOf(resp)) != 1 {
		t.Fatalf("verbs = %d, want completion message only", len(verbsOf(resp)))
	}
	if countGathers(resp) != 0 {
		t.Fatal("archived campaign emitted a gather")
	}
	if _, found := findRedirect(t, resp); found {
		t.Fatal("archived campaign emitted a redirect")
	}
}

func TestIncoming_LocationCampaignGathersPostalCode(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.locationCampaign(t, nil)

	resp, err := fx.flow.Incoming(context.Background(), CallContext{CampaignRef: "1"}, c, "+15551230000", "+15550002222")
	if err != nil {
		t.Fatalf("Incoming: %v", err)
	}
	if countGathers(resp) != 2 {
		t.Fatalf("gathers = %d, want 2 (prompt + retry)", countGathers(resp))
	}
	var gather voice.Gather
	for _, v := range resp.Verbs {
		if g, ok := v.(voice.Gather); ok {
			gather = g
			break
		}
	}
	if !strings.Contains(gather.Action, "/call/location_parse") {
		t.Fatalf("gather action = %q", gather.Action)
	}
	if !strings.Contains(gather.Action, "sessionId=") {
		t.Fatalf("session id not threaded through action URL: %q", gather.Action)
	}
}

func TestIncoming_CustomCampaignWaitsForHuman(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	resp, err := fx.flow.Incoming(context.Background(), CallContext{CampaignRef: "1"}, c, "+1555", "+1444")
	if err != nil {
		t.Fatalf("Incoming: %v", err)
	}
	if countGathers(resp) != 2 {
		t.Fatalf("gathers = %d, want 2", countGathers(resp))
	}
	for _, v := range resp.Verbs {
		if g, ok := v.(voice.Gather); ok && !strings.Contains(g.Action, "/call/make_calls") {
			t.Fatalf("gather action = %q", g.Action)
		}
	}
}

/* ===================== CREATE ===================== */

func TestCreate_ShuffleCapScenario(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, func(c *campaign.Campaign) {
		c.TargetOrdering = campaign.OrderShuffle
		c.CallMaximum = 2
	})

	cc := CallContext{CampaignRef: "1", UserPhone: "+15551230000", UserCountry: "US"}
	result, err := fx.flow.Create(context.Background(), cc, c, false, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Targets == nil || result.Targets.Segment != "custom" {
		t.Fatalf("targets preview = %+v", result.Targets)
	}
	if len(result.Targets.Objects) != 2 {
		t.Fatalf("preview objects = %d, want exactly 2", len(result.Targets.Objects))
	}

	configured := map[string]bool{"Alice Ash": true, "Bob Birch": true, "Carol Cedar": true}
	seen := map[string]bool{}
	for _, obj := range result.Targets.Objects {
		if !configured[obj.Name] {
			t.Fatalf("unknown target in preview: %q", obj.Name)
		}
		if seen[obj.Name] {
			t.Fatalf("duplicate target in preview: %q", obj.Name)
		}
		seen[obj.Name] = true
	}

	calls := fx.provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls placed = %d", len(calls))
	}
	if n := strings.Count(calls[0].URL, "targetIds="); n != 2 {
		t.Fatalf("connection URL carries %d targetIds, want 2: %s", n, calls[0].URL)
	}
	if !strings.Contains(calls[0].URL, "/call/connection") {
		t.Fatalf("connection URL = %q", calls[0].URL)
	}
	if !strings.Contains(calls[0].StatusCallback, "/call/status_callback") {
		t.Fatalf("status callback URL = %q", calls[0].StatusCallback)
	}
}

func TestCreate_ArchivedShortCircuits(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, func(c *campaign.Campaign) { c.Status = campaign.StatusArchived })

	result, err := fx.flow.Create(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555", UserCountry: "US"}, c, false, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Campaign != "archived" || result.Call != "" {
		t.Fatalf("result = %+v", result)
	}
	if len(fx.provider.Calls()) != 0 {
		t.Fatal("call placed for archived campaign")
	}
}

func TestCreate_BlocklistedCallerRejected(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	hash := fx.svc.HashPhone("+15551230000")
	if err := fx.blocklist.BlockPhone(context.Background(), hash); err != nil {
		t.Fatalf("BlockPhone: %v", err)
	}

	_, err := fx.flow.Create(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+15551230000", UserCountry: "US"}, c, false, "")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if len(fx.provider.Calls()) != 0 {
		t.Fatal("call placed for blocked caller")
	}
}

func TestCreate_RateLimitExemptsAdmins(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)
	fx.limiter.Limit = 1
	ctx := context.Background()

	cc := CallContext{CampaignRef: "1", UserPhone: "+15551230000", UserCountry: "US"}
	if _, err := fx.flow.Create(ctx, cc, c, false, ""); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := fx.flow.Create(ctx, cc, c, false, ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second create err = %v, want ErrRateLimited", err)
	}

	if err := fx.blocklist.AddAdmin(ctx, fx.svc.HashPhone("+15551230000")); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if _, err := fx.flow.Create(ctx, cc, c, false, ""); err != nil {
		t.Fatalf("admin create err = %v, want exemption", err)
	}
}

func TestCreate_NoNumbersForCountry(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	_, err := fx.flow.Create(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+44555", UserCountry: "GB"}, c, false, "")
	if !errors.Is(err, ErrNoNumbers) {
		t.Fatalf("err = %v, want ErrNoNumbers", err)
	}
}

func TestCreate_PersistsReferralCode(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	ctx := context.Background()
	result, err := fx.flow.Create(ctx, CallContext{CampaignRef: "1", UserPhone: "+15551230000", UserCountry: "US"}, c, false, "partner-site")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.FromNumber != "+15550001111" {
		t.Fatalf("fromNumber = %q", result.FromNumber)
	}

	calls := fx.provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls placed = %d", len(calls))
	}
	parsed, err := url.Parse(calls[0].URL)
	if err != nil {
		t.Fatalf("connection URL: %v", err)
	}
	sessionID := parsed.Query().Get("sessionId")
	if sessionID == "" {
		t.Fatalf("no sessionId in connection URL: %q", calls[0].URL)
	}

	stored, err := fx.sessions.Get(ctx, sessionID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if stored.ReferralCode != "partner-site" {
		t.Fatalf("referral code = %q", stored.ReferralCode)
	}
	if stored.Direction != session.DirectionOutbound || stored.FromNumber != "+15550001111" {
		t.Fatalf("session = %+v", stored)
	}
	if stored.PhoneNumber != "" {
		t.Fatal("raw phone persisted without opt-in")
	}
}

/* ===================== LOCATION ===================== */

func TestLocationParse_InvalidRepromptsNotHangup(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.locationCampaign(t, nil)

	resp, err := fx.flow.LocationParse(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555"}, c, "99999")
	if err != nil {
		t.Fatalf("LocationParse: %v", err)
	}
	if countGathers(resp) != 2 {
		t.Fatalf("gathers = %d, want location reprompt", countGathers(resp))
	}
	for _, v := range resp.Verbs {
		if _, ok := v.(voice.Hangup); ok {
			t.Fatal("invalid location hung up immediately")
		}
	}
}

func TestLocationParse_ValidPersistsOnceAndRedirects(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.locationCampaign(t, nil)
	ctx := context.Background()

	sess, err := fx.svc.Start(ctx, session.StartParams{CampaignID: c.ID, Direction: session.DirectionInbound, UserPhone: "+1555"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	cc := CallContext{CampaignRef: "1", SessionID: sess.ID, UserPhone: "+1555"}
	resp, err := fx.flow.LocationParse(ctx, cc, c, "02110")
	if err != nil {
		t.Fatalf("LocationParse: %v", err)
	}
	r, found := findRedirect(t, resp)
	if !found || !strings.Contains(r.URL, "/call/make_calls") {
		t.Fatalf("redirect = %+v", r)
	}
	if !strings.Contains(r.URL, "userLocation=02110") {
		t.Fatalf("location not threaded into URL: %q", r.URL)
	}

	stored, _ := fx.sessions.Get(ctx, sess.ID)
	if stored.Location != "02110" {
		t.Fatalf("session location = %q", stored.Location)
	}
}

/* ===================== DIAL SEQUENCE ===================== */

func TestMakeCalls_NoTargetsSpokenTerminal(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.locationCampaign(t, nil)

	// Location lookup for an unknown postal code yields no targets.
	resp, err := fx.flow.MakeCalls(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555", UserLocation: "99999"}, c)
	if err != nil {
		t.Fatalf("MakeCalls: %v", err)
	}
	hangs := false
	for _, v := range resp.Verbs {
		if _, ok := v.(voice.Hangup); ok {
			hangs = true
		}
	}
	if !hangs {
		t.Fatal("empty sequence did not hang up")
	}
	if _, found := findRedirect(t, resp); found {
		t.Fatal("empty sequence still redirected")
	}
}

func TestMakeCalls_CapsSequenceAndRedirects(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, func(c *campaign.Campaign) { c.CallMaximum = 2 })

	resp, err := fx.flow.MakeCalls(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555"}, c)
	if err != nil {
		t.Fatalf("MakeCalls: %v", err)
	}
	r, found := findRedirect(t, resp)
	if !found || !strings.Contains(r.URL, "/call/make_single") {
		t.Fatalf("redirect = %+v", r)
	}
	if n := strings.Count(r.URL, "targetIds="); n != 2 {
		t.Fatalf("redirect carries %d targetIds, want 2: %s", n, r.URL)
	}
}

func TestMakeCalls_PromptsScheduleWhenRequested(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, func(c *campaign.Campaign) { c.PromptSchedule = true })

	resp, err := fx.flow.MakeCalls(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555"}, c)
	if err != nil {
		t.Fatalf("MakeCalls: %v", err)
	}
	if countGathers(resp) != 1 {
		t.Fatalf("gathers = %d, want schedule prompt", countGathers(resp))
	}
	r, found := findRedirect(t, resp)
	if !found || !strings.Contains(r.URL, "scheduleSkip=1") {
		t.Fatalf("timeout fallback must skip the prompt: %+v", r)
	}

	// With the skip flag set, the prompt is not repeated.
	resp, err = fx.flow.MakeCalls(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555", ScheduleSkip: true}, c)
	if err != nil {
		t.Fatalf("MakeCalls with skip: %v", err)
	}
	if countGathers(resp) != 0 {
		t.Fatal("schedule prompt repeated despite skip flag")
	}
}

func TestMakeSingle_BridgesToTarget(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	cc := CallContext{
		CampaignRef: "1",
		UserPhone:   "+15551230000",
		TargetKeys:  []string{"custom:1", "custom:2"},
		CallIndex:   0,
	}
	resp, err := fx.flow.MakeSingle(context.Background(), cc, c)
	if err != nil {
		t.Fatalf("MakeSingle: %v", err)
	}

	var dial voice.Dial
	found := false
	for _, v := range resp.Verbs {
		if d, ok := v.(voice.Dial); ok {
			dial = d
			found = true
		}
	}
	if !found {
		t.Fatal("no dial verb emitted")
	}
	if dial.Number == nil || dial.Number.Value != "+12025550001" {
		t.Fatalf("dialed number = %+v", dial.Number)
	}
	if dial.CallerID != "+15551230000" {
		t.Fatalf("caller id = %q", dial.CallerID)
	}
	if dial.TimeLimit != 900 || dial.Timeout != 40 {
		t.Fatalf("dial limits = %+v", dial)
	}
	if !strings.Contains(dial.Action, "/call/complete") {
		t.Fatalf("dial action = %q", dial.Action)
	}
	if !strings.Contains(sayTexts(resp), "Alice Ash") {
		t.Fatalf("target intro missing: %q", sayTexts(resp))
	}
}

func TestMakeSingle_OutOfRangeSelfHeals(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	cc := CallContext{
		CampaignRef: "1",
		UserPhone:   "+1555",
		TargetKeys:  []string{"custom:1"},
		CallIndex:   7,
	}
	resp, err := fx.flow.MakeSingle(context.Background(), cc, c)
	if err != nil {
		t.Fatalf("MakeSingle must self-heal, got %v", err)
	}
	r, found := findRedirect(t, resp)
	if !found || !strings.Contains(r.URL, "/call/make_single") {
		t.Fatalf("redirect = %+v", r)
	}
	if strings.Contains(r.URL, "call_index=") {
		t.Fatalf("index not reset to 0: %q", r.URL)
	}
	if n := strings.Count(r.URL, "targetIds="); n != 3 {
		t.Fatalf("recomputed sequence has %d targets, want full list of 3: %q", n, r.URL)
	}
}

func TestMakeSingle_SkipsTargetWithoutNumber(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)

	cc := CallContext{
		CampaignRef: "1",
		UserPhone:   "+1555",
		TargetKeys:  []string{"custom:mute", "custom:2"},
		CallIndex:   0,
	}
	resp, err := fx.flow.MakeSingle(context.Background(), cc, c)
	if err != nil {
		t.Fatalf("MakeSingle: %v", err)
	}
	r, found := findRedirect(t, resp)
	if !found || !strings.Contains(r.URL, "call_index=1") {
		t.Fatalf("redirect = %+v, want advance to next index", r)
	}
	for _, v := range resp.Verbs {
		if _, ok := v.(voice.Dial); ok {
			t.Fatal("dialed a target with no number")
		}
	}
}

func TestComplete_LastIndexPlaysFinalThanks(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)
	ctx := context.Background()

	sess, _ := fx.svc.Start(ctx, session.StartParams{CampaignID: c.ID, Direction: session.DirectionOutbound, UserPhone: "+1555"})
	cc := CallContext{
		CampaignRef: "1",
		SessionID:   sess.ID,
		UserPhone:   "+1555",
		TargetKeys:  []string{"custom:1"},
		CallIndex:   0,
	}
	resp, err := fx.flow.Complete(ctx, cc, c, "CA123", "completed", 95)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, found := findRedirect(t, resp); found {
		t.Fatal("final index still redirected")
	}
	if !strings.Contains(sayTexts(resp), "Thank you for calling") {
		t.Fatalf("final thanks missing: %q", sayTexts(resp))
	}

	attempts := fx.sessions.Attempts()
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d", len(attempts))
	}
	if attempts[0].TargetKey != "custom:1" || attempts[0].Status != "completed" || attempts[0].DurationSeconds != 95 {
		t.Fatalf("attempt = %+v", attempts[0])
	}
}

func TestComplete_ReplayIsIdempotent(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)
	ctx := context.Background()

	sess, _ := fx.svc.Start(ctx, session.StartParams{CampaignID: c.ID, Direction: session.DirectionOutbound, UserPhone: "+1555"})
	cc := CallContext{
		CampaignRef: "1",
		SessionID:   sess.ID,
		UserPhone:   "+1555",
		TargetKeys:  []string{"custom:1"},
		CallIndex:   0,
	}
	if _, err := fx.flow.Complete(ctx, cc, c, "CA123", "completed", 95); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := fx.flow.Complete(ctx, cc, c, "CA123", "completed", 95); err != nil {
		t.Fatalf("replayed Complete: %v", err)
	}
	if n := len(fx.sessions.Attempts()); n != 1 {
		t.Fatalf("attempts = %d, want 1", n)
	}
}

func TestComplete_BusyAnnouncesAndAdvances(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)
	ctx := context.Background()

	sess, _ := fx.svc.Start(ctx, session.StartParams{CampaignID: c.ID, Direction: session.DirectionOutbound, UserPhone: "+1555"})
	cc := CallContext{
		CampaignRef: "1",
		SessionID:   sess.ID,
		UserPhone:   "+1555",
		TargetKeys:  []string{"custom:1", "custom:2"},
		CallIndex:   0,
	}
	resp, err := fx.flow.Complete(ctx, cc, c, "CA124", "busy", 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	texts := sayTexts(resp)
	if !strings.Contains(texts, "busy") || !strings.Contains(texts, "Alice Ash") {
		t.Fatalf("busy announcement missing: %q", texts)
	}
	r, found := findRedirect(t, resp)
	if !found || !strings.Contains(r.URL, "call_index=1") {
		t.Fatalf("redirect = %+v", r)
	}
}

/* ===================== ASYNC STATUS ===================== */

func TestStatusCallback_CloseIsOneWayLatch(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.customCampaign(t, nil)
	ctx := context.Background()

	sess, _ := fx.svc.Start(ctx, session.StartParams{CampaignID: c.ID, Direction: session.DirectionOutbound, UserPhone: "+1555"})
	cc := CallContext{CampaignRef: "1", SessionID: sess.ID, UserPhone: "+1555"}

	if _, err := fx.flow.StatusCallback(ctx, cc, "+1555", "+1444", "ringing", ""); err != nil {
		t.Fatalf("ringing callback: %v", err)
	}

	first, err := fx.flow.StatusCallback(ctx, cc, "+1555", "+1444", "completed", "120")
	if err != nil {
		t.Fatalf("completion callback: %v", err)
	}
	second, err := fx.flow.StatusCallback(ctx, cc, "+1555", "+1444", "completed", "120")
	if err != nil {
		t.Fatalf("replayed completion callback: %v", err)
	}
	if first.CallStatus != second.CallStatus {
		t.Fatalf("echo mismatch: %q vs %q", first.CallStatus, second.CallStatus)
	}

	stored, _ := fx.sessions.Get(ctx, sess.ID)
	if !stored.Closed || stored.Status != "completed" || stored.DurationSeconds != 120 {
		t.Fatalf("session = %+v", stored)
	}
	if stored.QueueDelay <= 0 {
		t.Fatalf("queue delay not recorded: %v", stored.QueueDelay)
	}

	// A later contradictory event must not reopen the session.
	if _, err := fx.flow.StatusCallback(ctx, cc, "+1555", "+1444", "failed", "5"); err != nil {
		t.Fatalf("late callback: %v", err)
	}
	stored, _ = fx.sessions.Get(ctx, sess.ID)
	if stored.Status != "completed" || stored.DurationSeconds != 120 {
		t.Fatalf("closed session mutated: %+v", stored)
	}
}

func TestStatusCallback_WithoutSessionReportsUnknown(t *testing.T) {
	fx := newFlowFixture(t)
	fx.customCampaign(t, nil)

	result, err := fx.flow.StatusCallback(context.Background(), CallContext{CampaignRef: "1", UserPhone: "+1555"}, "+1555", "+1444", "completed", "10")
	if err != nil {
		t.Fatalf("StatusCallback: %v", err)
	}
	if result.CallStatus != "unknown" || result.Message == "" {
		t.Fatalf("result = %+v", result)
	}
}

func TestStatusInbound_MatchesAndCloses(t *testing.T) {
	fx := newFlowFixture(t)
	c := fx.locationCampaign(t, nil)
	ctx := context.Background()

	sess, _ := fx.svc.Start(ctx, session.StartParams{
		CampaignID: c.ID,
		Direction:  session.DirectionInbound,
		UserPhone:  "+15551230000",
		Location:   "02110",
	})

	cc := CallContext{CampaignRef: "1", UserLocation: "02110"}
	result, err := fx.flow.StatusInbound(ctx, cc, c, "+15551230000", "completed", "75")
	if err != nil {
		t.Fatalf("StatusInbound: %v", err)
	}
	if result.CallStatus != "completed" {
		t.Fatalf("result = %+v", result)
	}

	stored, _ := fx.sessions.Get(ctx, sess.ID)
	if !stored.Closed || stored.DurationSeconds != 75 {
		t.Fatalf("session = %+v", stored)
	}

	// No open session left: the echo degrades to unknown, not an error.
	result, err = fx.flow.StatusInbound(ctx, cc, c, "+15551230000", "completed", "75")
	if err != nil {
		t.Fatalf("second StatusInbound: %v", err)
	}
	if result.CallStatus != "unknown" {
		t.Fatalf("result = %+v", result)
	}
}
